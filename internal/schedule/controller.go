package schedule

import (
	"context"
	"time"
)

// RunOnce is a program ready to hand to the controller.
type RunOnce struct {
	// Topic the command arrived on.
	Topic string

	// Durations holds seconds per station, one entry per station.
	Durations []int

	// Mask has one byte per board with a bit set for every active station.
	Mask []byte

	ReceivedAt time.Time
}

// Controller is the irrigation controller the programs are applied to.
type Controller interface {
	// Enabled reports whether the controller accepts programs.
	Enabled() bool

	// Boards returns the number of installed boards.
	Boards() int

	// StationNames returns station names in station order.
	StationNames() []string

	// ScheduleRunOnce starts a run-once program.
	ScheduleRunOnce(ctx context.Context, run RunOnce) error
}

// History records applied programs in a time-series store.
type History interface {
	WriteRunOnce(topic string, durations []int, names []string, at time.Time)
}

// Recorder journals applied programs.
type Recorder interface {
	Record(ctx context.Context, run RunOnce) error
}

// Logger defines the logging interface used by the subscriber.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
