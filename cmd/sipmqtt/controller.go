package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/sip-mqtt/internal/infrastructure/config"
	"github.com/nerrad567/sip-mqtt/internal/infrastructure/logging"
	"github.com/nerrad567/sip-mqtt/internal/schedule"
)

// stationController is the controller view used by the schedule consumer.
// It holds the station layout from config and the active run-once program.
type stationController struct {
	enabled bool
	boards  int
	names   []string
	log     *logging.Logger

	mu      sync.Mutex
	active  schedule.RunOnce
	endsAt  time.Time
	applied int
}

func newStationController(cfg config.ScheduleConfig, log *logging.Logger) *stationController {
	names := make([]string, len(cfg.StationNames))
	copy(names, cfg.StationNames)

	return &stationController{
		enabled: cfg.Enabled,
		boards:  cfg.Boards,
		names:   names,
		log:     log,
	}
}

func (c *stationController) Enabled() bool          { return c.enabled }
func (c *stationController) Boards() int            { return c.boards }
func (c *stationController) StationNames() []string { return c.names }

// ScheduleRunOnce replaces any active run-once program. Stations run in
// sequence, so the program ends after the sum of its durations.
func (c *stationController) ScheduleRunOnce(ctx context.Context, run schedule.RunOnce) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(run.Mask) != c.boards {
		return fmt.Errorf("station mask has %d boards, controller has %d", len(run.Mask), c.boards)
	}

	total := 0
	for _, d := range run.Durations {
		total += d
	}

	c.mu.Lock()
	replaced := !c.endsAt.IsZero() && run.ReceivedAt.Before(c.endsAt)
	c.active = run
	c.endsAt = run.ReceivedAt.Add(time.Duration(total) * time.Second)
	c.applied++
	c.mu.Unlock()

	c.log.Info("run-once program started",
		"topic", run.Topic,
		"durations", run.Durations,
		"total_seconds", total,
		"replaced_active", replaced,
	)
	return nil
}

// Active returns the current program and whether it is still running at now.
func (c *stationController) Active(now time.Time) (schedule.RunOnce, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active, c.applied > 0 && now.Before(c.endsAt)
}
