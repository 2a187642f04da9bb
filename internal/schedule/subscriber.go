package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/sip-mqtt/internal/infrastructure/mqtt"
)

const (
	// DefaultQoS is the subscription QoS for schedule commands.
	DefaultQoS byte = 2

	applyTimeout = 10 * time.Second
)

// DefaultTopic returns the schedule topic used when none is configured.
func DefaultTopic(systemName string) string {
	return systemName + "/schedule"
}

// Options configures a Subscriber. Only Controller is required.
type Options struct {
	Controller Controller
	Topic      string
	QoS        byte
	History    History
	Recorder   Recorder
	Logger     Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Subscriber applies run-once programs received on the schedule topic.
type Subscriber struct {
	controller Controller
	history    History
	recorder   Recorder
	logger     Logger
	now        func() time.Time
	interest   *mqtt.Interest
	session    *mqtt.Session
}

// NewSubscriber creates a subscriber on session. It does not subscribe.
func NewSubscriber(session *mqtt.Session, opts Options) *Subscriber {
	s := &Subscriber{
		controller: opts.Controller,
		history:    opts.History,
		recorder:   opts.Recorder,
		logger:     opts.Logger,
		now:        opts.Now,
		session:    session,
	}
	if s.logger == nil {
		s.logger = noopLogger{}
	}
	if s.now == nil {
		s.now = time.Now
	}

	qos := opts.QoS
	if qos > 2 {
		qos = DefaultQoS
	}
	s.interest = mqtt.NewInterest(session, opts.Topic, qos, s.HandleMessage)
	return s
}

// Start makes the first subscribe attempt. A failure is logged and retried
// by Reconcile.
func (s *Subscriber) Start() bool {
	if s.interest.Topic() == "" {
		s.logger.Info("schedule topic not set, not subscribing")
		return false
	}
	if !s.session.IsConnected() {
		s.logger.Warn("unable to subscribe to schedule topic, client not connected",
			"topic", s.interest.Topic())
		return false
	}
	return s.Reconcile()
}

// Reconcile restores the subscription after a reconnect. It is a heartbeat listener.
func (s *Subscriber) Reconcile() bool {
	return s.interest.Reconcile()
}

// SetTopic moves the subscription to a new topic.
func (s *Subscriber) SetTopic(topic string) bool {
	if topic != s.interest.Topic() {
		s.logger.Info("schedule topic changed", "from", s.interest.Topic(), "to", topic)
	}
	return s.interest.SetTopic(topic)
}

// Topic returns the schedule topic.
func (s *Subscriber) Topic() string {
	return s.interest.Topic()
}

// Subscribed reports whether the schedule topic is currently subscribed.
func (s *Subscriber) Subscribed() bool {
	return s.interest.Subscribed()
}

// HandleMessage applies one schedule command. Malformed commands are logged
// and dropped without an error.
func (s *Subscriber) HandleMessage(topic string, payload []byte) error {
	if s.controller == nil || !s.controller.Enabled() {
		s.logger.Debug("controller disabled, ignoring schedule command", "topic", topic)
		return nil
	}

	cmd, err := DecodeCommand(payload)
	if err != nil {
		s.logger.Warn("could not decode schedule command",
			"topic", topic, "payload", truncate(payload), "error", err)
		return nil
	}

	boards := s.controller.Boards()
	stations := boards * StationsPerBoard
	names := s.controller.StationNames()

	if seq, ok := cmd.(SequenceCommand); ok {
		switch n := len(seq.Values); {
		case n < stations:
			s.logger.Debug("padding schedule command", "topic", topic, "received", n, "stations", stations)
		case n > stations:
			s.logger.Warn("truncating schedule command", "topic", topic, "received", n, "stations", stations)
		}
	}

	values, unknown := Canonicalize(cmd, names, stations)
	for _, name := range unknown {
		s.logger.Warn("no station named in schedule command", "topic", topic, "station", name)
	}

	if !anyActive(values) {
		s.logger.Debug("schedule command has no active stations", "topic", topic)
		return nil
	}

	run := RunOnce{
		Topic:      topic,
		Durations:  values,
		Mask:       StationMask(values, boards),
		ReceivedAt: s.now(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), applyTimeout)
	defer cancel()

	if err := s.controller.ScheduleRunOnce(ctx, run); err != nil {
		return fmt.Errorf("scheduling run-once: %w", err)
	}

	s.logger.Info("run-once program scheduled",
		"topic", topic, "stations", countActive(values), "mask", fmt.Sprintf("%x", run.Mask))

	if s.history != nil {
		s.history.WriteRunOnce(topic, values, names, run.ReceivedAt)
	}
	if s.recorder != nil {
		if err := s.recorder.Record(ctx, run); err != nil {
			s.logger.Warn("failed to journal run-once program", "topic", topic, "error", err)
		}
	}

	return nil
}

func countActive(values []int) int {
	n := 0
	for _, v := range values {
		if v != 0 {
			n++
		}
	}
	return n
}
