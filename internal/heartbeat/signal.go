package heartbeat

import (
	"context"
	"sync"
	"time"
)

// DefaultInterval is used when Run is given a non-positive interval.
const DefaultInterval = 5 * time.Second

// Listener is called on every beat.
type Listener func(ctx context.Context)

// Logger defines the logging interface used by the signal.
type Logger interface {
	Debug(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Error(string, ...any) {}

type listener struct {
	name string
	fn   Listener
}

// Signal fans each beat out to its listeners.
type Signal struct {
	logger Logger

	mu        sync.RWMutex
	listeners []listener

	// Shutdown coordination (stopOnce prevents double-close panics)
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a signal. A nil logger discards output.
func New(logger Logger) *Signal {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Signal{
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Connect adds a listener. Listeners run in the order they were connected.
func (s *Signal) Connect(name string, fn Listener) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, listener{name: name, fn: fn})
	s.mu.Unlock()
}

// Listeners returns the listener names in call order.
func (s *Signal) Listeners() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, len(s.listeners))
	for i, l := range s.listeners {
		names[i] = l.name
	}
	return names
}

// Beat calls every listener once. A panicking listener is logged and the
// remaining listeners still run.
func (s *Signal) Beat(ctx context.Context) {
	s.mu.RLock()
	listeners := make([]listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.RUnlock()

	for _, l := range listeners {
		if ctx.Err() != nil {
			return
		}
		s.call(ctx, l)
	}
}

func (s *Signal) call(ctx context.Context, l listener) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("heartbeat listener panic recovered", "listener", l.name, "panic", r)
		}
	}()
	l.fn(ctx)
}

// Run beats every interval until ctx is cancelled or Stop is called.
// It blocks; the first beat happens after one interval.
func (s *Signal) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	s.wg.Add(1)
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Debug("heartbeat started", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.Beat(ctx)
		}
	}
}

// Stop ends Run and waits for an in-flight beat to finish.
// Safe to call multiple times.
func (s *Signal) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
}
