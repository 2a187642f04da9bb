package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// SettingsSource supplies the current broker settings.
// EnsureConnected re-reads it before every reconnect attempt.
type SettingsSource interface {
	BrokerSettings(ctx context.Context) (BrokerConfig, error)
}

// MessageHandler is the callback signature for received messages.
//
// Handlers run on the session's receive loop, one message at a time.
// They should not block for extended periods and must not call Stop.
//
// Returns:
//   - error: Logged; later handlers for the same message still run
type MessageHandler func(topic string, payload []byte) error

// Session manages one logical connection to the broker across restarts,
// network failures and configuration changes.
//
// It owns the transport client, the subscription registry and the receive
// loop. Reconnection is not automatic: the host calls EnsureConnected from
// its heartbeat, and feature modules re-subscribe once they see the session
// connected again (see Interest).
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Session struct {
	opts   Options
	logger Logger

	// mu guards everything below.
	mu            sync.Mutex
	cfg           BrokerConfig
	configured    bool
	state         State
	client        pahomqtt.Client
	loop          *receiveLoop
	cancelConnect context.CancelFunc

	// epoch identifies the current transport client; it changes whenever a
	// client is built or torn down.
	epoch uint64

	// generation counts successful connects.
	generation uint64

	registry *registry

	onConnect    func()
	onDisconnect func(err error)
	callbackMu   sync.RWMutex
}

// New creates a Session. It does not connect; call Configure then Start.
//
// When opts.Disabled is set the session logs one diagnostic here and every
// later operation returns ErrDisabled.
func New(opts Options) *Session {
	opts = opts.withDefaults()

	s := &Session{
		opts:     opts,
		logger:   opts.Logger,
		registry: newRegistry(),
	}

	if opts.Disabled {
		s.logger.Error("MQTT bridge disabled, all MQTT operations will fail", "reason", opts.DisabledReason)
	}

	return s
}

// Configure validates and stores broker settings. It does not connect.
//
// Host and port are validated; an invalid config returns ErrInvalidConfig and
// the previous config stays in effect. A keepalive outside 1..2400 is
// replaced by 60 and logged.
//
// A running session keeps its current transport client until it is
// restarted; use Apply to restart when connection settings change.
func (s *Session) Configure(cfg BrokerConfig) error {
	if s.opts.Disabled {
		return ErrDisabled
	}
	if err := cfg.Validate(); err != nil {
		s.logger.Warn("rejected MQTT broker settings", "error", err)
		return err
	}

	cfg, repaired := repairKeepAlive(cfg)
	if repaired {
		s.logger.Warn("MQTT keepalive out of range, using default",
			"min", MinKeepAlive,
			"max", MaxKeepAlive,
			"default", DefaultKeepAlive,
		)
	}

	s.mu.Lock()
	s.cfg = cfg
	s.configured = true
	s.mu.Unlock()

	return nil
}

// Apply configures the session and restarts it when it is running and the
// connection settings changed. A stopped session is only reconfigured.
func (s *Session) Apply(ctx context.Context, cfg BrokerConfig) error {
	if s.opts.Disabled {
		return ErrDisabled
	}

	s.mu.Lock()
	prev, running := s.cfg, s.client != nil
	s.mu.Unlock()

	if err := s.Configure(cfg); err != nil {
		return err
	}
	if !running || !connectionChanged(prev, s.Settings()) {
		return nil
	}

	s.logger.Info("MQTT broker settings changed, restarting session", "broker", s.Settings().Address())
	return s.Restart(ctx)
}

// Start connects to the broker once.
//
// It is a no-op when already connected and returns ErrConnectInProgress while
// another connect is pending. A failed attempt leaves the session
// disconnected and is not retried here; the error wraps ErrConnectionFailed.
//
// On success "UP" is published to the status topic and the on-connect
// callback runs.
func (s *Session) Start(ctx context.Context) error {
	if s.opts.Disabled {
		return ErrDisabled
	}

	s.mu.Lock()
	switch s.state {
	case StateConnected:
		s.mu.Unlock()
		return nil
	case StateConnecting:
		s.mu.Unlock()
		return ErrConnectInProgress
	}
	if !s.configured {
		s.mu.Unlock()
		return ErrNotConfigured
	}

	cfg := s.cfg
	if s.client == nil {
		s.buildClientLocked(cfg)
	}
	client, loop, epoch := s.client, s.loop, s.epoch

	connectCtx, cancel := context.WithTimeout(ctx, s.opts.ConnectTimeout)
	defer cancel()
	s.cancelConnect = cancel
	s.state = StateConnecting
	s.mu.Unlock()

	s.logger.Info("connecting to MQTT broker", "broker", cfg.Address(), "client_id", cfg.ClientID)

	token := client.Connect()
	var err error
	select {
	case <-token.Done():
		err = token.Error()
	case <-connectCtx.Done():
		err = fmt.Errorf("%w: %w", ErrTimeout, connectCtx.Err())
	}

	s.mu.Lock()
	s.cancelConnect = nil
	if s.epoch != epoch {
		// Stopped, or the connection dropped, while the connect was pending.
		s.mu.Unlock()
		return fmt.Errorf("%w: session stopped during connect", ErrConnectionFailed)
	}

	if err != nil {
		s.teardownLocked()
		s.mu.Unlock()

		client.Disconnect(0)
		loop.stop()
		loop.wait()

		s.logger.Warn("MQTT failed to connect",
			"broker", cfg.Address(),
			"return_code", returnCode(token),
			"error", err,
		)
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	s.state = StateConnected
	s.generation++
	generation := s.generation
	s.mu.Unlock()

	s.logger.Info("MQTT connected",
		"broker", cfg.Address(),
		"return_code", returnCode(token),
		"generation", generation,
	)

	if err := s.PublishStatus(StatusUp); err != nil {
		s.logger.Warn("failed to publish MQTT status", "status", StatusUp, "error", err)
	}

	s.callbackMu.RLock()
	callback := s.onConnect
	s.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}

	return nil
}

// Stop ends the session. It is safe at any time, including while a connect
// is in flight, and on a session that never started.
//
// When connected it publishes "DOWN" and disconnects gracefully, so the
// broker does not deliver the last will. The receive loop is stopped and
// waited for, and the registry is cleared.
func (s *Session) Stop() {
	if s.opts.Disabled {
		return
	}

	s.mu.Lock()
	client, loop, state, cfg := s.client, s.loop, s.state, s.cfg
	if s.cancelConnect != nil {
		s.cancelConnect()
		s.cancelConnect = nil
	}
	if client == nil {
		s.state = StateDisconnected
		s.mu.Unlock()
		return
	}
	s.teardownLocked()
	s.mu.Unlock()

	if state == StateConnected {
		if err := s.publishStatusWith(client, cfg.StatusTopic, StatusDown); err != nil {
			s.logger.Warn("failed to publish MQTT status", "status", StatusDown, "error", err)
		}
		client.Disconnect(s.opts.DisconnectQuiesce)
	} else {
		client.Disconnect(0)
	}

	loop.stop()
	loop.wait()

	s.logger.Info("MQTT session stopped", "previous_state", state.String())
}

// Restart stops the session and starts it again with the current config.
func (s *Session) Restart(ctx context.Context) error {
	if s.opts.Disabled {
		return ErrDisabled
	}
	s.Stop()
	return s.Start(ctx)
}

// EnsureConnected is the heartbeat health check. When the session is not
// connected it re-reads settings from the SettingsSource, applies them and
// attempts one connect.
func (s *Session) EnsureConnected(ctx context.Context) error {
	if s.opts.Disabled {
		return ErrDisabled
	}
	if s.IsConnected() {
		return nil
	}

	if src := s.opts.Settings; src != nil {
		cfg, err := src.BrokerSettings(ctx)
		if err != nil {
			s.logger.Warn("failed to reload MQTT settings, using current", "error", err)
		} else if err := s.Configure(cfg); err != nil {
			s.logger.Warn("reloaded MQTT settings are invalid, using current", "error", err)
		}
	}

	s.logger.Debug("MQTT not connected, attempting to connect")

	err := s.Start(ctx)
	if errors.Is(err, ErrConnectInProgress) {
		return nil
	}
	return err
}

// buildClientLocked creates the transport client and its receive loop.
// Caller holds s.mu.
func (s *Session) buildClientLocked(cfg BrokerConfig) {
	loop := newReceiveLoop()
	opts := buildClientOptions(cfg, s.opts.ConnectTimeout, loop)

	s.epoch++
	epoch := s.epoch
	s.client = s.opts.NewClient(opts)
	s.loop = loop

	go loop.run(s.Dispatch, func(err error) {
		s.handleConnectionLost(epoch, err)
	})
}

// teardownLocked drops the transport client and clears the registry.
// Caller holds s.mu and is responsible for stopping the old loop.
func (s *Session) teardownLocked() {
	s.epoch++
	s.client = nil
	s.loop = nil
	s.state = StateDisconnected
	s.registry.clear()
}

// handleConnectionLost runs on the receive loop when the transport reports
// an unexpected disconnect. No "DOWN" is published; the broker delivers the
// last will instead.
func (s *Session) handleConnectionLost(epoch uint64, err error) {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	dropped := s.registry.count()
	s.teardownLocked()
	s.mu.Unlock()

	s.logger.Warn("MQTT unexpected disconnection",
		"error", err,
		"dropped_subscriptions", dropped,
	)

	s.callbackMu.RLock()
	callback := s.onDisconnect
	s.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// HealthCheck verifies the MQTT connection is alive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Session) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if s.opts.Disabled {
		return ErrDisabled
	}
	if !s.IsConnected() {
		return ErrNotConnected
	}

	return nil
}

// IsConnected reports whether the session is connected.
func (s *Session) IsConnected() bool {
	return s.State() == StateConnected
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Settings returns the applied broker configuration.
func (s *Session) Settings() BrokerConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Generation returns the number of successful connects so far.
// A feature module that remembers it can tell whether a reconnect happened.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Disabled reports whether the session was created in no-op mode.
func (s *Session) Disabled() bool {
	return s.opts.Disabled
}

// SetOnConnect sets a callback to be invoked after every successful connect.
func (s *Session) SetOnConnect(callback func()) {
	s.callbackMu.Lock()
	s.onConnect = callback
	s.callbackMu.Unlock()
}

// SetOnDisconnect sets a callback to be invoked when the connection is lost
// unexpectedly. It is not called for Stop.
func (s *Session) SetOnDisconnect(callback func(err error)) {
	s.callbackMu.Lock()
	s.onDisconnect = callback
	s.callbackMu.Unlock()
}

// returnCode extracts the CONNACK return code when the token carries one.
func returnCode(token pahomqtt.Token) int {
	if ct, ok := token.(*pahomqtt.ConnectToken); ok {
		return int(ct.ReturnCode())
	}
	return -1
}
