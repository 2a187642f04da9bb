package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/sip-mqtt/internal/audit"
	"github.com/nerrad567/sip-mqtt/internal/infrastructure/config"
	"github.com/nerrad567/sip-mqtt/internal/infrastructure/logging"
	"github.com/nerrad567/sip-mqtt/internal/infrastructure/mqtt"
	"github.com/nerrad567/sip-mqtt/internal/schedule"
	"github.com/nerrad567/sip-mqtt/internal/settings"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// SettingsStore is the settings document the API edits.
type SettingsStore interface {
	Document() settings.Document
	Save(ctx context.Context, values map[string]string) error
}

// SessionStatus reports the broker session.
type SessionStatus interface {
	State() mqtt.State
	Generation() uint64
	Settings() mqtt.BrokerConfig
	Subscriptions() []string
	Disabled() bool
}

// ScheduleStatus reports the schedule consumer.
type ScheduleStatus interface {
	Topic() string
	Subscribed() bool
}

// RunHistory lists applied run-once programs.
type RunHistory interface {
	Recent(ctx context.Context, limit int) ([]schedule.JournalEntry, error)
}

// AuditTrail records and lists settings changes and logins.
type AuditTrail interface {
	Record(ctx context.Context, e audit.Entry) error
	List(ctx context.Context, f audit.Filter) ([]audit.Entry, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Logger   *logging.Logger
	Settings SettingsStore
	Session  SessionStatus
	Schedule ScheduleStatus // optional
	Runs     RunHistory     // optional
	Audit    AuditTrail     // optional
	Panel    http.Handler   // optional; serves the settings page at /
	Version  string
}

// Server is the HTTP API server.
type Server struct {
	cfg      config.APIConfig
	logger   *logging.Logger
	settings SettingsStore
	session  SessionStatus
	schedule ScheduleStatus
	runs     RunHistory
	audit    AuditTrail
	panel    http.Handler
	version  string
	server   *http.Server
}

// New creates a new API server. It does not listen until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Settings == nil {
		return nil, fmt.Errorf("settings store is required")
	}
	if deps.Session == nil {
		return nil, fmt.Errorf("mqtt session is required")
	}

	return &Server{
		cfg:      deps.Config,
		logger:   deps.Logger,
		settings: deps.Settings,
		session:  deps.Session,
		schedule: deps.Schedule,
		runs:     deps.Runs,
		audit:    deps.Audit,
		panel:    deps.Panel,
		version:  deps.Version,
	}, nil
}

// Start binds the listener and serves in a background goroutine.
// Binding errors (port in use) are returned synchronously.
func (s *Server) Start(_ context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	s.server = &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		if serveErr := s.server.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", serveErr)
		}
	}()

	s.logger.Info("API server listening", "address", s.server.Addr)
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.server == nil {
		return ""
	}
	return s.server.Addr
}

// Close gracefully shuts down the API server.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("api health check: %w", err)
	}
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
