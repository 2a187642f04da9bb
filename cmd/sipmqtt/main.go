// SIP MQTT bridge.
//
// This is the host process for the bridge between the SIP irrigation
// controller and an MQTT automation network. It owns:
//   - The broker session and its liveness topic
//   - The run-once schedule consumer
//   - The heartbeat that reconnects the session and restores subscriptions
//   - The settings store (SQLite) and optional InfluxDB history
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/sip-mqtt/migrations"

	"github.com/nerrad567/sip-mqtt/internal/api"
	"github.com/nerrad567/sip-mqtt/internal/audit"
	"github.com/nerrad567/sip-mqtt/internal/heartbeat"
	"github.com/nerrad567/sip-mqtt/internal/infrastructure/config"
	"github.com/nerrad567/sip-mqtt/internal/infrastructure/database"
	"github.com/nerrad567/sip-mqtt/internal/infrastructure/influxdb"
	"github.com/nerrad567/sip-mqtt/internal/infrastructure/logging"
	"github.com/nerrad567/sip-mqtt/internal/infrastructure/mqtt"
	"github.com/nerrad567/sip-mqtt/internal/panel"
	"github.com/nerrad567/sip-mqtt/internal/schedule"
	"github.com/nerrad567/sip-mqtt/internal/settings"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
// It returns nil on a clean shutdown.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting SIP MQTT bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	mqtt.RouteTransportLogs(log, cfg.Logging.Level == "debug")

	// Open database
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	// Settings store, seeded from config on first run
	store := newSettingsStore(cfg, db)
	if _, loadErr := store.Load(ctx); loadErr != nil {
		return fmt.Errorf("loading settings: %w", loadErr)
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB, cfg.Site.Name)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Broker session
	session := mqtt.New(mqtt.Options{
		Logger:           log,
		ConnectTimeout:   cfg.GetConnectTimeout(),
		OperationTimeout: cfg.GetOperationTimeout(),
		Disabled:         !cfg.MQTT.Enabled,
		DisabledReason:   "mqtt.enabled is false",
		Settings:         store,
	})
	watchConnection(session, influxClient, log)

	if cfgErr := session.Configure(store.Broker()); cfgErr != nil && !errors.Is(cfgErr, mqtt.ErrDisabled) {
		log.Warn("stored MQTT settings are invalid, waiting for new settings", "error", cfgErr)
	}
	if startErr := session.Start(ctx); startErr != nil && !errors.Is(startErr, mqtt.ErrDisabled) {
		log.Warn("MQTT broker unavailable, heartbeat will retry", "error", startErr)
	}
	defer func() {
		log.Info("stopping MQTT session")
		session.Stop()
	}()

	auditLog := audit.NewLog(db.DB)

	// Schedule consumer
	journal := schedule.NewJournal(db.DB)
	subscriber := newScheduleSubscriber(cfg, journal, store, session, influxClient, log)
	if cfg.Schedule.Enabled {
		subscriber.Start()
	} else {
		log.Info("schedule consumer disabled")
	}

	store.OnChange(func(ctx context.Context, _ settings.Document) {
		applySettings(ctx, store, session, subscriber, cfg.Schedule.Enabled, log)
	})

	// Heartbeat: session first so features reconcile against a fresh connection
	beat := heartbeat.New(log)
	beat.Connect("mqtt", func(ctx context.Context) {
		if connErr := session.EnsureConnected(ctx); connErr != nil && !errors.Is(connErr, mqtt.ErrDisabled) {
			log.Debug("MQTT still unavailable", "error", connErr)
		}
	})
	if cfg.Schedule.Enabled {
		beat.Connect("schedule", func(context.Context) { subscriber.Reconcile() })
	}
	go beat.Run(ctx, cfg.GetHeartbeatInterval())
	defer beat.Stop()

	// Settings and status API (optional)
	if cfg.API.Enabled {
		apiServer, apiErr := startAPI(ctx, cfg, log, store, session, subscriber, journal, auditLog)
		if apiErr != nil {
			return fmt.Errorf("starting API server: %w", apiErr)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("settings API disabled")
	}

	if err := healthCheck(ctx, db, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	// SIGHUP re-reads settings written by another process.
	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	defer signal.Stop(reload)

	log.Info("initialisation complete, waiting for shutdown signal",
		"mqtt_state", session.State().String(),
		"schedule_topic", subscriber.Topic(),
	)

	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown signal received, cleaning up")
			return nil
		case <-reload:
			log.Info("reloading settings")
			if _, loadErr := store.Load(ctx); loadErr != nil {
				log.Error("failed to reload settings", "error", loadErr)
				continue
			}
			applySettings(ctx, store, session, subscriber, cfg.Schedule.Enabled, log)
			if auditErr := auditLog.Record(ctx, audit.Entry{
				Action: audit.ActionSettingsReload,
				Source: audit.SourceSignal,
			}); auditErr != nil {
				log.Warn("failed to write audit entry", "error", auditErr)
			}
		}
	}
}

// getConfigPath returns the configuration file path.
// Uses SIPMQTT_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SIPMQTT_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func newSettingsStore(cfg *config.Config, db *database.DB) *settings.Store {
	defaults := settings.Defaults{
		BrokerHost:    cfg.MQTT.Broker.Host,
		BrokerPort:    cfg.MQTT.Broker.Port,
		BrokerAlive:   cfg.MQTT.Broker.KeepAlive,
		PublishUpDown: cfg.MQTT.StatusTopic,
		ScheduleTopic: cfg.ScheduleTopic(),
	}
	identity := settings.Identity{
		ClientID: cfg.ClientID(),
		Username: cfg.MQTT.Auth.Username,
		Password: cfg.MQTT.Auth.Password,
	}
	return settings.NewStore(settings.NewSQLiteRepository(db.DB), defaults, identity)
}

func newScheduleSubscriber(
	cfg *config.Config,
	journal *schedule.Journal,
	store *settings.Store,
	session *mqtt.Session,
	influxClient *influxdb.Client,
	log *logging.Logger,
) *schedule.Subscriber {
	opts := schedule.Options{
		Controller: newStationController(cfg.Schedule, log),
		Topic:      store.ScheduleTopic(),
		QoS:        byte(cfg.Schedule.QoS), //nolint:gosec // validated to 0..2 by config.Validate
		Recorder:   journal,
		Logger:     log.With("component", "schedule"),
	}
	if influxClient != nil {
		opts.History = influxClient
	}
	return schedule.NewSubscriber(session, opts)
}

func startAPI(
	ctx context.Context,
	cfg *config.Config,
	log *logging.Logger,
	store *settings.Store,
	session *mqtt.Session,
	subscriber *schedule.Subscriber,
	journal *schedule.Journal,
	auditLog *audit.Log,
) (*api.Server, error) {
	deps := api.Deps{
		Config:   cfg.API,
		Logger:   log.With("component", "api"),
		Settings: store,
		Session:  session,
		Runs:     journal,
		Audit:    auditLog,
		Panel:    panel.Handler(cfg.API.PanelDir),
		Version:  version,
	}
	if cfg.Schedule.Enabled {
		deps.Schedule = subscriber
	}

	server, err := api.New(deps)
	if err != nil {
		return nil, err
	}
	if err := server.Start(ctx); err != nil {
		return nil, err
	}
	return server, nil
}

// watchConnection logs session transitions and records them in InfluxDB.
func watchConnection(session *mqtt.Session, influxClient *influxdb.Client, log *logging.Logger) {
	session.SetOnConnect(func() {
		log.Info("MQTT session up", "generation", session.Generation())
		if influxClient != nil {
			influxClient.WriteConnectionEvent("connected", session.Generation(), "")
		}
	})
	session.SetOnDisconnect(func(err error) {
		log.Warn("MQTT session lost", "error", err)
		if influxClient != nil {
			reason := ""
			if err != nil {
				reason = err.Error()
			}
			influxClient.WriteConnectionEvent("disconnected", session.Generation(), reason)
		}
	})
}

// applySettings pushes the stored settings into the running components.
func applySettings(
	ctx context.Context,
	store *settings.Store,
	session *mqtt.Session,
	subscriber *schedule.Subscriber,
	scheduleEnabled bool,
	log *logging.Logger,
) {
	if err := session.Apply(ctx, store.Broker()); err != nil && !errors.Is(err, mqtt.ErrDisabled) {
		log.Warn("failed to apply MQTT settings", "error", err)
	}
	if scheduleEnabled {
		subscriber.SetTopic(store.ScheduleTopic())
	}
}

// healthCheck verifies the infrastructure the bridge cannot run without.
// The broker is not checked: the heartbeat retries it.
func healthCheck(ctx context.Context, db *database.DB, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
