package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the SIP MQTT bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
//
// The broker values here are only the first-run defaults. Once the settings
// store has been seeded, the values saved through the settings surface win.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	API       APIConfig       `yaml:"api"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SiteConfig identifies the irrigation controller.
type SiteConfig struct {
	// Name is the controller's system name. It is used as the MQTT client
	// identifier and as the prefix of the default schedule topic.
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	// Enabled turns the bridge core on. When false every MQTT operation
	// fails fast and a single diagnostic is logged at startup.
	Enabled bool `yaml:"enabled"`

	Broker   MQTTBrokerConfig   `yaml:"broker"`
	Auth     MQTTAuthConfig     `yaml:"auth"`
	Timeouts MQTTTimeoutsConfig `yaml:"timeouts"`

	// StatusTopic receives retained "UP"/"DOWN" payloads. Empty disables it.
	StatusTopic string `yaml:"status_topic"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	KeepAlive int    `yaml:"keepalive"`
	ClientID  string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTTimeoutsConfig bounds the network calls made by the session (seconds).
type MQTTTimeoutsConfig struct {
	Connect   int `yaml:"connect"`
	Operation int `yaml:"operation"`
}

// ScheduleConfig configures the run-once schedule consumer.
type ScheduleConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Topic        string   `yaml:"topic"`
	QoS          int      `yaml:"qos"`
	Boards       int      `yaml:"boards"`
	StationNames []string `yaml:"station_names"`
}

// HeartbeatConfig configures the host heartbeat that drives reconnects.
type HeartbeatConfig struct {
	// Interval is the time between heartbeats, in seconds.
	Interval int `yaml:"interval"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains the settings and status HTTP API.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
	Auth     APIAuthConfig    `yaml:"auth"`

	// PanelDir serves the settings page from disk when set (development).
	PanelDir string `yaml:"panel_dir"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// APIAuthConfig contains the single administrator login and JWT settings.
type APIAuthConfig struct {
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	JWTSecret      string `yaml:"jwt_secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// stationsPerBoard is the number of stations driven by one expansion board.
const stationsPerBoard = 8

// minJWTSecretLength is the shortest accepted HS256 signing secret.
const minJWTSecretLength = 32

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. .env file next to the working directory, if present
//  4. Environment variables (override file values)
//
// Environment variables follow the pattern: SIPMQTT_SECTION_KEY
// For example: SIPMQTT_MQTT_HOST, SIPMQTT_DATABASE_PATH
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := loadDotEnv(dotEnvPath()); err != nil {
		return nil, fmt.Errorf("loading env file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// dotEnvPath returns the .env file location.
// Uses SIPMQTT_ENV_FILE if set, otherwise ".env".
func dotEnvPath() string {
	if p := os.Getenv("SIPMQTT_ENV_FILE"); p != "" {
		return p
	}
	return ".env"
}

// loadDotEnv loads variables from an env file without overriding variables
// that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			Name: "SIP",
		},
		Database: DatabaseConfig{
			Path:        "./data/sipmqtt.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:      "localhost",
				Port:      1883,
				KeepAlive: 60,
			},
			Timeouts: MQTTTimeoutsConfig{
				Connect:   10,
				Operation: 5,
			},
		},
		Schedule: ScheduleConfig{
			Enabled: true,
			QoS:     2,
			Boards:  1,
		},
		Heartbeat: HeartbeatConfig{
			Interval: 30,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  120,
			},
			Auth: APIAuthConfig{
				Username:       "admin",
				AccessTokenTTL: 15,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SIPMQTT_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Site
	if v := os.Getenv("SIPMQTT_SITE_NAME"); v != "" {
		cfg.Site.Name = v
	}

	// Database
	if v := os.Getenv("SIPMQTT_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("SIPMQTT_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SIPMQTT_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("SIPMQTT_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SIPMQTT_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("SIPMQTT_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// API
	if v := os.Getenv("SIPMQTT_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
	if v := os.Getenv("SIPMQTT_API_PASSWORD"); v != "" {
		cfg.API.Auth.Password = v
	}
	if v := os.Getenv("SIPMQTT_JWT_SECRET"); v != "" {
		cfg.API.Auth.JWTSecret = v
	}
}

// Validate checks the configuration for errors.
//
// Broker port and keepalive are not checked here: they are first-run
// defaults only and are validated by the settings store when seeded.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.Schedule.QoS < 0 || c.Schedule.QoS > 2 {
		errs = append(errs, "schedule.qos must be 0, 1, or 2")
	}
	if c.Schedule.Boards < 1 {
		errs = append(errs, "schedule.boards must be at least 1")
	}
	if len(c.Schedule.StationNames) > c.Schedule.Boards*stationsPerBoard {
		errs = append(errs, "schedule.station_names has more entries than stations")
	}

	if c.Heartbeat.Interval < 1 {
		errs = append(errs, "heartbeat.interval must be at least 1 second")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if c.API.Enabled {
		if c.API.Port < 1 || c.API.Port > 65535 {
			errs = append(errs, "api.port must be between 1 and 65535")
		}
		if c.API.Auth.Password == "" {
			errs = append(errs, "api.auth.password is required (set SIPMQTT_API_PASSWORD)")
		}
		if len(c.API.Auth.JWTSecret) < minJWTSecretLength {
			errs = append(errs, fmt.Sprintf("api.auth.jwt_secret must be at least %d characters (set SIPMQTT_JWT_SECRET)", minJWTSecretLength))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ClientID returns the MQTT client identifier.
//
// An explicit mqtt.broker.client_id wins. Otherwise the site name is used,
// as the controller's system name identifies it on the broker. With neither
// set a random identifier is generated so two unnamed controllers never
// steal each other's session.
func (c *Config) ClientID() string {
	if c.MQTT.Broker.ClientID != "" {
		return c.MQTT.Broker.ClientID
	}
	if name := strings.TrimSpace(c.Site.Name); name != "" {
		return name
	}
	return "sip-" + uuid.NewString()
}

// ScheduleTopic returns the schedule command topic default.
// Falls back to "<site name>/schedule" when no topic is configured.
func (c *Config) ScheduleTopic() string {
	if c.Schedule.Topic != "" {
		return c.Schedule.Topic
	}
	return strings.TrimSpace(c.Site.Name) + "/schedule"
}

// StationCount returns the number of stations across all boards.
func (c *Config) StationCount() int {
	return c.Schedule.Boards * stationsPerBoard
}

// GetHeartbeatInterval returns the heartbeat interval as a Duration.
func (c *Config) GetHeartbeatInterval() time.Duration {
	return time.Duration(c.Heartbeat.Interval) * time.Second
}

// GetConnectTimeout returns the MQTT connect timeout as a Duration.
func (c *Config) GetConnectTimeout() time.Duration {
	return time.Duration(c.MQTT.Timeouts.Connect) * time.Second
}

// GetOperationTimeout returns the MQTT publish/subscribe timeout as a Duration.
func (c *Config) GetOperationTimeout() time.Duration {
	return time.Duration(c.MQTT.Timeouts.Operation) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
