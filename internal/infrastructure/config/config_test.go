package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	t.Setenv("SIPMQTT_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	content := `
site:
  name: "garden"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  enabled: true
  broker:
    host: "broker.local"
    port: 1884
    keepalive: 30
  status_topic: "garden/status"
schedule:
  boards: 2
  station_names: ["front", "back"]
heartbeat:
  interval: 10
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.Name != "garden" {
		t.Errorf("Site.Name = %q, want %q", cfg.Site.Name, "garden")
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}
	if cfg.MQTT.Broker.KeepAlive != 30 {
		t.Errorf("MQTT.Broker.KeepAlive = %d, want 30", cfg.MQTT.Broker.KeepAlive)
	}
	if cfg.MQTT.StatusTopic != "garden/status" {
		t.Errorf("MQTT.StatusTopic = %q, want %q", cfg.MQTT.StatusTopic, "garden/status")
	}
	if cfg.StationCount() != 16 {
		t.Errorf("StationCount() = %d, want 16", cfg.StationCount())
	}
	// Unset fields keep their defaults.
	if cfg.Schedule.QoS != 2 {
		t.Errorf("Schedule.QoS = %d, want default 2", cfg.Schedule.QoS)
	}
	if cfg.GetHeartbeatInterval() != 10*time.Second {
		t.Errorf("GetHeartbeatInterval() = %v, want 10s", cfg.GetHeartbeatInterval())
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	t.Setenv("SIPMQTT_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	content := `
database:
  path: ""
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Error("Load() expected validation error for empty database.path, got nil")
	}
}

func TestLoad_DotEnv(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(envPath, []byte("SIPMQTT_MQTT_USERNAME=dotenv-user\n"), 0600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	t.Setenv("SIPMQTT_ENV_FILE", envPath)
	// Registered with t.Setenv so the value godotenv sets is restored afterwards.
	t.Setenv("SIPMQTT_MQTT_USERNAME", "")
	os.Unsetenv("SIPMQTT_MQTT_USERNAME")

	cfg, err := Load(writeConfig(t, "site:\n  name: x\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MQTT.Auth.Username != "dotenv-user" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "dotenv-user")
	}
}

func TestLoad_BadDotEnv(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), "dir.env")
	if err := os.Mkdir(envPath, 0700); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	t.Setenv("SIPMQTT_ENV_FILE", envPath)

	if _, err := Load(writeConfig(t, "site:\n  name: x\n")); err == nil {
		t.Error("Load() expected error when env file is a directory")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return defaultConfig()
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "invalid schedule QoS", mutate: func(c *Config) { c.Schedule.QoS = 3 }, wantErr: true},
		{name: "zero boards", mutate: func(c *Config) { c.Schedule.Boards = 0 }, wantErr: true},
		{
			name: "too many station names",
			mutate: func(c *Config) {
				c.Schedule.StationNames = make([]string, 9)
			},
			wantErr: true,
		},
		{name: "zero heartbeat", mutate: func(c *Config) { c.Heartbeat.Interval = 0 }, wantErr: true},
		{
			name: "api without password",
			mutate: func(c *Config) {
				c.API.Enabled = true
				c.API.Auth.JWTSecret = strings.Repeat("k", 32)
			},
			wantErr: true,
		},
		{
			name: "api with short secret",
			mutate: func(c *Config) {
				c.API.Enabled = true
				c.API.Auth.Password = "hunter2"
				c.API.Auth.JWTSecret = "short"
			},
			wantErr: true,
		},
		{
			name: "api enabled",
			mutate: func(c *Config) {
				c.API.Enabled = true
				c.API.Auth.Password = "hunter2"
				c.API.Auth.JWTSecret = strings.Repeat("k", 32)
			},
		},
		{
			name: "influxdb without url",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
				c.InfluxDB.URL = ""
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ClientID(t *testing.T) {
	cfg := defaultConfig()

	cfg.Site.Name = "garden"
	if got := cfg.ClientID(); got != "garden" {
		t.Errorf("ClientID() = %q, want %q", got, "garden")
	}

	cfg.MQTT.Broker.ClientID = "explicit"
	if got := cfg.ClientID(); got != "explicit" {
		t.Errorf("ClientID() = %q, want %q", got, "explicit")
	}

	cfg.MQTT.Broker.ClientID = ""
	cfg.Site.Name = "  "
	first, second := cfg.ClientID(), cfg.ClientID()
	if !strings.HasPrefix(first, "sip-") {
		t.Errorf("ClientID() = %q, want sip- prefix", first)
	}
	if first == second {
		t.Error("generated ClientID() values should differ")
	}
}

func TestConfig_ScheduleTopic(t *testing.T) {
	cfg := defaultConfig()
	cfg.Site.Name = "garden"

	if got := cfg.ScheduleTopic(); got != "garden/schedule" {
		t.Errorf("ScheduleTopic() = %q, want %q", got, "garden/schedule")
	}

	cfg.Schedule.Topic = "zone/cmd"
	if got := cfg.ScheduleTopic(); got != "zone/cmd" {
		t.Errorf("ScheduleTopic() = %q, want %q", got, "zone/cmd")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("SIPMQTT_SITE_NAME", "backyard")
	t.Setenv("SIPMQTT_DATABASE_PATH", "/custom/path.db")
	t.Setenv("SIPMQTT_MQTT_HOST", "mqtt.example.com")
	t.Setenv("SIPMQTT_MQTT_PORT", "8883")
	t.Setenv("SIPMQTT_MQTT_USERNAME", "testuser")
	t.Setenv("SIPMQTT_MQTT_PASSWORD", "testpass")
	t.Setenv("SIPMQTT_INFLUXDB_TOKEN", "secret-token")

	applyEnvOverrides(cfg)

	if cfg.Site.Name != "backyard" {
		t.Errorf("Site.Name = %q, want %q", cfg.Site.Name, "backyard")
	}
	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("MQTT.Broker.Port = %d, want 8883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}
	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
}

func TestApplyEnvOverrides_BadPort(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("SIPMQTT_MQTT_PORT", "not-a-number")

	applyEnvOverrides(cfg)

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want default 1883", cfg.MQTT.Broker.Port)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.Broker.KeepAlive != 60 {
		t.Errorf("defaultConfig MQTT.Broker.KeepAlive = %d, want 60", cfg.MQTT.Broker.KeepAlive)
	}
	if cfg.GetConnectTimeout() != 10*time.Second {
		t.Errorf("GetConnectTimeout() = %v, want 10s", cfg.GetConnectTimeout())
	}
	if cfg.GetOperationTimeout() != 5*time.Second {
		t.Errorf("GetOperationTimeout() = %v, want 5s", cfg.GetOperationTimeout())
	}
}
