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
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
bridge:
  id: "plant-room"
  poll_interval: 15
controller:
  host: "192.168.1.50"
  username: "admin"
  device_name: "AHU-1"
  retry:
    max_attempts: 5
database:
  path: "/tmp/test.db"
mqtt:
  broker:
    host: "localhost"
    port: 1883
  qos: 1
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Bridge.ID != "plant-room" {
		t.Errorf("Bridge.ID = %q, want %q", cfg.Bridge.ID, "plant-room")
	}
	if cfg.GetPollInterval().Seconds() != 15 {
		t.Errorf("GetPollInterval() = %v, want 15s", cfg.GetPollInterval())
	}
	if cfg.Controller.Host != "192.168.1.50" {
		t.Errorf("Controller.Host = %q, want %q", cfg.Controller.Host, "192.168.1.50")
	}
	if cfg.Controller.Retry.MaxAttempts != 5 {
		t.Errorf("Controller.Retry.MaxAttempts = %d, want 5", cfg.Controller.Retry.MaxAttempts)
	}
	// Untouched nested defaults survive a partial section.
	if cfg.Controller.Retry.MaxBackoff != 5000 {
		t.Errorf("Controller.Retry.MaxBackoff = %d, want default 5000", cfg.Controller.Retry.MaxBackoff)
	}
	if cfg.Controller.RequestTimeout != 10 {
		t.Errorf("Controller.RequestTimeout = %d, want default 10", cfg.Controller.RequestTimeout)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")
	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
bridge:
  id: ""
controller:
  host: "10.0.0.2"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	for _, want := range []string{"bridge.id is required", "controller.username is required"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{
			name:    "missing bridge id",
			mutate:  func(c *Config) { c.Bridge.ID = "" },
			wantErr: "bridge.id",
		},
		{
			name:    "zero poll interval",
			mutate:  func(c *Config) { c.Bridge.PollInterval = 0 },
			wantErr: "bridge.poll_interval",
		},
		{
			name:    "host without username",
			mutate:  func(c *Config) { c.Controller.Host = "10.0.0.2" },
			wantErr: "controller.username",
		},
		{
			name:    "zero retry attempts",
			mutate:  func(c *Config) { c.Controller.Retry.MaxAttempts = 0 },
			wantErr: "controller.retry.max_attempts",
		},
		{
			name:    "inverted backoff",
			mutate:  func(c *Config) { c.Controller.Retry.MaxBackoff = 10 },
			wantErr: "max_backoff_ms",
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: "api.port",
		},
		{
			name:   "port ignored when api disabled",
			mutate: func(c *Config) { c.API.Enabled = false; c.API.Port = 0 },
		},
		{
			name:    "influxdb enabled without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true; c.InfluxDB.Bucket = "b" },
			wantErr: "influxdb.url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		Controller: ControllerConfig{
			RequestTimeout: 7,
			Retry:          RetryConfig{MaxAttempts: 3, InitialBackoff: 250, MaxBackoff: 4000},
		},
		API: APIConfig{
			Timeouts: APITimeoutConfig{Read: 30, Write: 45, Idle: 60},
		},
	}

	if got := cfg.GetRequestTimeout().Seconds(); got != 7 {
		t.Errorf("GetRequestTimeout() = %v, want 7", got)
	}
	if got := cfg.GetRetryInitialBackoff(); got != 250*time.Millisecond {
		t.Errorf("GetRetryInitialBackoff() = %v, want 250ms", got)
	}
	if got := cfg.GetRetryMaxBackoff(); got != 4*time.Second {
		t.Errorf("GetRetryMaxBackoff() = %v, want 4s", got)
	}
	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("ECLYPSE_CONTROLLER_HOST", "10.1.1.1")
	t.Setenv("ECLYPSE_CONTROLLER_USERNAME", "admin")
	t.Setenv("ECLYPSE_CONTROLLER_PASSWORD", "secret")
	t.Setenv("ECLYPSE_CONTROLLER_ENTRY_ID", "entry-1")
	t.Setenv("ECLYPSE_POLL_INTERVAL", "45")
	t.Setenv("ECLYPSE_DATABASE_PATH", "/custom/path.db")
	t.Setenv("ECLYPSE_MQTT_HOST", "mqtt.example.com")
	t.Setenv("ECLYPSE_MQTT_USERNAME", "testuser")
	t.Setenv("ECLYPSE_MQTT_PASSWORD", "testpass")
	t.Setenv("ECLYPSE_INFLUXDB_TOKEN", "secret-token")

	applyEnvOverrides(cfg)

	checks := []struct {
		field string
		got   string
		want  string
	}{
		{"Controller.Host", cfg.Controller.Host, "10.1.1.1"},
		{"Controller.Username", cfg.Controller.Username, "admin"},
		{"Controller.Password", cfg.Controller.Password, "secret"},
		{"Controller.EntryID", cfg.Controller.EntryID, "entry-1"},
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.field, c.got, c.want)
		}
	}
	if cfg.Bridge.PollInterval != 45 {
		t.Errorf("Bridge.PollInterval = %d, want 45", cfg.Bridge.PollInterval)
	}
}

func TestApplyEnvOverrides_BadPollIntervalIgnored(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("ECLYPSE_POLL_INTERVAL", "soon")

	applyEnvOverrides(cfg)

	if cfg.Bridge.PollInterval != 30 {
		t.Errorf("Bridge.PollInterval = %d, want default 30", cfg.Bridge.PollInterval)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Bridge.PollInterval != 30 {
		t.Errorf("defaultConfig Bridge.PollInterval = %d, want 30", cfg.Bridge.PollInterval)
	}
	if cfg.Controller.VerifyTLS {
		t.Error("defaultConfig should not verify controller TLS")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaultConfig should validate, got %v", err)
	}
}
