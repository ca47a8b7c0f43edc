package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  enabled: true
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "0.0.0.0"
  port: 9000
inventory:
  export_db: "/var/tmp/udev.db.txt"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}

	if !cfg.MQTT.Enabled {
		t.Error("MQTT.Enabled = false, want true")
	}

	if cfg.MQTT.Broker.ClientID != "test-client" {
		t.Errorf("MQTT.Broker.ClientID = %q, want %q", cfg.MQTT.Broker.ClientID, "test-client")
	}

	if cfg.Addr() != "0.0.0.0:9000" {
		t.Errorf("Addr() = %q, want %q", cfg.Addr(), "0.0.0.0:9000")
	}

	if cfg.Inventory.ExportDB != "/var/tmp/udev.db.txt" {
		t.Errorf("Inventory.ExportDB = %q, want %q", cfg.Inventory.ExportDB, "/var/tmp/udev.db.txt")
	}

	// Untouched sections keep their defaults.
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want json", cfg.Logging.Format)
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}

	if cfg.Database.Path != "./data/udevparse.db" {
		t.Errorf("Database.Path = %q, want default", cfg.Database.Path)
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
	content := `
database:
  path: ""
api:
  port: 8080
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected validation error for empty database.path, got nil")
	}
	if !strings.Contains(err.Error(), "database.path is required") {
		t.Errorf("error = %v, want database.path message", err)
	}
}

func TestLoad_InvalidEnvOverride(t *testing.T) {
	t.Setenv("UDEVPARSE_API_PORT", "not-a-port")

	_, err := Load("")
	if err == nil {
		t.Error("Load() expected error for non-numeric UDEVPARSE_API_PORT, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config { return defaultConfig() }

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
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
			name: "mqtt enabled without host",
			mutate: func(c *Config) {
				c.MQTT.Enabled = true
				c.MQTT.Broker.Host = ""
			},
			wantErr: "mqtt.broker.host",
		},
		{
			name:    "mqtt disabled without host",
			mutate:  func(c *Config) { c.MQTT.Broker.Host = "" },
			wantErr: "",
		},
		{
			name:    "free port",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: "",
		},
		{
			name:    "invalid port low",
			mutate:  func(c *Config) { c.API.Port = -1 },
			wantErr: "api.port",
		},
		{
			name:    "invalid port high",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: "api.port",
		},
		{
			name:    "negative body limit",
			mutate:  func(c *Config) { c.API.MaxBodyBytes = -1 },
			wantErr: "api.max_body_bytes",
		},
		{
			name:    "influxdb enabled without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: "influxdb.url",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
		{
			name:    "unknown log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
		{
			name:    "negative collect timeout",
			mutate:  func(c *Config) { c.Inventory.CollectTimeout = -1 },
			wantErr: "inventory.collect_timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() error = nil, want %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_JoinsErrors(t *testing.T) {
	cfg := defaultConfig()
	cfg.Database.Path = ""
	cfg.API.Port = -1

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() error = nil, want joined errors")
	}
	if !strings.Contains(err.Error(), "; ") {
		t.Errorf("Validate() error = %v, want messages joined with \"; \"", err)
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
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

	cfg.Inventory.CollectTimeout = 15
	if got := cfg.GetCollectTimeout().Seconds(); got != 15 {
		t.Errorf("GetCollectTimeout() = %v, want 15", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("UDEVPARSE_DATABASE_PATH", "/custom/path.db")
	t.Setenv("UDEVPARSE_MQTT_ENABLED", "true")
	t.Setenv("UDEVPARSE_MQTT_HOST", "mqtt.example.com")
	t.Setenv("UDEVPARSE_MQTT_USERNAME", "testuser")
	t.Setenv("UDEVPARSE_MQTT_PASSWORD", "testpass")
	t.Setenv("UDEVPARSE_API_HOST", "192.168.1.1")
	t.Setenv("UDEVPARSE_API_PORT", "9090")
	t.Setenv("UDEVPARSE_INFLUXDB_URL", "http://influx:8086")
	t.Setenv("UDEVPARSE_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("UDEVPARSE_LOGGING_LEVEL", "debug")
	t.Setenv("UDEVPARSE_INVENTORY_EXPORT_DB", "/tmp/dump.txt")
	t.Setenv("UDEVPARSE_INVENTORY_UDEVADM", "/usr/bin/udevadm")

	if err := applyEnvOverrides(cfg); err != nil {
		t.Fatalf("applyEnvOverrides() error = %v", err)
	}

	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}

	if !cfg.MQTT.Enabled {
		t.Error("MQTT.Enabled = false, want true")
	}

	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}

	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}

	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}

	if cfg.API.Host != "192.168.1.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "192.168.1.1")
	}

	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}

	if cfg.InfluxDB.URL != "http://influx:8086" {
		t.Errorf("InfluxDB.URL = %q, want %q", cfg.InfluxDB.URL, "http://influx:8086")
	}

	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}

	if cfg.Inventory.ExportDB != "/tmp/dump.txt" {
		t.Errorf("Inventory.ExportDB = %q, want %q", cfg.Inventory.ExportDB, "/tmp/dump.txt")
	}

	if cfg.Inventory.Udevadm != "/usr/bin/udevadm" {
		t.Errorf("Inventory.Udevadm = %q, want %q", cfg.Inventory.Udevadm, "/usr/bin/udevadm")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaultConfig should validate, got %v", err)
	}

	if cfg.MQTT.Enabled {
		t.Error("defaultConfig should leave MQTT disabled")
	}

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}

	if cfg.API.Port != 8085 {
		t.Errorf("defaultConfig API.Port = %d, want 8085", cfg.API.Port)
	}

	if cfg.Inventory.ExportDB != "-" {
		t.Errorf("defaultConfig Inventory.ExportDB = %q, want \"-\"", cfg.Inventory.ExportDB)
	}
}
