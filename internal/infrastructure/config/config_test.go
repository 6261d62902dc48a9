package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every override so the host environment cannot leak into tests.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"MQTT_HOST", "MQTT_PORT",
		"DEVICESIM_BROKER_HOST", "DEVICESIM_BROKER_PORT",
		"DEVICESIM_DEVICES", "DEVICESIM_INTERVAL", "DEVICESIM_RETRY_DELAY",
		"DEVICESIM_PROFILE", "DEVICESIM_LOG_LEVEL", "DEVICESIM_INFLUXDB_TOKEN",
	} {
		t.Setenv(key, "")
	}
}

// testBuiltins mirrors the shape of the simulator's builtin profiles.
func testBuiltins() map[string]ProfileConfig {
	return map[string]ProfileConfig{
		"fleet": {
			TopicTemplate: "sim/device/{device_id}/telemetry",
			Fields:        []FieldConfig{{Name: "temp", Kind: FieldKindNumber, Baseline: 20, Spread: 5}},
		},
		"home": {
			TopicTemplate: "home/{device_id}/state",
			Devices: []DeviceProfileConfig{
				{ID: "sensor1", Fields: []FieldConfig{{Name: "value", Baseline: 23, Spread: 3}}},
			},
		},
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "devicesim.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Broker.Host != "localhost" || cfg.Broker.Port != 1883 {
		t.Errorf("broker = %s, want localhost:1883", cfg.BrokerAddress())
	}
	if cfg.Simulation.Devices != 5 {
		t.Errorf("Simulation.Devices = %d, want 5", cfg.Simulation.Devices)
	}
	if cfg.GetInterval() != 2*time.Second {
		t.Errorf("GetInterval() = %v, want 2s", cfg.GetInterval())
	}
	if cfg.GetRetryDelay() != 5*time.Second {
		t.Errorf("GetRetryDelay() = %v, want 5s", cfg.GetRetryDelay())
	}
	if cfg.Broker.GetKeepAlive() != 60*time.Second {
		t.Errorf("GetKeepAlive() = %v, want 60s", cfg.Broker.GetKeepAlive())
	}
	if err := cfg.Validate(testBuiltins()); err != nil {
		t.Errorf("Validate() on defaults error = %v", err)
	}
}

func TestLoad_ValidConfig(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `
broker:
  host: "broker.local"
  port: 1884
  client_id: "sim-01"
  qos: 1
simulation:
  devices: 3
  interval: 0.5
  retry_delay: 1.5
  profile: greenhouse
profiles:
  greenhouse:
    topic_template: "gh/{device_id}/reading"
    fields:
      - name: humidity
        kind: number
        baseline: 60
        spread: 10
        precision: 1
      - name: fan
        kind: choice
        choices: ["on", "off"]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BrokerAddress() != "broker.local:1884" {
		t.Errorf("BrokerAddress() = %q, want broker.local:1884", cfg.BrokerAddress())
	}
	if cfg.Broker.ClientID != "sim-01" {
		t.Errorf("Broker.ClientID = %q, want sim-01", cfg.Broker.ClientID)
	}
	if cfg.GetInterval() != 500*time.Millisecond {
		t.Errorf("GetInterval() = %v, want 500ms", cfg.GetInterval())
	}
	if cfg.GetRetryDelay() != 1500*time.Millisecond {
		t.Errorf("GetRetryDelay() = %v, want 1.5s", cfg.GetRetryDelay())
	}

	p, ok := cfg.LookupProfile("greenhouse", testBuiltins())
	if !ok {
		t.Fatal("LookupProfile(greenhouse) not found")
	}
	if len(p.Fields) != 2 || p.Fields[1].Choices[0] != "on" {
		t.Errorf("greenhouse fields = %+v", p.Fields)
	}

	if err := cfg.Validate(testBuiltins()); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/devicesim.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(path)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("MQTT_HOST", "mqtt-legacy")
	t.Setenv("MQTT_PORT", "1885")
	t.Setenv("DEVICESIM_BROKER_PORT", "1886")
	t.Setenv("DEVICESIM_DEVICES", "9")
	t.Setenv("DEVICESIM_INTERVAL", "0.25")
	t.Setenv("DEVICESIM_RETRY_DELAY", "3")
	t.Setenv("DEVICESIM_PROFILE", "home")
	t.Setenv("DEVICESIM_LOG_LEVEL", "debug")
	t.Setenv("DEVICESIM_INFLUXDB_TOKEN", "secret")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Broker.Host != "mqtt-legacy" {
		t.Errorf("Broker.Host = %q, want mqtt-legacy", cfg.Broker.Host)
	}
	if cfg.Broker.Port != 1886 {
		t.Errorf("Broker.Port = %d, want 1886 (DEVICESIM_ wins over MQTT_)", cfg.Broker.Port)
	}
	if cfg.Simulation.Devices != 9 {
		t.Errorf("Simulation.Devices = %d, want 9", cfg.Simulation.Devices)
	}
	if cfg.GetInterval() != 250*time.Millisecond {
		t.Errorf("GetInterval() = %v, want 250ms", cfg.GetInterval())
	}
	if cfg.GetRetryDelay() != 3*time.Second {
		t.Errorf("GetRetryDelay() = %v, want 3s", cfg.GetRetryDelay())
	}
	if cfg.Simulation.Profile != "home" {
		t.Errorf("Simulation.Profile = %q, want home", cfg.Simulation.Profile)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.InfluxDB.Token != "secret" {
		t.Errorf("InfluxDB.Token = %q, want secret", cfg.InfluxDB.Token)
	}
}

func TestLoad_MalformedEnvOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEVICESIM_DEVICES", "many")

	if _, err := Load(""); err == nil {
		t.Error("Load() expected error for non-numeric DEVICESIM_DEVICES")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "empty host",
			mutate:  func(c *Config) { c.Broker.Host = "" },
			wantErr: "broker.host",
		},
		{
			name:    "port zero",
			mutate:  func(c *Config) { c.Broker.Port = 0 },
			wantErr: "broker.port",
		},
		{
			name:    "port too large",
			mutate:  func(c *Config) { c.Broker.Port = 65536 },
			wantErr: "broker.port",
		},
		{
			name:    "invalid qos",
			mutate:  func(c *Config) { c.Broker.QoS = 3 },
			wantErr: "broker.qos",
		},
		{
			name:    "zero publish timeout",
			mutate:  func(c *Config) { c.Broker.PublishTimeout = 0 },
			wantErr: "broker.publish_timeout",
		},
		{
			name:    "zero devices",
			mutate:  func(c *Config) { c.Simulation.Devices = 0 },
			wantErr: "simulation.devices",
		},
		{
			name:    "negative interval",
			mutate:  func(c *Config) { c.Simulation.Interval = -1 },
			wantErr: "simulation.interval",
		},
		{
			name:    "zero retry delay",
			mutate:  func(c *Config) { c.Simulation.RetryDelay = 0 },
			wantErr: "simulation.retry_delay",
		},
		{
			name:    "unknown profile",
			mutate:  func(c *Config) { c.Simulation.Profile = "factory" },
			wantErr: `simulation.profile "factory"`,
		},
		{
			name:    "template without placeholder",
			mutate:  func(c *Config) { c.Simulation.TopicTemplate = "sim/all" },
			wantErr: "simulation.topic_template",
		},
		{
			name: "custom profile with bad field",
			mutate: func(c *Config) {
				c.Profiles = map[string]ProfileConfig{
					"bad": {Fields: []FieldConfig{{Name: "state", Kind: FieldKindChoice}}},
				}
			},
			wantErr: "profiles.bad.fields.state: choices required",
		},
		{
			name: "custom profile with unknown kind",
			mutate: func(c *Config) {
				c.Profiles = map[string]ProfileConfig{
					"bad": {Fields: []FieldConfig{{Name: "x", Kind: "vector"}}},
				}
			},
			wantErr: `unknown kind "vector"`,
		},
		{
			name:    "metrics port invalid when enabled",
			mutate:  func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Port = 0 },
			wantErr: "metrics.port",
		},
		{
			name:    "database path required when enabled",
			mutate:  func(c *Config) { c.Database.Enabled = true; c.Database.Path = "" },
			wantErr: "database.path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate(testBuiltins())
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_FixedDeviceProfileIgnoresCount(t *testing.T) {
	cfg := Default()
	cfg.Simulation.Profile = "home"
	cfg.Simulation.Devices = 0

	if err := cfg.Validate(testBuiltins()); err != nil {
		t.Errorf("Validate() error = %v, want nil for fixed-device profile", err)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Broker.Host = ""
	cfg.Simulation.Interval = 0

	err := cfg.Validate(testBuiltins())
	if err == nil {
		t.Fatal("Validate() expected error")
	}
	if !strings.Contains(err.Error(), "broker.host") || !strings.Contains(err.Error(), "simulation.interval") {
		t.Errorf("Validate() error = %v, want both problems reported", err)
	}
}

func TestLookupProfile_FilePrecedence(t *testing.T) {
	cfg := Default()
	cfg.Profiles = map[string]ProfileConfig{
		"fleet": {TopicTemplate: "custom/{device_id}", Fields: []FieldConfig{{Name: "x"}}},
	}

	p, ok := cfg.LookupProfile("fleet", testBuiltins())
	if !ok {
		t.Fatal("LookupProfile(fleet) not found")
	}
	if p.TopicTemplate != "custom/{device_id}" {
		t.Errorf("TopicTemplate = %q, want file-declared override", p.TopicTemplate)
	}
}
