package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// TopicPlaceholder is substituted with the device ID in topic templates.
const TopicPlaceholder = "{device_id}"

// Field kinds accepted in profile definitions.
const (
	FieldKindNumber = "number"
	FieldKindChoice = "choice"
	FieldKindConst  = "const"
)

// Config is the root configuration structure for devicesim.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Broker     BrokerConfig             `yaml:"broker"`
	Simulation SimulationConfig         `yaml:"simulation"`
	Profiles   map[string]ProfileConfig `yaml:"profiles"`
	Logging    LoggingConfig            `yaml:"logging"`
	InfluxDB   InfluxDBConfig           `yaml:"influxdb"`
	Database   DatabaseConfig           `yaml:"database"`
	Metrics    MetricsConfig            `yaml:"metrics"`
}

// BrokerConfig contains MQTT broker connection settings.
type BrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
	QoS      int    `yaml:"qos"`

	// KeepAlive is the MQTT keepalive interval in seconds.
	KeepAlive int `yaml:"keepalive"`

	// ConnectTimeout bounds a single connect attempt (seconds).
	ConnectTimeout float64 `yaml:"connect_timeout"`

	// PublishTimeout bounds a single publish (seconds). Must be finite so
	// that a stalled broker cannot block shutdown.
	PublishTimeout float64 `yaml:"publish_timeout"`

	// Status enables retained online/offline status messages and the LWT.
	Status bool `yaml:"status"`
}

// SimulationConfig contains the publish cadence and device fleet settings.
type SimulationConfig struct {
	Devices int `yaml:"devices"`

	// Interval between ticks in seconds.
	Interval float64 `yaml:"interval"`

	// RetryDelay between connect attempts in seconds.
	RetryDelay float64 `yaml:"retry_delay"`

	Profile string `yaml:"profile"`

	// TopicTemplate overrides the profile's template when set.
	TopicTemplate string `yaml:"topic_template"`

	// Seed for the payload generator. 0 picks a random seed.
	Seed uint64 `yaml:"seed"`
}

// ProfileConfig declares a custom generation profile.
type ProfileConfig struct {
	TopicTemplate string                `yaml:"topic_template"`
	Fields        []FieldConfig         `yaml:"fields"`
	Devices       []DeviceProfileConfig `yaml:"devices"`
}

// DeviceProfileConfig pins a named device to its own field set.
type DeviceProfileConfig struct {
	ID     string        `yaml:"id"`
	Fields []FieldConfig `yaml:"fields"`
}

// FieldConfig describes one payload field.
type FieldConfig struct {
	Name      string   `yaml:"name"`
	Kind      string   `yaml:"kind"`
	Baseline  float64  `yaml:"baseline"`
	Spread    float64  `yaml:"spread"`
	Precision int      `yaml:"precision"`
	Choices   []string `yaml:"choices"`
	Value     string   `yaml:"value"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
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

// DatabaseConfig contains SQLite run history settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MetricsConfig contains the status server settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults), skipped when path is empty
//  3. Environment variables (override file values)
//
// Validation is left to the caller so that command-line overrides can be
// applied first; call Validate before using the result.
//
// Parameters:
//   - path: Path to the YAML configuration file, or "" for defaults only
//
// Returns:
//   - *Config: Loaded configuration
//   - error: If the file cannot be read or parsed, or an override is malformed
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

// defaultConfig returns a Config with sensible defaults.
// Simulation defaults match the original fleet simulator's flags.
func defaultConfig() *Config {
	return &Config{
		Broker: BrokerConfig{
			Host:           "localhost",
			Port:           1883,
			QoS:            0,
			KeepAlive:      60,
			ConnectTimeout: 10,
			PublishTimeout: 5,
			Status:         true,
		},
		Simulation: SimulationConfig{
			Devices:    5,
			Interval:   2.0,
			RetryDelay: 5.0,
			Profile:    "fleet",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		InfluxDB: InfluxDBConfig{
			URL:           "http://localhost:8086",
			Org:           "devicesim",
			Bucket:        "devicesim",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Database: DatabaseConfig{
			Path:        "./data/devicesim.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Metrics: MetricsConfig{
			Host: "127.0.0.1",
			Port: 9108,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Variables follow the pattern DEVICESIM_SECTION_KEY. MQTT_HOST and MQTT_PORT
// are honoured for compatibility with the home sensor publisher and lose to
// their DEVICESIM_ counterparts.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("MQTT_HOST"); v != "" {
		cfg.Broker.Host = v
	}
	if v := os.Getenv("DEVICESIM_BROKER_HOST"); v != "" {
		cfg.Broker.Host = v
	}

	for _, key := range []string{"MQTT_PORT", "DEVICESIM_BROKER_PORT"} {
		if v := os.Getenv(key); v != "" {
			port, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			cfg.Broker.Port = port
		}
	}

	if v := os.Getenv("DEVICESIM_DEVICES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DEVICESIM_DEVICES: %w", err)
		}
		cfg.Simulation.Devices = n
	}
	if v := os.Getenv("DEVICESIM_INTERVAL"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("DEVICESIM_INTERVAL: %w", err)
		}
		cfg.Simulation.Interval = f
	}
	if v := os.Getenv("DEVICESIM_RETRY_DELAY"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("DEVICESIM_RETRY_DELAY: %w", err)
		}
		cfg.Simulation.RetryDelay = f
	}
	if v := os.Getenv("DEVICESIM_PROFILE"); v != "" {
		cfg.Simulation.Profile = v
	}

	if v := os.Getenv("DEVICESIM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("DEVICESIM_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	return nil
}

// Validate checks the configuration for errors.
//
// Profile names resolve against the profiles declared in the file first and
// then against builtins, which the simulator supplies as data.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate(builtins map[string]ProfileConfig) error {
	var errs []string

	if c.Broker.Host == "" {
		errs = append(errs, "broker.host is required")
	}
	if c.Broker.Port < 1 || c.Broker.Port > 65535 {
		errs = append(errs, "broker.port must be between 1 and 65535")
	}
	if c.Broker.QoS < 0 || c.Broker.QoS > 2 {
		errs = append(errs, "broker.qos must be 0, 1, or 2")
	}
	if c.Broker.KeepAlive < 0 {
		errs = append(errs, "broker.keepalive must not be negative")
	}
	if c.Broker.ConnectTimeout <= 0 {
		errs = append(errs, "broker.connect_timeout must be positive")
	}
	if c.Broker.PublishTimeout <= 0 {
		errs = append(errs, "broker.publish_timeout must be positive")
	}

	if c.Simulation.Interval <= 0 {
		errs = append(errs, "simulation.interval must be positive")
	}
	if c.Simulation.RetryDelay <= 0 {
		errs = append(errs, "simulation.retry_delay must be positive")
	}

	profile, ok := c.LookupProfile(c.Simulation.Profile, builtins)
	switch {
	case !ok:
		errs = append(errs, fmt.Sprintf("simulation.profile %q is not defined", c.Simulation.Profile))
	case len(profile.Devices) == 0 && c.Simulation.Devices <= 0:
		// Fixed-device profiles ignore the device count.
		errs = append(errs, "simulation.devices must be positive")
	}

	if t := c.Simulation.TopicTemplate; t != "" && !strings.Contains(t, TopicPlaceholder) {
		errs = append(errs, "simulation.topic_template must contain "+TopicPlaceholder)
	}

	for name, p := range c.Profiles {
		errs = append(errs, validateProfile(name, p)...)
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when database is enabled")
	}
	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		errs = append(errs, "metrics.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// LookupProfile resolves a profile by name, preferring file-declared profiles.
func (c *Config) LookupProfile(name string, builtins map[string]ProfileConfig) (ProfileConfig, bool) {
	if p, ok := c.Profiles[name]; ok {
		return p, true
	}
	p, ok := builtins[name]
	return p, ok
}

// validateProfile checks one custom profile declaration.
func validateProfile(name string, p ProfileConfig) []string {
	var errs []string
	prefix := "profiles." + name

	if p.TopicTemplate != "" && !strings.Contains(p.TopicTemplate, TopicPlaceholder) {
		errs = append(errs, prefix+".topic_template must contain "+TopicPlaceholder)
	}
	if len(p.Fields) == 0 && len(p.Devices) == 0 {
		errs = append(errs, prefix+" must declare fields or devices")
	}

	seen := make(map[string]bool)
	for _, d := range p.Devices {
		if d.ID == "" {
			errs = append(errs, prefix+".devices[].id is required")
			continue
		}
		if seen[d.ID] {
			errs = append(errs, fmt.Sprintf("%s.devices: duplicate id %q", prefix, d.ID))
		}
		seen[d.ID] = true
		for _, f := range d.Fields {
			if err := f.validate(); err != nil {
				errs = append(errs, fmt.Sprintf("%s.devices.%s.%s", prefix, d.ID, err))
			}
		}
	}
	for _, f := range p.Fields {
		if err := f.validate(); err != nil {
			errs = append(errs, fmt.Sprintf("%s.fields.%s", prefix, err))
		}
	}

	return errs
}

func (f FieldConfig) validate() error {
	if f.Name == "" {
		return errors.New("name: required")
	}
	switch f.Kind {
	case FieldKindNumber, "":
		if f.Spread < 0 {
			return fmt.Errorf("%s: spread must not be negative", f.Name)
		}
		if f.Precision < 0 {
			return fmt.Errorf("%s: precision must not be negative", f.Name)
		}
	case FieldKindChoice:
		if len(f.Choices) == 0 {
			return fmt.Errorf("%s: choices required", f.Name)
		}
	case FieldKindConst:
	default:
		return fmt.Errorf("%s: unknown kind %q", f.Name, f.Kind)
	}
	return nil
}

// BrokerAddress returns host:port for logging.
func (c *Config) BrokerAddress() string {
	return fmt.Sprintf("%s:%d", c.Broker.Host, c.Broker.Port)
}

// GetInterval returns the publish interval as a Duration.
func (c *Config) GetInterval() time.Duration {
	return seconds(c.Simulation.Interval)
}

// GetRetryDelay returns the connect retry delay as a Duration.
func (c *Config) GetRetryDelay() time.Duration {
	return seconds(c.Simulation.RetryDelay)
}

// GetConnectTimeout returns the per-attempt connect timeout as a Duration.
func (b BrokerConfig) GetConnectTimeout() time.Duration {
	return seconds(b.ConnectTimeout)
}

// GetPublishTimeout returns the per-publish timeout as a Duration.
func (b BrokerConfig) GetPublishTimeout() time.Duration {
	return seconds(b.PublishTimeout)
}

// GetKeepAlive returns the keepalive interval as a Duration.
func (b BrokerConfig) GetKeepAlive() time.Duration {
	return time.Duration(b.KeepAlive) * time.Second
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
