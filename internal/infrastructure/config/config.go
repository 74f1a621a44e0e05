package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Gray Gate.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site       SiteConfig       `yaml:"site"`
	Controller ControllerConfig `yaml:"controller"`
	Database   DatabaseConfig   `yaml:"database"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	API        APIConfig        `yaml:"api"`
	Logging    LoggingConfig    `yaml:"logging"`
	Mirror     MirrorConfig     `yaml:"mirror"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// ControllerConfig contains connection settings for the remote
// network-controller appliance whose configuration Gray Gate mirrors.
type ControllerConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	TLS       bool   `yaml:"tls"`
	VerifyTLS bool   `yaml:"verify_tls"`
	APIKey    string `yaml:"api_key"`
	Site      string `yaml:"site"`
	Timeout   int    `yaml:"timeout"` // seconds, per-request
}

// GetTimeout returns the per-request controller timeout as a Duration.
func (c ControllerConfig) GetTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// BaseURL returns the controller API base URL built from host, port and TLS.
func (c ControllerConfig) BaseURL() string {
	scheme := "http"
	if c.TLS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings for the optional
// change-event history recorder.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains settings for the read-only ops HTTP endpoint.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// GetReadTimeout returns the API read timeout as a Duration.
func (a APIConfig) GetReadTimeout() time.Duration {
	return time.Duration(a.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (a APIConfig) GetWriteTimeout() time.Duration {
	return time.Duration(a.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (a APIConfig) GetIdleTimeout() time.Duration {
	return time.Duration(a.Timeouts.Idle) * time.Second
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MirrorConfig contains the reconciliation scheduler settings.
// All values are positive integer seconds.
type MirrorConfig struct {
	// BaseInterval is the quiescent polling cadence. It always eventually
	// fires so externally-initiated controller changes are picked up even
	// with no local activity.
	BaseInterval int `yaml:"base_interval"`

	// ActiveInterval is the accelerated cadence used while local activity
	// is fresh (within ActivityTimeout of the last local mutation).
	ActiveInterval int `yaml:"active_interval"`

	// RealtimeInterval is the fastest cadence, used while a locally
	// initiated mutation is still awaiting remote confirmation.
	RealtimeInterval int `yaml:"realtime_interval"`

	// ActivityTimeout is how long after the last local mutation the
	// accelerated cadences remain in effect before stepping down to base.
	ActivityTimeout int `yaml:"activity_timeout"`

	// DebounceWindow is the coalescing delay after a local mutation before
	// a reconciliation cycle is requested.
	DebounceWindow int `yaml:"debounce_window"`

	// OptimisticExpiry is how long a locally assumed state is held before
	// reverting to the last confirmed value if no fetch confirms it.
	OptimisticExpiry int `yaml:"optimistic_expiry"`
}

// GetBaseInterval returns the base polling interval as a Duration.
func (m MirrorConfig) GetBaseInterval() time.Duration {
	return time.Duration(m.BaseInterval) * time.Second
}

// GetActiveInterval returns the active polling interval as a Duration.
func (m MirrorConfig) GetActiveInterval() time.Duration {
	return time.Duration(m.ActiveInterval) * time.Second
}

// GetRealtimeInterval returns the realtime polling interval as a Duration.
func (m MirrorConfig) GetRealtimeInterval() time.Duration {
	return time.Duration(m.RealtimeInterval) * time.Second
}

// GetActivityTimeout returns the activity timeout as a Duration.
func (m MirrorConfig) GetActivityTimeout() time.Duration {
	return time.Duration(m.ActivityTimeout) * time.Second
}

// GetDebounceWindow returns the debounce window as a Duration.
func (m MirrorConfig) GetDebounceWindow() time.Duration {
	return time.Duration(m.DebounceWindow) * time.Second
}

// GetOptimisticExpiry returns the optimistic expiry as a Duration.
func (m MirrorConfig) GetOptimisticExpiry() time.Duration {
	return time.Duration(m.OptimisticExpiry) * time.Second
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYGATE_SECTION_KEY
// For example: GRAYGATE_DATABASE_PATH, GRAYGATE_CONTROLLER_API_KEY
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

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site-001",
			Name: "Gray Gate",
		},
		Controller: ControllerConfig{
			Port:      443,
			TLS:       true,
			VerifyTLS: true,
			Site:      "default",
			Timeout:   15,
		},
		Database: DatabaseConfig{
			Path:        "./data/graygate.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graygate",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8091,
			Timeouts: APITimeoutConfig{
				Read:  15,
				Write: 15,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Mirror: MirrorConfig{
			BaseInterval:     180,
			ActiveInterval:   30,
			RealtimeInterval: 5,
			ActivityTimeout:  300,
			DebounceWindow:   3,
			OptimisticExpiry: 60,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYGATE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GRAYGATE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("GRAYGATE_CONTROLLER_HOST"); v != "" {
		cfg.Controller.Host = v
	}
	if v := os.Getenv("GRAYGATE_CONTROLLER_API_KEY"); v != "" {
		cfg.Controller.APIKey = v
	}

	if v := os.Getenv("GRAYGATE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYGATE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYGATE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("GRAYGATE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Controller.Host == "" {
		errs = append(errs, "controller.host is required (set GRAYGATE_CONTROLLER_HOST environment variable)")
	}
	if c.Controller.Port < 1 || c.Controller.Port > 65535 {
		errs = append(errs, "controller.port must be between 1 and 65535")
	}
	if c.Controller.Timeout < 1 {
		errs = append(errs, "controller.timeout must be at least 1 second")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	errs = append(errs, c.Mirror.validate()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validate checks the mirror scheduler settings.
// All intervals must be positive; the tiers must not be inverted.
func (m MirrorConfig) validate() []string {
	var errs []string

	for _, iv := range []struct {
		name  string
		value int
	}{
		{"mirror.base_interval", m.BaseInterval},
		{"mirror.active_interval", m.ActiveInterval},
		{"mirror.realtime_interval", m.RealtimeInterval},
		{"mirror.activity_timeout", m.ActivityTimeout},
		{"mirror.debounce_window", m.DebounceWindow},
		{"mirror.optimistic_expiry", m.OptimisticExpiry},
	} {
		if iv.value < 1 {
			errs = append(errs, iv.name+" must be a positive number of seconds")
		}
	}

	if m.RealtimeInterval > m.ActiveInterval {
		errs = append(errs, "mirror.realtime_interval must not exceed mirror.active_interval")
	}
	if m.ActiveInterval > m.BaseInterval {
		errs = append(errs, "mirror.active_interval must not exceed mirror.base_interval")
	}

	return errs
}
