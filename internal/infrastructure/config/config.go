package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/ncmreynolds/serial2mqtt/internal/protocol"
)

// Config is the root configuration structure for serial2mqtt.
// It is loaded from YAML or TOML and can be overridden by environment variables.
type Config struct {
	Bridge   BridgeConfig   `yaml:"bridge" toml:"bridge"`
	Serial   SerialConfig   `yaml:"serial" toml:"serial"`
	Device   DeviceConfig   `yaml:"device" toml:"device"`
	MQTT     MQTTConfig     `yaml:"mqtt" toml:"mqtt"`
	Journal  JournalConfig  `yaml:"journal" toml:"journal"`
	InfluxDB InfluxDBConfig `yaml:"influxdb" toml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
}

// BridgeConfig contains settings for the host-side bridge process.
type BridgeConfig struct {
	// ID names this bridge in status topics and metrics.
	ID string `yaml:"id" toml:"id"`

	// Encoding is the frame form used when forwarding broker messages to
	// the device: "array" or "object".
	Encoding string `yaml:"encoding" toml:"encoding"`

	// StatusInterval is how often bridge status is published, in seconds.
	StatusInterval int `yaml:"status_interval" toml:"status_interval"`

	// MaxLineLength bounds a single line read from the device, in bytes.
	MaxLineLength int `yaml:"max_line_length" toml:"max_line_length"`

	// DiagnosticPrefix marks device debug lines. Must match the device's
	// setting for diagnostics to be recognised.
	DiagnosticPrefix string `yaml:"diagnostic_prefix" toml:"diagnostic_prefix"`

	// PublishDiagnostics republishes device debug lines to MQTT.
	PublishDiagnostics bool `yaml:"publish_diagnostics" toml:"publish_diagnostics"`
}

// SerialConfig names the byte stream between device and bridge.
type SerialConfig struct {
	// URL is tcp://host:port, unix:///path, file:///dev/ttyX or
	// listen://host:port.
	URL string `yaml:"url" toml:"url"`

	// Backlog is the most unread bytes buffered on the device side.
	Backlog int `yaml:"backlog" toml:"backlog"`
}

// DeviceConfig contains settings for the device session and simulator.
type DeviceConfig struct {
	Encoding         string `yaml:"encoding" toml:"encoding"`
	LoopbackTopic    string `yaml:"loopback_topic" toml:"loopback_topic"`
	LoopbackInterval int    `yaml:"loopback_interval_ms" toml:"loopback_interval_ms"`
	StrictSequence   bool   `yaml:"strict_sequence" toml:"strict_sequence"`
	StrictFrames     bool   `yaml:"strict_frames" toml:"strict_frames"`
	Debug            bool   `yaml:"debug" toml:"debug"`
	DiagnosticPrefix string `yaml:"diagnostic_prefix" toml:"diagnostic_prefix"`

	// Subscriptions are the topics the simulator subscribes to.
	Subscriptions []string `yaml:"subscriptions" toml:"subscriptions"`

	// PublishTopic receives the simulator's counter while online.
	PublishTopic string `yaml:"publish_topic" toml:"publish_topic"`

	// PublishInterval is in milliseconds.
	PublishInterval int `yaml:"publish_interval_ms" toml:"publish_interval_ms"`

	// PollInterval is the Housekeeping period in milliseconds.
	PollInterval int `yaml:"poll_interval_ms" toml:"poll_interval_ms"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker" toml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth" toml:"auth"`
	QoS       int                 `yaml:"qos" toml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect" toml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host" toml:"host"`
	Port     int    `yaml:"port" toml:"port"`
	TLS      bool   `yaml:"tls" toml:"tls"`
	ClientID string `yaml:"client_id" toml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username" toml:"username"`
	Password string `yaml:"password" toml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay" toml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay" toml:"max_delay"`
}

// JournalConfig contains settings for the SQLite frame journal.
type JournalConfig struct {
	Enabled     bool   `yaml:"enabled" toml:"enabled"`
	Path        string `yaml:"path" toml:"path"`
	WALMode     bool   `yaml:"wal_mode" toml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout" toml:"busy_timeout"`

	// Retention is how long entries are kept, in hours. 0 keeps everything.
	Retention int `yaml:"retention_hours" toml:"retention_hours"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string
	WALMode     bool
	BusyTimeout int
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled" toml:"enabled"`
	URL           string `yaml:"url" toml:"url"`
	Token         string `yaml:"token" toml:"token"`
	Org           string `yaml:"org" toml:"org"`
	Bucket        string `yaml:"bucket" toml:"bucket"`
	BatchSize     int    `yaml:"batch_size" toml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval" toml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
	Output string `yaml:"output" toml:"output"`
}

// Load reads configuration from a file, applies environment overrides,
// and validates the result.
//
// Files ending in .toml are parsed as TOML; anything else as YAML.
//
// Parameters:
//   - path: Path to the configuration file
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

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration with environment overrides
// applied, for running without a config file.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

// defaultConfig returns a Config with sensible default values.
func defaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			ID:               "serial2mqtt",
			Encoding:         "array",
			StatusInterval:   30,
			MaxLineLength:    4096,
			DiagnosticPrefix: "Arduino:",
		},
		Serial: SerialConfig{
			URL:     "file:///dev/ttyUSB0",
			Backlog: 4096,
		},
		Device: DeviceConfig{
			Encoding:         "array",
			LoopbackInterval: 4500,
			DiagnosticPrefix: "Arduino:",
			PublishInterval:  10000,
			PollInterval:     10,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "serial2mqtt",
			},
			QoS: 0,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Journal: JournalConfig{
			Path:        "./data/serial2mqtt.db",
			WALMode:     true,
			BusyTimeout: 5,
			Retention:   24 * 7,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies SERIAL2MQTT_* environment variables.
// Environment variables take precedence over file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERIAL2MQTT_BRIDGE_ID"); v != "" {
		cfg.Bridge.ID = v
	}
	if v := os.Getenv("SERIAL2MQTT_SERIAL_URL"); v != "" {
		cfg.Serial.URL = v
	}

	if v := os.Getenv("SERIAL2MQTT_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SERIAL2MQTT_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("SERIAL2MQTT_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SERIAL2MQTT_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("SERIAL2MQTT_JOURNAL_PATH"); v != "" {
		cfg.Journal.Path = v
	}

	if v := os.Getenv("SERIAL2MQTT_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("SERIAL2MQTT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks that the configuration is valid and complete.
// All problems are collected and reported together.
func (c *Config) Validate() error {
	var errs []string

	if c.Bridge.ID == "" {
		errs = append(errs, "bridge.id is required")
	}
	if _, err := protocol.ParseEncoding(c.Bridge.Encoding); err != nil {
		errs = append(errs, "bridge.encoding must be array or object")
	}
	if c.Bridge.MaxLineLength < 0 {
		errs = append(errs, "bridge.max_line_length cannot be negative")
	}

	if c.Serial.URL == "" {
		errs = append(errs, "serial.url is required")
	}

	if _, err := protocol.ParseEncoding(c.Device.Encoding); err != nil {
		errs = append(errs, "device.encoding must be array or object")
	}
	if c.Device.LoopbackInterval < 0 {
		errs = append(errs, "device.loopback_interval_ms cannot be negative")
	}
	if c.Device.PollInterval < 1 {
		errs = append(errs, "device.poll_interval_ms must be positive")
	}

	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.Journal.Enabled && c.Journal.Path == "" {
		errs = append(errs, "journal.path is required when the journal is enabled")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// BridgeEncoding returns the parsed bridge encoding.
func (c *Config) BridgeEncoding() protocol.Encoding {
	enc, _ := protocol.ParseEncoding(c.Bridge.Encoding)
	return enc
}

// DeviceEncoding returns the parsed device encoding.
func (c *Config) DeviceEncoding() protocol.Encoding {
	enc, _ := protocol.ParseEncoding(c.Device.Encoding)
	return enc
}

// GetStatusInterval returns the bridge status interval as a Duration.
func (c *Config) GetStatusInterval() time.Duration {
	return time.Duration(c.Bridge.StatusInterval) * time.Second
}

// GetLoopbackInterval returns the device heartbeat interval as a Duration.
func (c *Config) GetLoopbackInterval() time.Duration {
	return time.Duration(c.Device.LoopbackInterval) * time.Millisecond
}

// GetPollInterval returns the device Housekeeping period as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Device.PollInterval) * time.Millisecond
}

// GetPublishInterval returns the simulator publish period as a Duration.
func (c *Config) GetPublishInterval() time.Duration {
	return time.Duration(c.Device.PublishInterval) * time.Millisecond
}

// GetRetention returns the journal retention as a Duration.
func (c *Config) GetRetention() time.Duration {
	return time.Duration(c.Journal.Retention) * time.Hour
}

// Database returns the SQLite settings for the journal.
func (j JournalConfig) Database() DatabaseConfig {
	return DatabaseConfig{
		Path:        j.Path,
		WALMode:     j.WALMode,
		BusyTimeout: j.BusyTimeout,
	}
}
