// Package config provides configuration management for dlnad using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort      = 8200
	defaultServerTimeout   = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultMaxHeaderBytes  = 1 << 20
	defaultMaxConnections  = 50
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 10
	defaultConnMaxIdleTime = 30 * time.Minute
	defaultNotifyInterval  = 895 * time.Second
	defaultUpdatePoll      = 2 * time.Second
	defaultFriendlyName    = "dlnad"
	defaultModelName       = "Windows Media Connect compatible (dlnad)"
	defaultModelNumber     = "1"
	defaultSerialNumber    = "12345678"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Media    MediaConfig    `mapstructure:"media"`
	Device   DeviceConfig   `mapstructure:"device"`
	DLNA     DLNAConfig     `mapstructure:"dlna"`
	Scanner  ScannerConfig  `mapstructure:"scanner"`
	SSDP     SSDPConfig     `mapstructure:"ssdp"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Interface       string        `mapstructure:"interface"` // network interface name (empty = first non-loopback)
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxHeaderBytes  int           `mapstructure:"max_header_bytes"`
	MaxConnections  int           `mapstructure:"max_connections"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// StorageConfig holds file storage configuration.
type StorageConfig struct {
	BaseDir     string `mapstructure:"base_dir"`
	ArtCacheDir string `mapstructure:"art_cache_dir"`
}

// MediaRoot is a directory scanned into the catalog. Types restricts which
// media kinds the root contributes: any combination of V (video), A (audio),
// P (pictures). Empty means all.
type MediaRoot struct {
	Path  string `mapstructure:"path"`
	Types string `mapstructure:"types"`
}

// MediaConfig holds the media library configuration.
type MediaConfig struct {
	Roots []MediaRoot `mapstructure:"roots"`
}

// DeviceConfig holds the advertised UPnP device identity.
type DeviceConfig struct {
	FriendlyName    string `mapstructure:"friendly_name"`
	ModelName       string `mapstructure:"model_name"`
	ModelNumber     string `mapstructure:"model_number"`
	SerialNumber    string `mapstructure:"serial_number"`
	PresentationURL string `mapstructure:"presentation_url"`
	UUID            string `mapstructure:"uuid"` // empty = derive from interface MAC
}

// DLNAConfig holds DLNA protocol behavior configuration.
type DLNAConfig struct {
	// StrictDLNA tightens responses to the letter of the DLNA guidelines.
	StrictDLNA bool `mapstructure:"strict"`
	// MaxResponseSize caps a single DIDL-Lite response body (0 = unlimited).
	// Supports human-readable values like "2MB" or raw byte counts.
	MaxResponseSize ByteSize `mapstructure:"max_response_size"`
	// UpdatePollInterval is how often the SystemUpdateID poller inspects
	// the catalog for changes while clients are connected.
	UpdatePollInterval time.Duration `mapstructure:"update_poll_interval"`
}

// ScannerConfig holds library scanning configuration.
type ScannerConfig struct {
	ScanOnStart    bool   `mapstructure:"scan_on_start"`
	RescanSchedule string `mapstructure:"rescan_schedule"` // cron expression (minute granularity), empty = disabled
	Monitor        bool   `mapstructure:"monitor"`         // watch media roots for changes
}

// SSDPConfig holds SSDP discovery configuration.
type SSDPConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// NotifyInterval is the delay between unsolicited NOTIFY bursts.
	// Supports human-readable values like "895s" or "15m".
	NotifyInterval Duration `mapstructure:"notify_interval"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with DLNAD_ and use underscores for nesting.
// Example: DLNAD_SERVER_PORT=8200.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	SetDefaults(v)

	// Config file settings
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/dlnad")
		v.AddConfigPath("$HOME/.dlnad")
	}

	// Environment variable settings
	v.SetEnvPrefix("DLNAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults are in place.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.interface", "")
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", 0) // streaming responses must not be cut short
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.max_header_bytes", defaultMaxHeaderBytes)
	v.SetDefault("server.max_connections", defaultMaxConnections)

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	// Storage defaults
	v.SetDefault("storage.base_dir", "./data")
	v.SetDefault("storage.art_cache_dir", "art_cache")

	// Media defaults
	v.SetDefault("media.roots", []map[string]any{})

	// Device defaults
	v.SetDefault("device.friendly_name", defaultFriendlyName)
	v.SetDefault("device.model_name", defaultModelName)
	v.SetDefault("device.model_number", defaultModelNumber)
	v.SetDefault("device.serial_number", defaultSerialNumber)
	v.SetDefault("device.presentation_url", "/")
	v.SetDefault("device.uuid", "")

	// DLNA defaults
	v.SetDefault("dlna.strict", false)
	v.SetDefault("dlna.max_response_size", 0)
	v.SetDefault("dlna.update_poll_interval", defaultUpdatePoll)

	// Scanner defaults
	v.SetDefault("scanner.scan_on_start", true)
	v.SetDefault("scanner.rescan_schedule", "")
	v.SetDefault("scanner.monitor", true)

	// SSDP defaults
	v.SetDefault("ssdp.enabled", true)
	v.SetDefault("ssdp.notify_interval", defaultNotifyInterval)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}
	if c.Server.MaxHeaderBytes < 1 {
		return fmt.Errorf("server.max_header_bytes must be positive")
	}

	// Database validation
	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}

	// Storage validation
	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}

	// Media validation
	for i, root := range c.Media.Roots {
		if root.Path == "" {
			return fmt.Errorf("media.roots[%d].path is required", i)
		}
		for _, r := range strings.ToUpper(root.Types) {
			if r != 'V' && r != 'A' && r != 'P' {
				return fmt.Errorf("media.roots[%d].types may only contain V, A, P", i)
			}
		}
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabasePath returns the SQLite database file path. An explicit DSN wins;
// otherwise the file lives under the storage base directory.
func (c *Config) DatabasePath() string {
	if c.Database.DSN != "" {
		return c.Database.DSN
	}
	return fmt.Sprintf("%s/files.db", c.Storage.BaseDir)
}

// ArtCachePath returns the full path to the art cache directory.
func (c *StorageConfig) ArtCachePath() string {
	return fmt.Sprintf("%s/%s", c.BaseDir, c.ArtCacheDir)
}
