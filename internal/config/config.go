// ABOUTME: Configuration loading and parsing for the waypoints CLI
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable that overrides the config location.
const EnvConfigPath = "WAYPOINTS_CONFIG"

// Defaults applied to fields the file leaves empty.
const (
	DefaultDriver             = "sqlite"
	DefaultBusyTimeout        = 5 * time.Second
	DefaultFolderDeletePolicy = "detach"
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
)

// Config represents the complete waypoints configuration
type Config struct {
	Database DatabaseConfig `yaml:"database" toml:"database"`
	Holders  HoldersConfig  `yaml:"holders" toml:"holders"`
	Auth     AuthConfig     `yaml:"auth" toml:"auth"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path         string        `yaml:"path" toml:"path" env:"WAYPOINTS_DATABASE_PATH"`
	Driver       string        `yaml:"driver" toml:"driver" env:"WAYPOINTS_DATABASE_DRIVER"` // sqlite (pure Go) or sqlite3 (cgo)
	MaxOpenConns int           `yaml:"max_open_conns" toml:"max_open_conns" env:"WAYPOINTS_DATABASE_MAX_OPEN_CONNS"`
	BusyTimeout  time.Duration `yaml:"-" toml:"-" env:"WAYPOINTS_DATABASE_BUSY_TIMEOUT"`

	// Raw string value for unmarshaling
	BusyTimeoutRaw string `yaml:"busy_timeout" toml:"busy_timeout"`
}

// HoldersConfig holds holder store behaviour
type HoldersConfig struct {
	// FolderDeletePolicy is detach (waypoints become top-level) or delete.
	FolderDeletePolicy string `yaml:"folder_delete_policy" toml:"folder_delete_policy" env:"WAYPOINTS_FOLDER_DELETE_POLICY"`
}

// AuthConfig holds capability token configuration
type AuthConfig struct {
	TokenSecret string `yaml:"token_secret" toml:"token_secret" env:"WAYPOINTS_TOKEN_SECRET"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level" env:"WAYPOINTS_LOG_LEVEL"`
	Format string `yaml:"format" toml:"format" env:"WAYPOINTS_LOG_FORMAT"`
}

// Default returns the built-in configuration, ignoring files and environment.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// DefaultPath returns the config file location: $WAYPOINTS_CONFIG if set,
// otherwise waypoints/config.yaml under the user config directory.
func DefaultPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml"
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "waypoints", "config.yaml")
}

// LoadOrDefault loads path. When the file does not exist the defaults are
// used, still subject to WAYPOINTS_* environment overrides.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		var cfg Config
		if err := cfg.finish(); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	return Load(path)
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// finish applies environment overrides, then defaults, then validates.
func (c *Config) finish() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parsing environment: %w", err)
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Database.Path == "" {
		c.Database.Path = defaultDatabasePath()
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDriver
	}
	if c.Database.BusyTimeout == 0 {
		c.Database.BusyTimeout = DefaultBusyTimeout
	}
	if c.Holders.FolderDeletePolicy == "" {
		c.Holders.FolderDeletePolicy = DefaultFolderDeletePolicy
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

func defaultDatabasePath() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "waypoints.db"
		}
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, "waypoints", "waypoints.db")
}

// Validate checks that all configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch c.Database.Driver {
	case "sqlite", "sqlite3":
	default:
		return fmt.Errorf("database.driver must be sqlite or sqlite3, got %q", c.Database.Driver)
	}

	if c.Database.MaxOpenConns < 0 {
		return fmt.Errorf("database.max_open_conns must not be negative")
	}
	if c.Database.BusyTimeout < 0 {
		return fmt.Errorf("database.busy_timeout must not be negative")
	}

	switch c.Holders.FolderDeletePolicy {
	case "detach", "delete":
	default:
		return fmt.Errorf("holders.folder_delete_policy must be detach or delete, got %q", c.Holders.FolderDeletePolicy)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Database.BusyTimeoutRaw != "" {
		cfg.Database.BusyTimeout, err = time.ParseDuration(cfg.Database.BusyTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing busy_timeout %q: %w", cfg.Database.BusyTimeoutRaw, err)
		}
	}

	return nil
}
