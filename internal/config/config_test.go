// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion, defaults, and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
database:
  path: "./test.db"
  driver: "sqlite3"
  busy_timeout: "250ms"
  max_open_conns: 4

holders:
  folder_delete_policy: "delete"

auth:
  token_secret: "s3cret"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "./test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./test.db")
	}
	if cfg.Database.Driver != "sqlite3" {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, "sqlite3")
	}
	if cfg.Database.BusyTimeout != 250*time.Millisecond {
		t.Errorf("Database.BusyTimeout = %v, want %v", cfg.Database.BusyTimeout, 250*time.Millisecond)
	}
	if cfg.Database.MaxOpenConns != 4 {
		t.Errorf("Database.MaxOpenConns = %d, want 4", cfg.Database.MaxOpenConns)
	}
	if cfg.Holders.FolderDeletePolicy != "delete" {
		t.Errorf("Holders.FolderDeletePolicy = %q, want %q", cfg.Holders.FolderDeletePolicy, "delete")
	}
	if cfg.Auth.TokenSecret != "s3cret" {
		t.Errorf("Auth.TokenSecret = %q, want %q", cfg.Auth.TokenSecret, "s3cret")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}
}

func TestLoad_TOML(t *testing.T) {
	configPath := writeConfig(t, "config.toml", `
[database]
path = "./test.db"
busy_timeout = "2s"

[holders]
folder_delete_policy = "delete"

[logging]
level = "warn"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "./test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./test.db")
	}
	if cfg.Database.BusyTimeout != 2*time.Second {
		t.Errorf("Database.BusyTimeout = %v, want %v", cfg.Database.BusyTimeout, 2*time.Second)
	}
	if cfg.Holders.FolderDeletePolicy != "delete" {
		t.Errorf("Holders.FolderDeletePolicy = %q, want %q", cfg.Holders.FolderDeletePolicy, "delete")
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "warn")
	}
	if cfg.Logging.Format != DefaultLogFormat {
		t.Errorf("Logging.Format = %q, want default %q", cfg.Logging.Format, DefaultLogFormat)
	}
}

func TestLoad_Defaults(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
database:
  path: "./test.db"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Driver != DefaultDriver {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, DefaultDriver)
	}
	if cfg.Database.BusyTimeout != DefaultBusyTimeout {
		t.Errorf("Database.BusyTimeout = %v, want %v", cfg.Database.BusyTimeout, DefaultBusyTimeout)
	}
	if cfg.Holders.FolderDeletePolicy != DefaultFolderDeletePolicy {
		t.Errorf("Holders.FolderDeletePolicy = %q, want %q", cfg.Holders.FolderDeletePolicy, DefaultFolderDeletePolicy)
	}
	if cfg.Logging.Level != DefaultLogLevel {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, DefaultLogLevel)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_WAYPOINTS_SECRET", "from-env")
	t.Setenv("TEST_WAYPOINTS_DB", "/tmp/from-env.db")

	configPath := writeConfig(t, "config.yaml", `
database:
  path: "${TEST_WAYPOINTS_DB}"
auth:
  token_secret: "${TEST_WAYPOINTS_SECRET}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/from-env.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/from-env.db")
	}
	if cfg.Auth.TokenSecret != "from-env" {
		t.Errorf("Auth.TokenSecret = %q, want %q", cfg.Auth.TokenSecret, "from-env")
	}
}

func TestLoad_EnvVarExpansion_UnsetVar(t *testing.T) {
	os.Unsetenv("UNSET_WAYPOINTS_SECRET")

	configPath := writeConfig(t, "config.yaml", `
database:
  path: "./test.db"
auth:
  token_secret: "${UNSET_WAYPOINTS_SECRET}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Auth.TokenSecret != "" {
		t.Errorf("Auth.TokenSecret = %q, want empty string for unset env var", cfg.Auth.TokenSecret)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.Database.Path == "" {
		t.Error("Database.Path should default to a data directory path")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() error = %v", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
database:
  path: [unclosed
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected error for invalid YAML, got nil")
	}
	if !strings.Contains(err.Error(), "parsing config file") {
		t.Errorf("error = %q, want it to mention parsing", err)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
database:
  path: "./test.db"
  busy_timeout: "soon"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected error for invalid duration, got nil")
	}
	if !strings.Contains(err.Error(), "busy_timeout") {
		t.Errorf("error = %q, want it to name busy_timeout", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"missing path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "postgres" }, "database.driver"},
		{"negative conns", func(c *Config) { c.Database.MaxOpenConns = -1 }, "max_open_conns"},
		{"negative timeout", func(c *Config) { c.Database.BusyTimeout = -time.Second }, "busy_timeout"},
		{"unknown policy", func(c *Config) { c.Holders.FolderDeletePolicy = "orphan" }, "folder_delete_policy"},
		{"unknown level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"upper level", func(c *Config) { c.Logging.Level = "DEBUG" }, ""},
		{"unknown format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv(EnvConfigPath, "/etc/waypoints.toml")
	if got := DefaultPath(); got != "/etc/waypoints.toml" {
		t.Errorf("DefaultPath() = %q, want the %s value", got, EnvConfigPath)
	}

	t.Setenv(EnvConfigPath, "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	want := filepath.Join("/xdg", "waypoints", "config.yaml")
	if got := DefaultPath(); got != want {
		t.Errorf("DefaultPath() = %q, want %q", got, want)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR1", "value1")
	t.Setenv("TEST_VAR2", "value2")

	tests := []struct {
		input string
		want  string
	}{
		{"no vars here", "no vars here"},
		{"${TEST_VAR1}", "value1"},
		{"prefix-${TEST_VAR1}-suffix", "prefix-value1-suffix"},
		{"${TEST_VAR1}/${TEST_VAR2}", "value1/value2"},
		{"${UNSET_VAR_FOR_TEST}", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := expandEnvVars(tt.input); got != tt.want {
				t.Errorf("expandEnvVars(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("WAYPOINTS_DATABASE_PATH", "/var/lib/waypoints.db")
	t.Setenv("WAYPOINTS_DATABASE_BUSY_TIMEOUT", "750ms")
	t.Setenv("WAYPOINTS_FOLDER_DELETE_POLICY", "delete")
	t.Setenv("WAYPOINTS_LOG_FORMAT", "json")

	configPath := writeConfig(t, "config.yaml", `
database:
  path: "./file.db"
  busy_timeout: "1s"
holders:
  folder_delete_policy: "detach"
logging:
  level: "debug"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/var/lib/waypoints.db" {
		t.Errorf("Database.Path = %q, want the environment value", cfg.Database.Path)
	}
	if cfg.Database.BusyTimeout != 750*time.Millisecond {
		t.Errorf("Database.BusyTimeout = %v, want %v", cfg.Database.BusyTimeout, 750*time.Millisecond)
	}
	if cfg.Holders.FolderDeletePolicy != "delete" {
		t.Errorf("Holders.FolderDeletePolicy = %q, want %q", cfg.Holders.FolderDeletePolicy, "delete")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}
	// Fields without an override keep the file value.
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestLoadOrDefault_EnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("WAYPOINTS_DATABASE_PATH", "/tmp/env-only.db")

	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.Database.Path != "/tmp/env-only.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/env-only.db")
	}
}

func TestLoad_InvalidEnvironmentValue(t *testing.T) {
	t.Setenv("WAYPOINTS_DATABASE_MAX_OPEN_CONNS", "many")

	configPath := writeConfig(t, "config.yaml", "database:\n  path: ./x.db\n")
	if _, err := Load(configPath); err == nil {
		t.Error("Load() expected error for non-numeric WAYPOINTS_DATABASE_MAX_OPEN_CONNS")
	}
}
