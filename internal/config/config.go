// ABOUTME: Configuration loading and parsing for lore-console
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete lore-console configuration
type Config struct {
	API     APIConfig     `yaml:"api"`
	Auth    AuthConfig    `yaml:"auth"`
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
}

// APIConfig holds backend API connection configuration
type APIConfig struct {
	BaseURL string `yaml:"base_url"`

	Timeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TimeoutRaw string `yaml:"timeout"`
}

// AuthConfig holds authentication configuration for both login methods
type AuthConfig struct {
	LocalEnabled bool      `yaml:"local_enabled"`
	SSO          SSOConfig `yaml:"sso"`
}

// SSOConfig holds the enterprise identity provider configuration.
// The console uses the authorization-code redirect flow: login prints
// the authorize URL and the callback is completed out of band.
type SSOConfig struct {
	Enabled     bool     `yaml:"enabled"`
	ClientID    string   `yaml:"client_id"`
	AuthURL     string   `yaml:"auth_url"`
	TokenURL    string   `yaml:"token_url"`
	LogoutURL   string   `yaml:"logout_url"`
	RedirectURL string   `yaml:"redirect_url"`
	Scopes      []string `yaml:"scopes"`
}

// StorageConfig holds session storage configuration
type StorageConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// DefaultStoragePath returns the default session database location,
// honoring XDG_STATE_HOME with a ~/.local/state fallback.
func DefaultStoragePath() string {
	stateDir := os.Getenv("XDG_STATE_HOME")
	if stateDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "lore-console.db"
		}
		stateDir = filepath.Join(homeDir, ".local", "state")
	}
	return filepath.Join(stateDir, "lore-console", "session.db")
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

// applyDefaults fills in values that may be omitted from the file.
func (c *Config) applyDefaults() {
	if c.API.Timeout == 0 {
		c.API.Timeout = 30 * time.Second
	}
	if c.Storage.Path == "" {
		c.Storage.Path = DefaultStoragePath()
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}

	if !c.Auth.LocalEnabled && !c.Auth.SSO.Enabled {
		return fmt.Errorf("no authentication method enabled (set auth.local_enabled or auth.sso.enabled)")
	}

	if c.Auth.SSO.Enabled {
		if c.Auth.SSO.ClientID == "" {
			return fmt.Errorf("auth.sso.client_id is required when SSO is enabled")
		}
		if c.Auth.SSO.AuthURL == "" {
			return fmt.Errorf("auth.sso.auth_url is required when SSO is enabled")
		}
		if c.Auth.SSO.TokenURL == "" {
			return fmt.Errorf("auth.sso.token_url is required when SSO is enabled")
		}
		if c.Auth.SSO.RedirectURL == "" {
			return fmt.Errorf("auth.sso.redirect_url is required when SSO is enabled")
		}
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.API.TimeoutRaw != "" {
		cfg.API.Timeout, err = time.ParseDuration(cfg.API.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing api.timeout %q: %w", cfg.API.TimeoutRaw, err)
		}
	}

	return nil
}
