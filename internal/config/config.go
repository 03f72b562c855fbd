// ABOUTME: Configuration loading and parsing for parley
// ABOUTME: Supports YAML and TOML files with environment variable expansion

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config represents the complete parley configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	Broadcast BroadcastConfig `yaml:"broadcast" toml:"broadcast"`
	Uploads   UploadsConfig   `yaml:"uploads" toml:"uploads"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr" env:"PARLEY_HTTP_ADDR"`

	ShutdownTimeout time.Duration `yaml:"-" toml:"-"`

	// Raw string value for file unmarshaling
	ShutdownTimeoutRaw string `yaml:"shutdown_timeout" toml:"shutdown_timeout" env:"PARLEY_SHUTDOWN_TIMEOUT"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path" env:"PARLEY_DB_PATH"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret  string `yaml:"jwt_secret" toml:"jwt_secret" env:"PARLEY_JWT_SECRET"`
	BcryptCost int    `yaml:"bcrypt_cost" toml:"bcrypt_cost" env:"PARLEY_BCRYPT_COST"`

	TokenTTL time.Duration `yaml:"-" toml:"-"`

	// Raw string value for file unmarshaling
	TokenTTLRaw string `yaml:"token_ttl" toml:"token_ttl" env:"PARLEY_TOKEN_TTL"`
}

// BroadcastConfig controls how conversation events fan out.
// Scope "global" delivers to every live connection; "conversation"
// restricts delivery to participants.
type BroadcastConfig struct {
	Scope string `yaml:"scope" toml:"scope" env:"PARLEY_BROADCAST_SCOPE"`
}

// UploadsConfig holds file upload configuration. Only metadata is
// stored, so the single knob is the attachment size cap.
type UploadsConfig struct {
	MaxSizeBytes int64 `yaml:"max_size_bytes" toml:"max_size_bytes" env:"PARLEY_UPLOADS_MAX_SIZE"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level" env:"PARLEY_LOG_LEVEL"`
	Format string `yaml:"format" toml:"format" env:"PARLEY_LOG_FORMAT"`
}

// Defaults applied when neither file nor environment set a value.
const (
	defaultHTTPAddr        = ":8080"
	defaultTokenTTL        = 24 * time.Hour
	defaultShutdownTimeout = 10 * time.Second
	defaultBroadcastScope  = "global"
	defaultUploadMaxSize   = 10 << 20
)

// Load reads a configuration file from the given path and returns a
// parsed Config. YAML is the default format; files ending in .toml are
// parsed as TOML. Environment variables in the format ${VAR_NAME} are
// expanded and duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw file content
	expanded := expandEnvVars(string(data))

	var cfg Config
	switch filepath.Ext(path) {
	case ".toml":
		if err := toml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	return finish(&cfg)
}

// FromEnv builds a Config from PARLEY_* environment variables alone,
// for deployments that run without a config file.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return finish(&cfg)
}

func finish(cfg *Config) (*Config, error) {
	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
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
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = defaultHTTPAddr
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = defaultShutdownTimeout
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = defaultTokenTTL
	}
	if c.Broadcast.Scope == "" {
		c.Broadcast.Scope = defaultBroadcastScope
	}
	if c.Uploads.MaxSizeBytes == 0 {
		c.Uploads.MaxSizeBytes = defaultUploadMaxSize
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
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("auth.jwt_secret must be at least 16 characters")
	}

	switch c.Broadcast.Scope {
	case "global", "conversation":
	default:
		return fmt.Errorf("broadcast.scope must be \"global\" or \"conversation\", got %q", c.Broadcast.Scope)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Auth.TokenTTLRaw != "" {
		cfg.Auth.TokenTTL, err = time.ParseDuration(cfg.Auth.TokenTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing token_ttl %q: %w", cfg.Auth.TokenTTLRaw, err)
		}
	}

	if cfg.Server.ShutdownTimeoutRaw != "" {
		cfg.Server.ShutdownTimeout, err = time.ParseDuration(cfg.Server.ShutdownTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing shutdown_timeout %q: %w", cfg.Server.ShutdownTimeoutRaw, err)
		}
	}

	return nil
}
