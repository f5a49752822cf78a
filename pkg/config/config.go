// Package config loads, defaults, and validates the ShareGate configuration,
// and provides factories that build stores from it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/marmos91/sharegate/internal/logging"
)

// Config represents the complete ShareGate configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (SHAREGATE_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
//
// Store Configuration Pattern:
// Each store implementation defines its own configuration type. The Config
// struct contains type-specific map sections (e.g. shares.badger,
// upload.filesystem) and only the section matching the selected type is
// decoded and used.
type Config struct {
	// Logging controls log output behavior
	Logging logging.Config `mapstructure:"logging"`

	// Server contains HTTP server settings
	Server ServerConfig `mapstructure:"server"`

	// Auth configures the request gate: credentials, attempt tracking,
	// and the IP allowlist
	Auth AuthConfig `mapstructure:"auth"`

	// RateLimit configures per-client request rate limiting
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// Shares specifies the share-link store and lifecycle settings
	Shares SharesConfig `mapstructure:"shares"`

	// Upload specifies where uploaded and served files live
	Upload UploadConfig `mapstructure:"upload"`

	// Audit configures the access audit trail
	Audit AuditConfig `mapstructure:"audit"`

	// Metrics controls Prometheus metrics collection
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// ListenAddr is the address the server binds to (e.g. ":8080")
	ListenAddr string `mapstructure:"listen_addr" validate:"required"`

	// ExternalURL is the base URL clients reach the server at, used when
	// rendering share links (e.g. "https://files.example.com")
	ExternalURL string `mapstructure:"external_url"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`
}

// AuthConfig configures the request gate.
type AuthConfig struct {
	// Password enables HTTP Basic authentication when non-empty
	Password string `mapstructure:"password"`

	// Token is an alternative bearer credential accepted as the Basic
	// password. Either credential grants access.
	Token string `mapstructure:"token"`

	// Realm is the value sent in WWW-Authenticate challenges
	Realm string `mapstructure:"realm"`

	// MaxFailedAttempts is how many failures within the window trigger a block
	MaxFailedAttempts int `mapstructure:"max_failed_attempts" validate:"gte=0"`

	// BlockDuration is both the failure-counting window and the block length
	BlockDuration time.Duration `mapstructure:"block_duration" validate:"gte=0"`

	// AllowedIPs restricts access to the listed addresses. Empty allows all.
	// Loopback addresses are always allowed.
	AllowedIPs []string `mapstructure:"allowed_ips"`
}

// RateLimitConfig configures per-client token bucket rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained per-client rate. 0 disables limiting.
	RequestsPerSecond uint `mapstructure:"requests_per_second"`

	// Burst is the bucket capacity per client
	Burst uint `mapstructure:"burst"`
}

// SharesConfig specifies share-link store configuration and lifecycle timing.
type SharesConfig struct {
	// Type specifies which share store implementation to use
	// Valid values: memory, badger
	Type string `mapstructure:"type" validate:"required,oneof=memory badger"`

	// Memory contains memory-specific configuration
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger"`

	// DefaultExpiry is applied to minted links that specify no expiry
	DefaultExpiry time.Duration `mapstructure:"default_expiry" validate:"gt=0"`

	// Retention is how long inactive links are kept before purging
	Retention time.Duration `mapstructure:"retention" validate:"gte=0"`

	// PurgeInterval is how often the background purge pass runs.
	// 0 disables the background purge.
	PurgeInterval time.Duration `mapstructure:"purge_interval" validate:"gte=0"`
}

// UploadConfig specifies the blob store holding served and uploaded files.
type UploadConfig struct {
	// Type specifies which blob store implementation to use
	// Valid values: filesystem, memory, s3
	Type string `mapstructure:"type" validate:"required,oneof=filesystem memory s3"`

	// Filesystem contains filesystem-specific configuration
	// Only used when Type = "filesystem"
	Filesystem map[string]any `mapstructure:"filesystem"`

	// Memory contains memory-specific configuration
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory"`

	// S3 contains S3-specific configuration
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3"`

	// MaxBytes caps the declared Content-Length of upload requests.
	// 0 means no cap beyond requiring a declared length.
	MaxBytes int64 `mapstructure:"max_bytes" validate:"gte=0"`
}

// AuditConfig configures the access audit trail.
type AuditConfig struct {
	// LogPath is the audit log file. Empty keeps the trail in memory only.
	LogPath string `mapstructure:"log_path"`
}

// MetricsConfig controls Prometheus metrics collection.
type MetricsConfig struct {
	// Enabled turns on the /metrics endpoint and counters
	Enabled bool `mapstructure:"enabled"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (SHAREGATE_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the SHAREGATE_ prefix and underscores.
	// Example: SHAREGATE_AUTH_PASSWORD=secret
	v.SetEnvPrefix("SHAREGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/sharegate/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// No config file is acceptable - defaults and env apply
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "sharegate")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "sharegate")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
