package config

import (
	"strings"
	"time"

	"github.com/marmos91/sharegate/internal/auth"
	"github.com/marmos91/sharegate/pkg/share"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and
// environment variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Store-specific defaults are handled by store implementations
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(cfg)
	applyServerDefaults(&cfg.Server)
	applyAuthDefaults(&cfg.Auth)
	applyRateLimitDefaults(&cfg.RateLimit)
	applySharesDefaults(&cfg.Shares)
	applyUploadDefaults(&cfg.Upload)
}

func applyLoggingDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)

	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applyAuthDefaults(cfg *AuthConfig) {
	if cfg.Realm == "" {
		cfg.Realm = "ShareGate"
	}
	if cfg.MaxFailedAttempts == 0 {
		cfg.MaxFailedAttempts = auth.DefaultMaxFailures
	}
	if cfg.BlockDuration == 0 {
		cfg.BlockDuration = auth.DefaultBlockWindow
	}
}

func applyRateLimitDefaults(cfg *RateLimitConfig) {
	// RequestsPerSecond = 0 means unlimited; only burst needs a floor.
	if cfg.RequestsPerSecond > 0 && cfg.Burst == 0 {
		cfg.Burst = cfg.RequestsPerSecond * 2
	}
}

func applySharesDefaults(cfg *SharesConfig) {
	if cfg.Type == "" {
		cfg.Type = "badger"
	}

	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}

	if _, ok := cfg.Badger["db_path"]; !ok {
		cfg.Badger["db_path"] = "/var/lib/sharegate/shares"
	}

	if cfg.DefaultExpiry == 0 {
		cfg.DefaultExpiry = 24 * time.Hour
	}
	if cfg.Retention == 0 {
		cfg.Retention = share.DefaultRetention
	}
	if cfg.PurgeInterval == 0 {
		cfg.PurgeInterval = time.Hour
	}
}

func applyUploadDefaults(cfg *UploadConfig) {
	if cfg.Type == "" {
		cfg.Type = "filesystem"
	}

	if cfg.Filesystem == nil {
		cfg.Filesystem = make(map[string]any)
	}
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}

	if _, ok := cfg.Filesystem["path"]; !ok {
		cfg.Filesystem["path"] = "/srv/sharegate"
	}
}
