package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	// Missing file at an explicit path is an error; an empty file loads
	// pure defaults.
	path := writeConfig(t, "")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "ShareGate", cfg.Auth.Realm)
	assert.Equal(t, 5, cfg.Auth.MaxFailedAttempts)
	assert.Equal(t, 5*time.Minute, cfg.Auth.BlockDuration)
	assert.Equal(t, "badger", cfg.Shares.Type)
	assert.Equal(t, 24*time.Hour, cfg.Shares.DefaultExpiry)
	assert.Equal(t, 7*24*time.Hour, cfg.Shares.Retention)
	assert.Equal(t, "filesystem", cfg.Upload.Type)
	assert.Equal(t, "/srv/sharegate", cfg.Upload.Filesystem["path"])
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_addr: ":9000"
  external_url: "https://files.example.com"
auth:
  password: "hunter2"
  max_failed_attempts: 3
  block_duration: 2m
  allowed_ips:
    - "192.168.1.10"
rate_limit:
  requests_per_second: 50
shares:
  type: memory
  default_expiry: 48h
upload:
  type: memory
  max_bytes: 1048576
logging:
  level: DEBUG
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.ListenAddr)
	assert.Equal(t, "https://files.example.com", cfg.Server.ExternalURL)
	assert.Equal(t, "hunter2", cfg.Auth.Password)
	assert.Equal(t, 3, cfg.Auth.MaxFailedAttempts)
	assert.Equal(t, 2*time.Minute, cfg.Auth.BlockDuration)
	assert.Equal(t, []string{"192.168.1.10"}, cfg.Auth.AllowedIPs)
	assert.Equal(t, uint(50), cfg.RateLimit.RequestsPerSecond)
	// Burst defaults to double the rate.
	assert.Equal(t, uint(100), cfg.RateLimit.Burst)
	assert.Equal(t, "memory", cfg.Shares.Type)
	assert.Equal(t, 48*time.Hour, cfg.Shares.DefaultExpiry)
	assert.Equal(t, int64(1048576), cfg.Upload.MaxBytes)
	// Level is normalized to lowercase.
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("SHAREGATE_AUTH_PASSWORD", "from-env")

	path := writeConfig(t, `
auth:
  password: "from-file"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.Password)
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "bad share store type",
			content: `
shares:
  type: redis
`,
		},
		{
			name: "bad upload type",
			content: `
upload:
  type: ftp
`,
		},
		{
			name: "invalid allowlist entry",
			content: `
auth:
  allowed_ips:
    - "not-an-ip"
`,
		},
		{
			name: "bad log level",
			content: `
logging:
  level: loud
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
