package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, int64(4096), cfg.MaxMessageSize)
	assert.Equal(t, 256, cfg.SendQueueSize)
	assert.Equal(t, 20, cfg.RateLimit.Burst)
	assert.Equal(t, time.Second, cfg.RateLimit.RefillInterval())
}

func TestSanitizeRestoresDefaults(t *testing.T) {
	cfg := &Config{
		Port:           "",
		MaxMessageSize: -1,
		SendQueueSize:  0,
		RateLimit:      RateLimitConfig{Burst: -5, RefillIntervalSeconds: 0},
	}
	cfg.Sanitize()

	defaults := NewConfig()
	assert.Equal(t, defaults.Port, cfg.Port)
	assert.Equal(t, defaults.MaxMessageSize, cfg.MaxMessageSize)
	assert.Equal(t, defaults.SendQueueSize, cfg.SendQueueSize)
	assert.Equal(t, defaults.RateLimit, cfg.RateLimit)
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9999")
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com")
	t.Setenv("MAX_MESSAGE_SIZE", "1024")
	t.Setenv("SEND_QUEUE_SIZE", "64")
	t.Setenv("RATE_LIMIT_BURST", "10")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2")

	cfg := NewConfigFromEnv()

	assert.Equal(t, ":9999", cfg.Port)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, int64(1024), cfg.MaxMessageSize)
	assert.Equal(t, 64, cfg.SendQueueSize)
	assert.Equal(t, 10, cfg.RateLimit.Burst)
	assert.Equal(t, 2*time.Second, cfg.RateLimit.RefillInterval())
}

func TestNewConfigFromEnvIgnoresInvalidValues(t *testing.T) {
	t.Setenv("MAX_MESSAGE_SIZE", "not-a-number")
	t.Setenv("RATE_LIMIT_BURST", "-3")

	cfg := NewConfigFromEnv()
	defaults := NewConfig()

	assert.Equal(t, defaults.MaxMessageSize, cfg.MaxMessageSize)
	assert.Equal(t, defaults.RateLimit.Burst, cfg.RateLimit.Burst)
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("RELAY_PORT", ":7070")

	path := filepath.Join(t.TempDir(), "relay.yaml")
	content := `
port: "${RELAY_PORT}"
allowed_origins:
  - https://app.example.com
max_message_size: 2048
send_queue_size: 128
log_level: debug
rate_limit:
  burst: 30
  refill_interval_seconds: 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Port, "env references must be expanded")
	assert.Equal(t, []string{"https://app.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, int64(2048), cfg.MaxMessageSize)
	assert.Equal(t, 128, cfg.SendQueueSize)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 30, cfg.RateLimit.Burst)
	assert.Equal(t, 5*time.Second, cfg.RateLimit.RefillInterval())
}

func TestLoadConfigFileErrors(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [not, a, string"), 0o600))
	_, err = LoadConfigFile(path)
	require.Error(t, err)
}

func TestEnvOverridesConfigFile(t *testing.T) {
	t.Setenv("SERVER_PORT", ":6060")

	path := filepath.Join(t.TempDir(), "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`port: ":7070"`), 0o600))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, ":6060", cfg.Port)
}
