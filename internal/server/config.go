// Package server hosts the relay hub behind an HTTP/WebSocket transport:
// upgrade handling, per-connection read/write pumps, origin checks, rate
// limiting, and the liveness endpoint.
package server

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RateLimitConfig defines the parameters for per-connection inbound frame
// rate limiting.
type RateLimitConfig struct {
	Burst                 int `yaml:"burst"`
	RefillIntervalSeconds int `yaml:"refill_interval_seconds"`
}

// RefillInterval returns the configured refill window as a duration.
func (r RateLimitConfig) RefillInterval() time.Duration {
	return time.Duration(r.RefillIntervalSeconds) * time.Second
}

// Config holds the service configuration, including the security controls
// applied at the transport boundary.
type Config struct {
	Port           string          `yaml:"port"`
	AllowedOrigins []string        `yaml:"allowed_origins"`
	MaxMessageSize int64           `yaml:"max_message_size"`
	SendQueueSize  int             `yaml:"send_queue_size"`
	LogLevel       string          `yaml:"log_level"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Port:           ":8080",
		AllowedOrigins: []string{"http://localhost:8080"},
		MaxMessageSize: 4096,
		SendQueueSize:  256,
		LogLevel:       "info",
		RateLimit: RateLimitConfig{
			Burst:                 20,
			RefillIntervalSeconds: 1,
		},
	}
}

// Sanitize replaces out-of-range values with defaults and returns the config
// for chaining.
func (c *Config) Sanitize() *Config {
	defaults := NewConfig()

	if c.Port == "" {
		c.Port = defaults.Port
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = defaults.MaxMessageSize
	}
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = defaults.SendQueueSize
	}
	if c.LogLevel == "" {
		c.LogLevel = defaults.LogLevel
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = defaults.RateLimit.Burst
	}
	if c.RateLimit.RefillIntervalSeconds <= 0 {
		c.RateLimit.RefillIntervalSeconds = defaults.RateLimit.RefillIntervalSeconds
	}
	return c
}

// NewConfigFromEnv builds a Config from environment variables, falling back
// to defaults for anything unset.
func NewConfigFromEnv() *Config {
	cfg := NewConfig()
	cfg.applyEnv()
	return cfg.Sanitize()
}

// LoadConfigFile reads a YAML config file, expanding ${VAR} environment
// references, then applies environment variable overrides on top.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := NewConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	cfg.applyEnv()
	return cfg.Sanitize(), nil
}

func (c *Config) applyEnv() {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		c.Port = port
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		c.AllowedOrigins = splitOrigins(origins)
	}
	if maxSize := os.Getenv("MAX_MESSAGE_SIZE"); maxSize != "" {
		c.MaxMessageSize = parseInt64Value(maxSize, c.MaxMessageSize)
	}
	if queueSize := os.Getenv("SEND_QUEUE_SIZE"); queueSize != "" {
		c.SendQueueSize = parseIntValue(queueSize, c.SendQueueSize)
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		c.RateLimit.Burst = parseIntValue(burst, c.RateLimit.Burst)
	}
	if interval := os.Getenv("RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		c.RateLimit.RefillIntervalSeconds = parseIntValue(interval, c.RateLimit.RefillIntervalSeconds)
	}
}

func splitOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseInt64Value(value string, defaultValue int64) int64 {
	if parsed, err := strconv.ParseInt(value, 10, 64); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}
