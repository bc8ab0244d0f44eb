// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the movebox service.
package server

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Tyrowin/movebox/internal/profile"
	"github.com/Tyrowin/movebox/internal/room"
)

// Default values for optional configuration fields.
const (
	DefaultPort            = ":8080"
	DefaultMaxMessageSize  = 512
	DefaultRateLimitBurst  = 60
	DefaultRateLimitRefill = time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultProfileTTL      = profile.DefaultTTL
	DefaultAllowedOrigin   = "*"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int           `yaml:"burst"`
	RefillInterval time.Duration `yaml:"refill_interval"`
}

// ProfilesConfig selects and tunes the profile cache backend.
type ProfilesConfig struct {
	TTL      time.Duration          `yaml:"ttl"`
	Database profile.DatabaseConfig `yaml:"database"`
}

// Config holds the server configuration settings including security controls.
type Config struct {
	Port            string          `yaml:"port"`
	AllowedOrigins  []string        `yaml:"allowed_origins"`
	MaxMessageSize  int64           `yaml:"max_message_size"`
	SendBuffer      int             `yaml:"send_buffer"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
	Profiles        ProfilesConfig  `yaml:"profiles"`
}

func defaultConfig() Config {
	return Config{
		Port:            DefaultPort,
		AllowedOrigins:  []string{DefaultAllowedOrigin},
		MaxMessageSize:  DefaultMaxMessageSize,
		SendBuffer:      room.DefaultSendBuffer,
		ShutdownTimeout: DefaultShutdownTimeout,
		RateLimit: RateLimitConfig{
			Burst:          DefaultRateLimitBurst,
			RefillInterval: DefaultRateLimitRefill,
		},
		Profiles: ProfilesConfig{
			TTL: DefaultProfileTTL,
		},
	}
}

// Sanitize returns a copy of cfg with every unset or invalid field replaced by
// its default.
func (cfg Config) Sanitize() Config {
	if cfg.Port == "" {
		cfg.Port = DefaultPort
	}
	if !strings.Contains(cfg.Port, ":") {
		cfg.Port = ":" + cfg.Port
	}

	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = DefaultMaxMessageSize
	}

	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = room.DefaultSendBuffer
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}

	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = DefaultRateLimitBurst
	}

	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = DefaultRateLimitRefill
	}

	if cfg.Profiles.TTL <= 0 {
		cfg.Profiles.TTL = DefaultProfileTTL
	}

	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{DefaultAllowedOrigin}
	} else {
		cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	}
	return cfg
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Falls back to default values if environment variables are not set.
func NewConfigFromEnv() *Config {
	cfg := defaultConfig()
	applyEnv(&cfg)
	return &cfg
}

// LoadConfig reads a YAML config file, expanding ${VAR} references, then
// applies environment overrides and defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	applyEnv(&cfg)
	sanitized := cfg.Sanitize()
	return &sanitized, nil
}

func applyEnv(cfg *Config) {
	// Load SERVER_PORT
	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}

	// Load ALLOWED_ORIGINS
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}

	// Load MAX_MESSAGE_SIZE
	if maxSize := os.Getenv("MAX_MESSAGE_SIZE"); maxSize != "" {
		cfg.MaxMessageSize = parseMaxMessageSize(maxSize, cfg.MaxMessageSize)
	}

	// Load RATE_LIMIT_BURST
	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		cfg.RateLimit.Burst = parseIntValue(burst, cfg.RateLimit.Burst)
	}

	// Load RATE_LIMIT_REFILL_INTERVAL
	if interval := os.Getenv("RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		cfg.RateLimit.RefillInterval = parseDuration(interval, cfg.RateLimit.RefillInterval)
	}

	if ttl := os.Getenv("PROFILE_TTL"); ttl != "" {
		cfg.Profiles.TTL = parseDuration(ttl, cfg.Profiles.TTL)
	}

	if dsn := os.Getenv("PROFILE_DATABASE_URL"); dsn != "" {
		cfg.Profiles.Database.URL = dsn
	}
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseMaxMessageSize(value string, defaultValue int64) int64 {
	if size, err := strconv.ParseInt(value, 10, 64); err == nil && size > 0 {
		return size
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

// parseDuration accepts a Go duration ("500ms") or a bare number of seconds.
func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	return defaultValue
}
