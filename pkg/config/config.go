package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arcade-market/media-api/pkg/gateway"
)

// ErrNoMirrors is returned when the configuration leaves no mirror to try
var ErrNoMirrors = errors.New("at least one gateway mirror is required")

// APIKey represents an API key configuration
type APIKey struct {
	Role   string `yaml:"role"`
	APIKey string `yaml:"api_key"`
	Name   string `yaml:"name,omitempty"`
}

// Config is the full service configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Gateways   GatewaysConfig   `yaml:"gateways"`
	Resolution ResolutionConfig `yaml:"resolution"`
	Cache      CacheConfig      `yaml:"cache"`
	Health     HealthConfig     `yaml:"health"`
	APIKeys    []APIKey         `yaml:"api_keys"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Port            string        `yaml:"port"`
	PublicURL       string        `yaml:"public_url"`
	InstanceIDFile  string        `yaml:"instance_id_file"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig configures the zap logger
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// GatewaysConfig lists the mirrors and how they are ordered
type GatewaysConfig struct {
	Ordering  string                 `yaml:"ordering"`
	UserAgent string                 `yaml:"user_agent"`
	Mirrors   []gateway.MirrorConfig `yaml:"mirrors"`
}

// ResolutionConfig bounds the work a single resolution may do
type ResolutionConfig struct {
	MaxGatewayAttempts  int           `yaml:"max_gateway_attempts"`
	PerAttemptTimeout   time.Duration `yaml:"per_attempt_timeout"`
	MetadataTimeout     time.Duration `yaml:"metadata_timeout"`
	ProbeRangeBytes     int           `yaml:"probe_range_bytes"`
	MaxDirectoryGuesses int           `yaml:"max_directory_guesses"`
	MaxDepth            int           `yaml:"max_depth"`
	StreamTimeout       time.Duration `yaml:"stream_timeout"`
}

// CacheConfig selects and tunes the resolution cache backend
type CacheConfig struct {
	Backend    string        `yaml:"backend"`
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	FilePath   string        `yaml:"file_path"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Address   string `yaml:"address"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// HealthConfig tunes the per-mirror breaker
type HealthConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	SuccessThreshold int           `yaml:"success_threshold"`
	OpenTimeout      time.Duration `yaml:"open_timeout"`
	DecayInterval    time.Duration `yaml:"decay_interval"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			InstanceIDFile:  ".media-api-instance",
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Gateways: GatewaysConfig{
			Ordering:  string(gateway.PolicyStatic),
			UserAgent: "media-api/1.0",
			Mirrors:   gateway.DefaultMirrors(),
		},
		Resolution: ResolutionConfig{
			MaxGatewayAttempts:  5,
			PerAttemptTimeout:   6 * time.Second,
			MetadataTimeout:     10 * time.Second,
			ProbeRangeBytes:     gateway.DefaultProbeBytes,
			MaxDirectoryGuesses: 48,
			MaxDepth:            3,
			StreamTimeout:       60 * time.Second,
		},
		Cache: CacheConfig{
			Backend:    "memory",
			TTL:        10 * time.Minute,
			MaxEntries: 50000,
		},
		Health: HealthConfig{
			FailureThreshold: 3,
			SuccessThreshold: 1,
			OpenTimeout:      30 * time.Second,
			DecayInterval:    5 * time.Minute,
		},
	}
}

// Parse decodes YAML on top of the defaults. Omitted sections keep their default values.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// LoadFile reads and parses a YAML file without environment overrides
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Validate checks the configuration for values the service cannot run with
func (c *Config) Validate() error {
	if len(c.Gateways.Mirrors) == 0 {
		return ErrNoMirrors
	}
	for _, m := range c.Gateways.Mirrors {
		u, err := url.Parse(m.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("mirror %q: invalid base_url %q", m.Name, m.BaseURL)
		}
	}
	if _, err := gateway.ParsePolicy(c.Gateways.Ordering); err != nil {
		return err
	}

	r := c.Resolution
	if r.PerAttemptTimeout <= 0 || r.MetadataTimeout <= 0 || r.StreamTimeout <= 0 {
		return errors.New("resolution timeouts must be positive")
	}
	if r.MaxGatewayAttempts < 0 || r.MaxDirectoryGuesses < 0 || r.MaxDepth < 0 {
		return errors.New("resolution limits must not be negative")
	}

	switch c.Cache.Backend {
	case "memory", "file", "redis":
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if c.Cache.TTL <= 0 {
		return errors.New("cache ttl must be positive")
	}
	if c.Cache.Backend == "file" && c.Cache.FilePath == "" {
		return errors.New("cache file_path is required for the file backend")
	}
	if c.Cache.Backend == "redis" && c.Cache.Redis.Address == "" {
		return errors.New("cache redis address is required for the redis backend")
	}

	for _, k := range c.APIKeys {
		if k.APIKey == "" {
			return fmt.Errorf("api key %q has an empty key", k.Name)
		}
	}
	return nil
}

// FindAPIKeyByKey finds an API key by its key value
func FindAPIKeyByKey(apiKeys []APIKey, key string) (*APIKey, bool) {
	for _, ak := range apiKeys {
		if ak.APIKey == key {
			return &ak, true
		}
	}
	return nil, false
}
