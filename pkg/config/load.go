package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/arcade-market/media-api/pkg/gateway"
)

// loadEnvFiles loads ENV_FILE when set, otherwise .env.local then .env.
// Missing files are ignored; variables already in the environment win.
func loadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}

	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

// Load reads the YAML file at path on top of the defaults, then applies environment overrides.
// A missing file is not an error: the defaults are used.
func Load(path string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, err
	}

	cfg := Default()
	if path != "" {
		loaded, err := LoadFile(path)
		switch {
		case err == nil:
			cfg = loaded
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, err
		}
	}

	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides configuration values from environment variables
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("PORT", &cfg.Server.Port)
	str("MEDIA_PUBLIC_URL", &cfg.Server.PublicURL)
	str("MEDIA_LOG_LEVEL", &cfg.Logging.Level)
	str("MEDIA_LOG_FORMAT", &cfg.Logging.Format)
	str("MEDIA_GATEWAY_ORDERING", &cfg.Gateways.Ordering)
	str("MEDIA_CACHE_BACKEND", &cfg.Cache.Backend)
	str("MEDIA_CACHE_FILE_PATH", &cfg.Cache.FilePath)
	str("MEDIA_REDIS_ADDRESS", &cfg.Cache.Redis.Address)
	str("MEDIA_REDIS_PASSWORD", &cfg.Cache.Redis.Password)

	if v, ok := lookup("MEDIA_CACHE_TTL"); ok && v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid MEDIA_CACHE_TTL: %w", err)
		}
		cfg.Cache.TTL = ttl
	}

	if v, ok := lookup("MEDIA_MAX_GATEWAY_ATTEMPTS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MEDIA_MAX_GATEWAY_ATTEMPTS: %w", err)
		}
		cfg.Resolution.MaxGatewayAttempts = n
	}

	// MEDIA_GATEWAYS replaces the mirror list: comma separated base URLs, optionally name=url
	if v, ok := lookup("MEDIA_GATEWAYS"); ok && strings.TrimSpace(v) != "" {
		var mirrors []gateway.MirrorConfig
		for _, item := range strings.Split(v, ",") {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			mc := gateway.MirrorConfig{BaseURL: item}
			if name, base, found := strings.Cut(item, "="); found {
				mc = gateway.MirrorConfig{Name: strings.TrimSpace(name), BaseURL: strings.TrimSpace(base)}
			}
			mirrors = append(mirrors, mc)
		}
		if len(mirrors) == 0 {
			return ErrNoMirrors
		}
		cfg.Gateways.Mirrors = mirrors
	}

	return nil
}
