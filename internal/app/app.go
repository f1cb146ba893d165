// Package app assembles the resolution stack from configuration.
package app

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/arcade-market/media-api/pkg/cache"
	"github.com/arcade-market/media-api/pkg/config"
	"github.com/arcade-market/media-api/pkg/gateway"
	"github.com/arcade-market/media-api/pkg/logging"
	"github.com/arcade-market/media-api/pkg/metrics"
	"github.com/arcade-market/media-api/pkg/resolver"
)

// Components is the wired resolution stack shared by the server and the CLI
type Components struct {
	Metrics  *metrics.Metrics
	Health   *gateway.HealthTracker
	Registry *gateway.Registry
	Prober   *gateway.Prober
	Fetcher  *gateway.Fetcher
	Store    cache.Cache
	Engine   *resolver.Engine
}

// Build wires the stack. reg may be nil, in which case no metrics are recorded.
func Build(cfg *config.Config, reg prometheus.Registerer) (*Components, error) {
	var m *metrics.Metrics
	if reg != nil {
		m = metrics.NewMetrics(reg)
	}

	policy, err := gateway.ParsePolicy(cfg.Gateways.Ordering)
	if err != nil {
		return nil, err
	}

	health := gateway.NewHealthTracker(HealthConfig(cfg.Health), m)
	registry, err := gateway.NewRegistry(cfg.Gateways.Mirrors, policy, health)
	if err != nil {
		return nil, fmt.Errorf("failed to build mirror registry: %w", err)
	}
	logging.Logger.Info("Mirror registry initialized",
		zap.Strings("mirrors", registry.Names()),
		zap.String("ordering", string(policy)))

	client := gateway.NewHTTPClient(gateway.ClientConfig{UserAgent: cfg.Gateways.UserAgent})
	prober := gateway.NewProber(client, cfg.Resolution.ProbeRangeBytes, health, m)
	store := cache.NewResolutionStore(cfg.Cache)

	engine := resolver.NewEngine(registry, prober, client,
		resolver.NewResolutionCache(store, cfg.Cache.TTL, m), m, EngineConfig(cfg.Resolution))

	return &Components{
		Metrics:  m,
		Health:   health,
		Registry: registry,
		Prober:   prober,
		Fetcher:  gateway.NewFetcher(client, health),
		Store:    store,
		Engine:   engine,
	}, nil
}

// Close releases the cache backend
func (c *Components) Close() error {
	return cache.Close(c.Store)
}

// HealthConfig maps the configured breaker settings onto the tracker's
func HealthConfig(cfg config.HealthConfig) gateway.HealthConfig {
	return gateway.HealthConfig{
		FailureThreshold: cfg.FailureThreshold,
		SuccessThreshold: cfg.SuccessThreshold,
		OpenTimeout:      cfg.OpenTimeout,
		DecayInterval:    cfg.DecayInterval,
	}
}

// EngineConfig maps the configured resolution bounds onto the engine's
func EngineConfig(cfg config.ResolutionConfig) resolver.EngineConfig {
	return resolver.EngineConfig{
		MaxGatewayAttempts:  cfg.MaxGatewayAttempts,
		PerAttemptTimeout:   cfg.PerAttemptTimeout,
		MetadataTimeout:     cfg.MetadataTimeout,
		MaxDirectoryGuesses: cfg.MaxDirectoryGuesses,
		MaxDepth:            cfg.MaxDepth,
	}
}
