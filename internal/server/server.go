package server

import (
	"context"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arcade-market/media-api/internal/api/media"
	"github.com/arcade-market/media-api/internal/api/mirror"
	"github.com/arcade-market/media-api/internal/api/resolve"
	"github.com/arcade-market/media-api/internal/middleware"
	"github.com/arcade-market/media-api/pkg/auth"
	"github.com/arcade-market/media-api/pkg/config"
	"github.com/arcade-market/media-api/pkg/gateway"
	"github.com/arcade-market/media-api/pkg/logging"
	"github.com/arcade-market/media-api/pkg/metrics"
	"github.com/arcade-market/media-api/pkg/resolver"
)

// VersionInfo contains build version information
type VersionInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
}

// Server represents the media API server
type Server struct {
	echo        *echo.Echo
	apiKeys     []config.APIKey
	apiKeysMu   sync.RWMutex
	config      *config.Config
	registry    *gateway.Registry
	instanceID  string
	publicURL   string
	versionInfo *VersionInfo
}

// GetAPIKeys returns a copy of the current API keys
func (s *Server) GetAPIKeys() []config.APIKey {
	s.apiKeysMu.RLock()
	defer s.apiKeysMu.RUnlock()
	keys := make([]config.APIKey, len(s.apiKeys))
	copy(keys, s.apiKeys)
	return keys
}

// UpdateAPIKeys updates the in-memory API keys list
func (s *Server) UpdateAPIKeys(keys []config.APIKey) error {
	s.apiKeysMu.Lock()
	defer s.apiKeysMu.Unlock()
	s.apiKeys = make([]config.APIKey, len(keys))
	copy(s.apiKeys, keys)
	return nil
}

// Reload applies the parts of a new configuration that can change at runtime:
// the mirror list and the API keys. Everything else needs a restart.
func (s *Server) Reload(cfg *config.Config) error {
	if err := s.registry.Replace(cfg.Gateways.Mirrors); err != nil {
		return err
	}
	if err := s.UpdateAPIKeys(cfg.APIKeys); err != nil {
		return err
	}
	logging.Logger.Info("Configuration reloaded",
		zap.Int("mirrors", len(cfg.Gateways.Mirrors)),
		zap.Int("api_keys", len(cfg.APIKeys)))
	return nil
}

// New creates a new API server instance
func New(
	e *echo.Echo,
	cfg *config.Config,
	engine *resolver.Engine,
	fetcher *gateway.Fetcher,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer, // source for the /metrics endpoint
	instanceID string, // API instance ID for verification
	versionInfo *VersionInfo, // Version information for /version endpoint
) *Server {
	srv := &Server{
		echo:        e,
		apiKeys:     cfg.APIKeys,
		config:      cfg,
		registry:    engine.Registry(),
		instanceID:  instanceID,
		publicURL:   cfg.Server.PublicURL,
		versionInfo: versionInfo,
	}

	resolveHandler := resolve.NewHandler(engine)
	mediaHandler := media.NewHandler(engine, srv.registry, fetcher, m, media.Config{
		HeaderTimeout: cfg.Resolution.PerAttemptTimeout,
		StreamTimeout: cfg.Resolution.StreamTimeout,
		MaxAttempts:   cfg.Resolution.MaxGatewayAttempts,
	})
	mirrorHandler := mirror.NewHandler(srv.registry)

	// Public resolution endpoints; browsers call these directly
	api := e.Group("/api/v1")
	resolve.RegisterRoutes(api, resolveHandler)
	media.RegisterRoutes(api, mediaHandler)
	media.RegisterContentRoutes(e, mediaHandler)

	// Operator endpoints with authentication
	// Use function-based middleware to get current keys dynamically
	authed := api.Group("")
	authed.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return middleware.APIKeyMiddleware(srv.GetAPIKeys())(next)(c)
		}
	})
	// Version header only on authenticated requests
	authed.Use(middleware.VersionMiddleware(srv.versionInfo.Version))

	mirror.RegisterRoutes(authed.Group("/mirrors", middleware.RequireRole(auth.Operator)), mirrorHandler)
	authed.GET("/version", srv.handleVersion)

	// Health check (no auth required - for load balancers/probes)
	// Supports ?info=true to return API information (public URL and API ID)
	e.GET("/health", srv.handleHealth)

	if gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	return srv
}

// handleHealth handles the health check endpoint
// Returns 200 OK for normal health checks
// Returns JSON with API info when ?info=true is specified
func (s *Server) handleHealth(c echo.Context) error {
	if c.QueryParam("info") == "true" {
		info := map[string]string{
			"public_url": s.publicURL,
			"api_id":     s.instanceID,
		}
		return c.JSON(http.StatusOK, info)
	}

	return c.NoContent(http.StatusOK)
}

// handleVersion handles the version endpoint
func (s *Server) handleVersion(c echo.Context) error {
	return c.JSON(http.StatusOK, s.versionInfo)
}

// Start starts the API server
func (s *Server) Start() error {
	port := ":" + s.config.Server.Port
	logging.Logger.Info("Starting server", zap.String("port", port))
	return s.echo.Start(port)
}

// Shutdown stops accepting requests and waits for in-flight streams
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
