package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/arcade-market/media-api/internal/app"
	internalMiddleware "github.com/arcade-market/media-api/internal/middleware"
	"github.com/arcade-market/media-api/internal/server"
	"github.com/arcade-market/media-api/pkg/config"
	"github.com/arcade-market/media-api/pkg/logging"
	pkgServer "github.com/arcade-market/media-api/pkg/server"
)

// Set at build time via -ldflags "-X main.version=... -X main.buildTime=..."
var (
	version   = "dev"
	buildTime = "unknown"
)

// CustomValidator wraps the validator
type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates the struct
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config-path", "config.local.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Configuration loaded from %s", configPath)

	// Initialize structured logging
	if err := logging.InitLogger(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer func() { _ = logging.Logger.Sync() }()
	logging.Logger.Info("Structured logging initialized",
		zap.String("level", cfg.Logging.Level),
		zap.String("format", cfg.Logging.Format))

	// Metrics registry with runtime collectors
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	components, err := app.Build(cfg, reg)
	if err != nil {
		logging.Logger.Fatal("Failed to build resolution stack", zap.Error(err))
	}
	defer func() {
		if err := components.Close(); err != nil {
			logging.Logger.Warn("Failed to close resolution cache", zap.Error(err))
		}
	}()
	logging.Logger.Info("Resolution engine initialized")

	instanceID, err := pkgServer.GetOrCreateInstanceID(cfg.Server.InstanceIDFile)
	if err != nil {
		logging.Logger.Fatal("Failed to get or create instance ID", zap.Error(err))
	}
	logging.Logger.Info("API instance ID initialized", zap.String("id", instanceID))

	if cfg.Server.PublicURL == "" {
		logging.Logger.Info("No public URL configured")
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}

	e.Use(internalMiddleware.LoggerMiddleware())
	e.Use(internalMiddleware.RecoverMiddleware())
	e.Use(internalMiddleware.CORSMiddleware())
	e.Use(internalMiddleware.APIIDMiddleware(instanceID))

	srv := server.New(e, cfg, components.Engine, components.Fetcher, components.Metrics, reg, instanceID, &server.VersionInfo{
		Version:   version,
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
	})
	logging.Logger.Info("Server initialized")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Hot reload of mirrors and API keys
	go func() {
		err := config.Watch(ctx, configPath, func(next *config.Config) {
			if err := srv.Reload(next); err != nil {
				logging.Logger.Warn("Rejected configuration reload", zap.Error(err))
			}
		})
		if err != nil {
			logging.Logger.Warn("Configuration watch stopped", zap.Error(err))
		}
	}()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Logger.Fatal("Server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logging.Logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}
