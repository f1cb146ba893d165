package cache

import (
	"github.com/arcade-market/media-api/pkg/config"
	"github.com/arcade-market/media-api/pkg/logging"
	"go.uber.org/zap"
)

// NewResolutionStore creates the backend selected by configuration.
// A file or redis backend that cannot be opened falls back to the in-memory cache
// so the service still starts; resolutions are then local to this replica.
func NewResolutionStore(cfg config.CacheConfig) Cache {
	switch cfg.Backend {
	case "file":
		fileCache, err := NewFileCache(cfg.FilePath, 0)
		if err != nil {
			logging.Logger.Warn("Failed to create file-based resolution cache, falling back to memory cache",
				zap.String("path", cfg.FilePath),
				zap.Error(err))
			return NewMemoryCache(cfg.MaxEntries)
		}
		logging.Logger.Info("Initialized file-based resolution cache",
			zap.String("path", cfg.FilePath))
		return fileCache

	case "redis":
		redisCache, err := NewRedisCache(RedisOptions{
			Address:   cfg.Redis.Address,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
		if err != nil {
			logging.Logger.Warn("Failed to connect resolution cache to Redis, falling back to memory cache",
				zap.String("address", cfg.Redis.Address),
				zap.Error(err))
			return NewMemoryCache(cfg.MaxEntries)
		}
		logging.Logger.Info("Initialized Redis resolution cache",
			zap.String("address", cfg.Redis.Address))
		return redisCache
	}

	logging.Logger.Info("Initialized in-memory resolution cache",
		zap.Int("max_entries", cfg.MaxEntries))
	return NewMemoryCache(cfg.MaxEntries)
}
