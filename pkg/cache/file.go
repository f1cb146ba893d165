package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/arcade-market/media-api/pkg/logging"
	"go.uber.org/zap"
)

const fileCacheVersion = "2"

// FileCache is a file-based implementation of the Cache interface with in-memory layer.
// Used in development so resolutions survive restarts; production runs memory or redis.
type FileCache struct {
	filePath     string
	data         map[string]*cacheEntry
	mu           sync.RWMutex
	saveInterval time.Duration
	stop         chan struct{}
	done         chan struct{}
	closeOnce    sync.Once
}

type fileCacheData struct {
	Entries map[string]*fileCacheEntry `json:"entries"`
	Version string                     `json:"version"`
}

type fileCacheEntry struct {
	Value     json.RawMessage `json:"value"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// NewFileCache creates a new file-based cache with persistence
func NewFileCache(filePath string, saveInterval time.Duration) (*FileCache, error) {
	if saveInterval <= 0 {
		saveInterval = 30 * time.Second
	}
	fc := &FileCache{
		filePath:     filePath,
		data:         make(map[string]*cacheEntry),
		saveInterval: saveInterval,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}

	// Ensure directory exists
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	// Load existing cache from file if it exists
	if err := fc.load(); err != nil {
		logging.Logger.Warn("Failed to load resolution cache from file, starting with empty cache",
			zap.String("file", filePath),
			zap.Error(err))
	}

	go fc.run()

	return fc, nil
}

// Set stores a value in the cache with the specified TTL
func (fc *FileCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	fc.mu.Lock()
	defer fc.mu.Unlock()

	fc.data[key] = &cacheEntry{
		value:     data,
		expiresAt: time.Now().Add(ttl),
	}

	return nil
}

// Get retrieves a value from the cache and unmarshals it into dest
func (fc *FileCache) Get(ctx context.Context, key string, dest interface{}) error {
	fc.mu.RLock()
	entry, exists := fc.data[key]
	fc.mu.RUnlock()

	if !exists {
		return ErrCacheNotFound
	}

	if time.Now().After(entry.expiresAt) {
		fc.mu.Lock()
		delete(fc.data, key)
		fc.mu.Unlock()
		return ErrCacheExpired
	}

	return json.Unmarshal(entry.value, dest)
}

// run drops expired entries and saves the cache to disk every save interval
func (fc *FileCache) run() {
	defer close(fc.done)

	ticker := time.NewTicker(fc.saveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-fc.stop:
			return
		case <-ticker.C:
		}

		now := time.Now()
		fc.mu.Lock()
		cleaned := 0
		for key, entry := range fc.data {
			if now.After(entry.expiresAt) {
				delete(fc.data, key)
				cleaned++
			}
		}
		fc.mu.Unlock()

		if cleaned > 0 {
			logging.Logger.Debug("Cleaned expired cache entries", zap.Int("count", cleaned))
		}

		if err := fc.save(); err != nil {
			logging.Logger.Warn("Failed to save resolution cache to file",
				zap.String("file", fc.filePath),
				zap.Error(err))
		}
	}
}

// load loads the cache from disk
func (fc *FileCache) load() error {
	data, err := os.ReadFile(fc.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File doesn't exist yet, that's ok
		}
		return err
	}

	var fileData fileCacheData
	if err := json.Unmarshal(data, &fileData); err != nil {
		return fmt.Errorf("failed to unmarshal cache file: %w", err)
	}
	if fileData.Version != fileCacheVersion {
		return fmt.Errorf("cache file version %q, want %q", fileData.Version, fileCacheVersion)
	}

	fc.mu.Lock()
	defer fc.mu.Unlock()

	now := time.Now()
	loaded, expired := 0, 0
	for key, entry := range fileData.Entries {
		// Skip expired entries during load
		if now.After(entry.ExpiresAt) {
			expired++
			continue
		}
		fc.data[key] = &cacheEntry{
			value:     entry.Value,
			expiresAt: entry.ExpiresAt,
		}
		loaded++
	}

	logging.Logger.Info("Resolution cache loaded from disk",
		zap.String("file", fc.filePath),
		zap.Int("loaded", loaded),
		zap.Int("expired", expired))

	return nil
}

// save writes live entries to a temp file and renames it over the cache file
func (fc *FileCache) save() error {
	fc.mu.RLock()
	fileData := fileCacheData{
		Version: fileCacheVersion,
		Entries: make(map[string]*fileCacheEntry, len(fc.data)),
	}
	now := time.Now()
	for key, entry := range fc.data {
		if now.After(entry.expiresAt) {
			continue
		}
		fileData.Entries[key] = &fileCacheEntry{
			Value:     entry.value,
			ExpiresAt: entry.expiresAt,
		}
	}
	fc.mu.RUnlock()

	data, err := json.MarshalIndent(fileData, "", "  ")
	if err != nil {
		return err
	}

	tempFile := fc.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tempFile, fc.filePath); err != nil {
		return err
	}

	logging.Logger.Debug("Resolution cache saved to disk",
		zap.String("file", fc.filePath),
		zap.Int("entries", len(fileData.Entries)))

	return nil
}

// Close stops the background worker and saves the cache one final time
func (fc *FileCache) Close() error {
	fc.closeOnce.Do(func() {
		close(fc.stop)
		<-fc.done
	})
	return fc.save()
}
