package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arcade-market/media-api/pkg/logging"
)

// GetOrCreateInstanceID retrieves or creates a unique instance ID for this service.
// The ID is stored in a file so it persists across restarts; an empty path yields a fresh ID.
func GetOrCreateInstanceID(path string) (string, error) {
	if path == "" {
		instanceID := uuid.New().String()
		logging.Logger.Info("Generated ephemeral instance ID", zap.String("id", instanceID))
		return instanceID, nil
	}

	data, err := os.ReadFile(path)
	if err == nil {
		if instanceID := strings.TrimSpace(string(data)); instanceID != "" {
			if _, parseErr := uuid.Parse(instanceID); parseErr == nil {
				logging.Logger.Info("Loaded existing instance ID", zap.String("id", instanceID))
				return instanceID, nil
			}
			logging.Logger.Warn("Instance ID file holds an invalid ID, regenerating", zap.String("path", path))
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read instance ID file: %w", err)
	}

	instanceID := uuid.New().String()
	logging.Logger.Info("Generated new instance ID", zap.String("id", instanceID))

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create instance ID directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(instanceID+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("failed to save instance ID: %w", err)
	}

	logging.Logger.Info("Saved instance ID", zap.String("path", path))
	return instanceID, nil
}
