package database

import (
	"fmt"
	"os"
	"path/filepath"

	"fieldsync/internal/config"
)

// NewStoreFromConfig opens the local store selected by cfg.Type.
// A sqlite store lives at <data_dir>/<deviceID>.db.
func NewStoreFromConfig(cfg config.StoreConfig, deviceID string) (*SQLiteStore, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite store")
		}
		if deviceID == "" {
			return nil, fmt.Errorf("device_id required for sqlite store")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		return OpenSQLiteStore(filepath.Join(cfg.DataDir, deviceID+".db"))
	case "memory":
		return OpenSQLiteStore(":memory:")
	default:
		return nil, fmt.Errorf("unknown store type: %q", cfg.Type)
	}
}
