package store

import (
	"fmt"
	"os"
	"path/filepath"

	"gridprobe/config"
)

// NewBundle creates a store Bundle based on the storage configuration.
func NewBundle(cfg config.Storage) (*Bundle, error) {
	switch cfg.Backend {
	case "sqlite":
		dir := filepath.Dir(cfg.Path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create storage directory %s: %w", dir, err)
		}
		return NewSQLiteBundle(cfg.Path)

	case "memory", "":
		return NewMemoryBundle(), nil

	default:
		return nil, fmt.Errorf("unknown storage backend: %s (expected 'memory' or 'sqlite')", cfg.Backend)
	}
}
