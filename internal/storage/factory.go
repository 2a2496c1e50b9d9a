package storage

import (
	"fmt"

	"github.com/framedrop/framedrop/pkg/config"
)

// NewFromConfig creates the storage backend selected by configuration
func NewFromConfig(cfg *config.StorageConfig) (ObjectStore, error) {
	switch cfg.Type {
	case "local":
		return NewLocalStorage(cfg.LocalPath)
	case "s3":
		return NewS3Storage(cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
