package storage

import (
	"context"
	"fmt"

	"github.com/skilltracker/apiserver/config"
)

// FromConfig builds a Storage for the configured provider. It returns
// (nil, nil) when no provider is configured; callers treat a nil Storage
// as "archiving disabled".
func FromConfig(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	switch cfg.Provider {
	case "":
		return nil, nil
	case "minio":
		backend, err := NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		return NewStorage(backend), nil
	case "gcs":
		backend, err := NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		return NewStorage(backend), nil
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}
