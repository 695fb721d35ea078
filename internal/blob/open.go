// Package blob selects the object store backend used for export artifacts.
package blob

import (
	"context"
	"fmt"
	"foodflow/internal/blob/core"
	fsstore "foodflow/internal/infra/blob/fs"
	memorystore "foodflow/internal/infra/blob/memory"
	s3store "foodflow/internal/infra/blob/s3"
)

// Config describes the blob backend to open.
type Config struct {
	Driver    string
	FSRoot    string
	FSBaseURL string
	S3        s3store.Config
}

// Open constructs the configured core.Store. The filesystem driver is the
// default.
func Open(ctx context.Context, cfg Config) (core.Store, error) {
	driver, err := core.ParseDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}
	switch driver {
	case core.DriverMemory:
		return memorystore.New(), nil
	case core.DriverS3:
		store, err := s3store.New(ctx, cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("open s3 blob store: %w", err)
		}
		return store, nil
	default:
		store, err := fsstore.New(cfg.FSRoot, cfg.FSBaseURL)
		if err != nil {
			return nil, fmt.Errorf("open fs blob store: %w", err)
		}
		return store, nil
	}
}
