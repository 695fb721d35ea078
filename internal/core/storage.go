package core

import (
	"context"
	"fmt"
	"foodflow/internal/infra/persistence/memory"
	"foodflow/internal/infra/persistence/postgres"
	"foodflow/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StorageConfig selects and locates the persistent store.
type StorageConfig struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
}

// ClosablePersistentStore is a PersistentStore that owns a database handle.
type ClosablePersistentStore interface {
	PersistentStore
	Close() error
}

type nopCloser struct{ *memory.Store }

func (nopCloser) Close() error { return nil }

// OpenPersistentStore opens the configured backend. An empty driver selects sqlite.
func OpenPersistentStore(ctx context.Context, cfg StorageConfig, engine *RulesEngine, opts ...memory.Option) (ClosablePersistentStore, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return nopCloser{memory.NewStore(engine, opts...)}, nil
	case StorageSQLite:
		ss, err := sqlite.NewStore(cfg.SQLitePath, engine, opts...)
		if err != nil {
			return nil, err
		}
		return ss, nil
	case StoragePostgres:
		ps, err := postgres.NewStore(ctx, cfg.PostgresDSN, engine, opts...)
		if err != nil {
			return nil, err
		}
		return ps, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
