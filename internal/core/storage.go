package core

import (
	"fmt"
	"os"

	"autoinspect/internal/infra/persistence/memory"
	"autoinspect/internal/infra/persistence/postgres"
	"autoinspect/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StorageConfig selects and configures a persistence backend.
type StorageConfig struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
}

// StorageConfigFromEnv reads the backend selection from the environment.
//
//	AUTOINSPECT_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	AUTOINSPECT_SQLITE_PATH: path to sqlite file (default ./autoinspect.db)
//	AUTOINSPECT_POSTGRES_DSN: postgres DSN when driver=postgres
func StorageConfigFromEnv() StorageConfig {
	return StorageConfig{
		Driver:      StorageDriver(os.Getenv("AUTOINSPECT_STORAGE_DRIVER")),
		SQLitePath:  os.Getenv("AUTOINSPECT_SQLITE_PATH"),
		PostgresDSN: os.Getenv("AUTOINSPECT_POSTGRES_DSN"),
	}
}

// OpenPersistentStore opens the configured backend. Defaults to sqlite when
// the driver is unset.
func OpenPersistentStore(cfg StorageConfig, engine *RulesEngine) (PersistentStore, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageSQLite:
		return sqlite.NewStore(cfg.SQLitePath, engine)
	case StoragePostgres:
		return postgres.NewStore(cfg.PostgresDSN, engine)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
