package main

import (
	"fmt"

	"github.com/jarvis-tasks/jarvis/internal/config"
	"github.com/jarvis-tasks/jarvis/internal/store"
	"github.com/jarvis-tasks/jarvis/internal/store/postgres"
	"github.com/jarvis-tasks/jarvis/internal/store/sqlite"
)

// openStore opens the backend named by cfg.Store. Config.Load has already
// rejected unknown names.
func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		return sqlite.New(cfg.SQLitePath)
	case config.StorePostgres:
		return postgres.New(cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}
