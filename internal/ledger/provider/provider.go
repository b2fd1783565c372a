// Package provider opens the ledger backend selected in configuration.
package provider

import (
	"context"
	"fmt"

	"github.com/elsbot/snapshotbot/internal/config"
	"github.com/elsbot/snapshotbot/internal/ledger"
	"github.com/elsbot/snapshotbot/internal/ledger/postgres"
	"github.com/elsbot/snapshotbot/internal/ledger/redis"
	"github.com/elsbot/snapshotbot/internal/ledger/sqlite"
)

// Open connects to the configured backend and ensures its schema exists.
func Open(ctx context.Context, cfg config.LedgerConfig) (ledger.Store, error) {
	switch cfg.Provider {
	case config.ProviderPostgres, "":
		store, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.DSN,
			Table:          cfg.Table,
			MaxConns:       cfg.MaxConns,
			ConnectTimeout: cfg.ConnectTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("open postgres ledger: %w", err)
		}
		return store, nil
	case config.ProviderSQLite:
		store, err := sqlite.Open(cfg.SQLitePath, cfg.Table)
		if err != nil {
			return nil, fmt.Errorf("open sqlite ledger: %w", err)
		}
		return store, nil
	case config.ProviderRedis:
		store, err := redis.New(ctx, redis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Key:      cfg.RedisKey,
		})
		if err != nil {
			return nil, fmt.Errorf("open redis ledger: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown ledger provider %q", cfg.Provider)
	}
}
