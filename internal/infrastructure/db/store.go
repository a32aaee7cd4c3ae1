// Package db opens the key-value store selected by configuration.
package db

import (
	"context"
	"fmt"

	"github.com/99minutos/create-admin/internal/core/ports"
	"github.com/99minutos/create-admin/internal/infrastructure/db/memory"
	"github.com/99minutos/create-admin/internal/infrastructure/db/mongo"
	"github.com/99minutos/create-admin/internal/infrastructure/db/redis"
	"github.com/99minutos/create-admin/internal/infrastructure/db/sqlite"
	"github.com/99minutos/create-admin/internal/pkg/config"
)

// Open connects to the configured store. The caller closes it.
func Open(ctx context.Context, cfg *config.Config) (ports.KVStore, error) {
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		return sqlite.Open(ctx, sqlite.Config{
			Path:      cfg.SQLite.Path,
			Namespace: cfg.SQLite.Namespace,
			Timeout:   cfg.Store.Timeout,
		})

	case config.DriverRedis:
		client, err := redis.Connect(ctx, redis.Config{
			Addr:    cfg.Redis.Addr,
			DB:      cfg.Redis.DB,
			Timeout: cfg.Store.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return redis.NewStore(client, cfg.Redis.Prefix), nil

	case config.DriverMongo:
		client, database, err := mongo.Connect(ctx, mongo.Config{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
			Timeout:  cfg.Store.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return mongo.NewStore(client, database, cfg.Mongo.Collection, cfg.Store.Timeout), nil

	case config.DriverMemory:
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
}
