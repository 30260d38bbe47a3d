package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/abgdnv/storefront/internal/storage"
	"github.com/abgdnv/storefront/pkg/bootstrap"
	"github.com/abgdnv/storefront/pkg/config"
)

// OpenStorage connects the backend selected by cfg.Driver. The returned func
// releases the connection and must be called once the store is no longer used.
func OpenStorage(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (storage.KV, func(), error) {
	switch cfg.Driver {
	case config.StorageMemory:
		logger.Warn("Using in-memory storage, the cart is lost on exit")
		return storage.NewMemoryStore(), func() {}, nil

	case config.StorageSQLite:
		db, err := bootstrap.NewSQLite(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		closeDB := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		kv, err := storage.NewSQLiteStore(db, cfg.Namespace)
		if err != nil {
			closeDB()
			return nil, nil, err
		}
		logger.Info("Opened sqlite storage", "path", cfg.SQLite.Path)
		return kv, closeDB, nil

	case config.StorageRedis:
		client, err := bootstrap.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Connected to redis storage", "addr", cfg.Redis.Addr)
		return storage.NewRedisStore(client, cfg.Namespace), func() { _ = client.Close() }, nil

	case config.StoragePostgres:
		if err := storage.Migrate(cfg.Postgres.URL); err != nil {
			return nil, nil, err
		}
		pool, err := bootstrap.NewDbPool(ctx, cfg.Postgres.URL, cfg.Postgres.Timeout)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Connected to postgres storage", "url", config.MaskURL(cfg.Postgres.URL))
		return storage.NewPgStore(pool, cfg.Namespace), pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver: %q", cfg.Driver)
	}
}
