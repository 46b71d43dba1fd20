package kvstore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"scheduler-client/internal/config"
	"scheduler-client/internal/database"
)

// Open builds the store selected by cfg.StoreDriver. The caller owns Close.
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger) (Store, error) {
	switch strings.ToLower(cfg.StoreDriver) {
	case "memory":
		log.Warn("using in-memory store, local data will not survive a restart")
		return NewMemoryStore(), nil

	case "redis":
		client, err := database.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			return nil, err
		}
		return NewRedisStore(client, cfg.StoreNamespace), nil

	case "postgres":
		pool, err := database.NewPostgresPool(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := database.RunMigrations(ctx, pool, log); err != nil {
			pool.Close()
			return nil, err
		}
		return NewPostgresStore(pool, cfg.StoreNamespace, pool.Close), nil
	}

	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
