// Package backend открывает хранилище, выбранное в конфигурации
package backend

import (
	"context"
	"fmt"

	"github.com/iudanet/luxta/internal/config"
	"github.com/iudanet/luxta/internal/server/storage"
	"github.com/iudanet/luxta/internal/server/storage/boltdb"
	"github.com/iudanet/luxta/internal/server/storage/memory"
	"github.com/iudanet/luxta/internal/server/storage/redisstore"
	"github.com/iudanet/luxta/internal/server/storage/sqlite"
)

// Open создает storage.Store по cfg.Store
func Open(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.Store {
	case config.StoreBolt:
		s, err := boltdb.New(ctx, cfg.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("open bolt store: %w", err)
		}
		return s, nil
	case config.StoreSQLite:
		s, err := sqlite.New(ctx, cfg.SQLiteDSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, nil
	case config.StoreRedis:
		s, err := redisstore.New(ctx, redisstore.Options{
			Address:   cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		return s, nil
	case config.StoreMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}
