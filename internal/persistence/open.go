package persistence

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/pod-console/internal/config"
	"github.com/spec-kit/pod-console/internal/storage"
)

// OpenStorage connects the backend selected by STORAGE_BACKEND. The returned
// closer releases the store and any connection it owns.
func OpenStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Storage, func(), error) {
	logger = logger.With(zap.String("backend", cfg.Storage.Backend))

	switch cfg.Storage.Backend {
	case config.BackendMemory:
		logger.Warn("memory storage is not shared with other console processes")
		store := storage.NewMemoryOrigin().Open()
		return store, func() { _ = store.Close() }, nil

	case config.BackendFile:
		store, err := storage.NewFileStore(cfg.Storage.FilePath, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using file storage", zap.String("path", cfg.Storage.FilePath))
		return store, func() { _ = store.Close() }, nil

	case config.BackendRedis:
		rdb, err := NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			return nil, nil, err
		}
		store := storage.NewRedisStore(rdb.Client, cfg.Redis.Prefix, logger)
		return store, func() {
			_ = store.Close()
			rdb.Close()
		}, nil

	case config.BackendPostgres:
		pg, err := NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Postgres.RunMigrations {
			if err := RunMigrations(ctx, pg.Pool, logger); err != nil {
				pg.Close()
				return nil, nil, err
			}
		}
		store := storage.NewPostgresStore(pg.Pool, logger)
		return store, func() {
			_ = store.Close()
			pg.Close()
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}
