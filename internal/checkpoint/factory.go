package checkpoint

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"quizdigest/internal/config"
	"quizdigest/pkg/db"
	pkgredis "quizdigest/pkg/redis"
)

// Open builds the Store for cfg.Checkpoint.Backend. The returned func releases
// any connection the backend holds.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Store, func(), error) {
	var (
		backend Backend
		closer  = func() {}
	)

	switch cfg.Checkpoint.Backend {
	case "file":
		backend = NewFileBackend(cfg.Checkpoint.Path)

	case "redis":
		rdb := pkgredis.NewRedisClient(cfg.Redis)
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		backend = NewRedisBackend(rdb, cfg.Checkpoint.Key)
		closer = func() { _ = rdb.Close() }

	case "postgres":
		pool, err := db.NewConnection(ctx, cfg.DB, logger)
		if err != nil {
			return nil, nil, err
		}
		pg, err := NewPostgresBackend(ctx, pool, cfg.Checkpoint.Key)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		backend = pg
		closer = pool.Close

	case "sqlite":
		lite, err := NewSQLiteBackend(cfg.Checkpoint.Path, cfg.Checkpoint.Key)
		if err != nil {
			return nil, nil, err
		}
		backend = lite
		closer = func() { _ = lite.Close() }

	default:
		return nil, nil, fmt.Errorf("unknown checkpoint backend %q", cfg.Checkpoint.Backend)
	}

	logger.Info("Checkpoint store ready",
		zap.String("backend", backend.Name()),
		zap.String("timezone", cfg.Location().String()),
	)
	return NewStore(backend, cfg.Location(), logger), closer, nil
}
