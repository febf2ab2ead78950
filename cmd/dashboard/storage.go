package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/nexlearn-dashboard/internal/handler"
	"github.com/noah-isme/nexlearn-dashboard/internal/repository"
	"github.com/noah-isme/nexlearn-dashboard/pkg/cache"
	"github.com/noah-isme/nexlearn-dashboard/pkg/config"
	"github.com/noah-isme/nexlearn-dashboard/pkg/database"
	"github.com/noah-isme/nexlearn-dashboard/pkg/storage"
)

const janitorInterval = time.Hour

// backing bundles the durable session backend with everything main needs to
// keep it healthy.
type backing struct {
	backend storage.Backend
	checks  map[string]handler.ReadinessCheck
	janitor func(ctx context.Context)
	close   func()
}

func openStorage(ctx context.Context, cfg *config.Config, logr *zap.Logger) (*backing, error) {
	log := logr.Named("storage").With(zap.String("driver", cfg.Storage.Driver))

	switch cfg.Storage.Driver {
	case "", config.StorageMemory:
		return &backing{backend: storage.NewMemoryBackend(), close: func() {}}, nil

	case config.StorageFile:
		fb, err := storage.NewFileBackend(cfg.Storage.Dir)
		if err != nil {
			return nil, fmt.Errorf("open session dir: %w", err)
		}
		return &backing{
			backend: fb,
			janitor: func(context.Context) {
				removed, err := fb.CleanupOlderThan(cfg.Storage.TTL)
				if err != nil {
					log.Warn("session cleanup failed", zap.Error(err))
					return
				}
				if len(removed) > 0 {
					log.Info("expired sessions removed", zap.Int("count", len(removed)))
				}
			},
			close: func() {},
		}, nil

	case config.StorageRedis:
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return &backing{
			backend: repository.NewRedisStorage(client, cfg.Storage.KeyPrefix, cfg.Storage.TTL, log),
			checks: map[string]handler.ReadinessCheck{
				"redis": func(ctx context.Context) error { return client.Ping(ctx).Err() },
			},
			close: func() { _ = client.Close() },
		}, nil

	case config.StoragePostgres:
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		pg := repository.NewPostgresStorage(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure session schema: %w", err)
		}
		return &backing{
			backend: pg,
			checks: map[string]handler.ReadinessCheck{
				"postgres": db.PingContext,
			},
			janitor: func(ctx context.Context) {
				n, err := pg.PurgeOlderThan(ctx, cfg.Storage.TTL)
				if err != nil {
					log.Warn("session purge failed", zap.Error(err))
					return
				}
				if n > 0 {
					log.Info("expired sessions purged", zap.Int64("count", n))
				}
			},
			close: func() { _ = db.Close() },
		}, nil
	}

	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

func (b *backing) runJanitor(ctx context.Context) {
	if b.janitor == nil {
		return
	}
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	b.janitor(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.janitor(ctx)
		}
	}
}
