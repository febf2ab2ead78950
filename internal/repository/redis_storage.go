package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/nexlearn-dashboard/pkg/storage"
)

// RedisCommander is the subset of redis.Cmdable used by RedisStorage.
type RedisCommander interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RedisStorage keeps visitor namespaces in Redis under
// <prefix><visitor>:<key>. Every read or write slides the key's TTL.
type RedisStorage struct {
	client RedisCommander
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisStorage constructs a redis-backed session storage.
func NewRedisStorage(client RedisCommander, prefix string, ttl time.Duration, logger *zap.Logger) *RedisStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStorage{client: client, prefix: prefix, ttl: ttl, logger: logger}
}

// Namespace implements storage.Backend.
func (r *RedisStorage) Namespace(id string) storage.KeyValue {
	return &redisNamespace{repo: r, id: id}
}

func (r *RedisStorage) key(id, key string) string {
	return r.prefix + id + ":" + key
}

type redisNamespace struct {
	repo *RedisStorage
	id   string
}

func (n *redisNamespace) Get(ctx context.Context, key string) (string, bool, error) {
	if n.repo.client == nil {
		return "", false, nil
	}

	full := n.repo.key(n.id, key)
	value, err := n.repo.client.Get(ctx, full).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get %s: %w", full, err)
	}

	if n.repo.ttl > 0 {
		if err := n.repo.client.Expire(ctx, full, n.repo.ttl).Err(); err != nil {
			n.repo.logger.Warn("failed to refresh session key ttl", zap.String("key", full), zap.Error(err))
		}
	}

	return value, true, nil
}

func (n *redisNamespace) Set(ctx context.Context, key, value string) error {
	if n.repo.client == nil {
		return nil
	}

	full := n.repo.key(n.id, key)
	if err := n.repo.client.Set(ctx, full, value, n.repo.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", full, err)
	}
	return nil
}

func (n *redisNamespace) Remove(ctx context.Context, key string) error {
	if n.repo.client == nil {
		return nil
	}

	full := n.repo.key(n.id, key)
	if err := n.repo.client.Del(ctx, full).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", full, err)
	}
	return nil
}
