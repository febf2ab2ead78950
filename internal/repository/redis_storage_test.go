package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	values  map[string]string
	ttls    map[string]time.Duration
	expires int
	failGet error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.failGet != nil {
		return redis.NewStringResult("", f.failGet)
	}
	value, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(value, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.values[key] = value.(string)
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var removed int64
	for _, key := range keys {
		if _, ok := f.values[key]; ok {
			delete(f.values, key)
			removed++
		}
	}
	return redis.NewIntResult(removed, nil)
}

func (f *fakeRedis) Expire(_ context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	f.expires++
	f.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func TestRedisStorageNamespacesKeys(t *testing.T) {
	ctx := context.Background()
	client := newFakeRedis()
	repo := NewRedisStorage(client, "nexlearn:session:", time.Hour, nil)

	ns := repo.Namespace("visitor-1")
	require.NoError(t, ns.Set(ctx, "token", "abc"))
	assert.Equal(t, "abc", client.values["nexlearn:session:visitor-1:token"])
	assert.Equal(t, time.Hour, client.ttls["nexlearn:session:visitor-1:token"])

	value, ok, err := ns.Get(ctx, "token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", value)
	assert.Equal(t, 1, client.expires)

	_, ok, err = repo.Namespace("visitor-2").Get(ctx, "token")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, ns.Remove(ctx, "token"))
	_, ok, err = ns.Get(ctx, "token")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStorageWithoutTTLDoesNotRefresh(t *testing.T) {
	ctx := context.Background()
	client := newFakeRedis()
	ns := NewRedisStorage(client, "p:", 0, nil).Namespace("v")

	require.NoError(t, ns.Set(ctx, "user", "{}"))
	_, _, err := ns.Get(ctx, "user")
	require.NoError(t, err)
	assert.Zero(t, client.expires)
}

func TestRedisStoragePropagatesErrors(t *testing.T) {
	client := newFakeRedis()
	client.failGet = errors.New("connection refused")
	ns := NewRedisStorage(client, "p:", time.Minute, nil).Namespace("v")

	_, _, err := ns.Get(context.Background(), "token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "p:v:token")
}

func TestRedisStorageNilClient(t *testing.T) {
	ctx := context.Background()
	ns := NewRedisStorage(nil, "p:", time.Minute, nil).Namespace("v")

	_, ok, err := ns.Get(ctx, "token")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, ns.Set(ctx, "token", "x"))
	assert.NoError(t, ns.Remove(ctx, "token"))
}
