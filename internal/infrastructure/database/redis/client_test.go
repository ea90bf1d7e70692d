package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/clauselens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/clauselens/pkg/errors"
)

func newMiniClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewClient(&RedisConfig{Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestNewClient(t *testing.T) {
	client, _ := newMiniClient(t)
	assert.NoError(t, client.Ping(context.Background()))
	assert.Equal(t, 20, client.config.PoolSize)
}

func TestNewClient_Errors(t *testing.T) {
	_, err := NewClient(nil, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))

	client, err := NewClient(&RedisConfig{Addr: "127.0.0.1:1"}, nil)
	assert.Nil(t, client)
	assert.True(t, errors.IsCode(err, errors.ErrCodeCacheError))
}

func TestClient_Operations(t *testing.T) {
	client, _ := newMiniClient(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "foo", "bar", 0).Err())
	val, err := client.Get(ctx, "foo").Result()
	require.NoError(t, err)
	assert.Equal(t, "bar", val)

	ok, err := client.SetNX(ctx, "foo", "baz", 0).Result()
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := client.Del(ctx, "foo").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = client.Exists(ctx, "foo").Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestClient_Close(t *testing.T) {
	client, _ := newMiniClient(t)
	require.NoError(t, client.Close())
	assert.NoError(t, client.Close())

	ctx := context.Background()
	assert.Equal(t, ErrClientClosed, client.Get(ctx, "foo").Err())
	assert.Equal(t, ErrClientClosed, client.Set(ctx, "foo", "bar", 0).Err())
	assert.Equal(t, ErrClientClosed, client.Del(ctx, "foo").Err())
	assert.Equal(t, ErrClientClosed, client.Ping(ctx))
}
