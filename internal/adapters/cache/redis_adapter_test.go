package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	redisclient "github.com/zatekoja/smartcare/backend/internal/infrastructure/clients/redis"
	apperrors "github.com/zatekoja/smartcare/backend/pkg/errors"
)

func newTestAdapter(t *testing.T) (*miniredis.Miniredis, *RedisAdapter) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisclient.NewClientFromAddr(mr.Addr())
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisAdapter(client).(*RedisAdapter)
}

func TestRedisAdapter_SetGetExpire(t *testing.T) {
	mr, cache := newTestAdapter(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "smartcare:checkin:k1", []byte(`{"entry_id":"e1"}`), 60))

	got, err := cache.Get(ctx, "smartcare:checkin:k1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"entry_id":"e1"}`, string(got))

	assert.True(t, mr.Exists("smartcare:checkin:k1"))

	mr.FastForward(61 * time.Second)
	_, err = cache.Get(ctx, "smartcare:checkin:k1")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestRedisAdapter_ZeroTTLPersists(t *testing.T) {
	mr, cache := newTestAdapter(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", []byte("v"), 0))
	mr.FastForward(time.Hour)
	assert.Equal(t, time.Duration(0), mr.TTL("k"))

	got, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))
}

func TestRedisAdapter_ServerDown(t *testing.T) {
	mr, cache := newTestAdapter(t)
	mr.Close()

	_, err := cache.Get(context.Background(), "k")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
}
