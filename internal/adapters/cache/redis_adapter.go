package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zatekoja/smartcare/backend/internal/domain/providers"
	redisclient "github.com/zatekoja/smartcare/backend/internal/infrastructure/clients/redis"
	apperrors "github.com/zatekoja/smartcare/backend/pkg/errors"
)

// RedisAdapter implements CacheProvider on Redis. It backs check-in
// idempotency keys and cached board reads.
type RedisAdapter struct {
	client *redisclient.Client
}

// NewRedisAdapter creates a new Redis cache adapter
func NewRedisAdapter(client *redisclient.Client) providers.CacheProvider {
	return &RedisAdapter{client: client}
}

// Get retrieves a value; a missing key is a NotFound error
func (a *RedisAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := a.client.Client().Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("key not found: %s", key))
	}
	if err != nil {
		return nil, apperrors.NewExternalError("failed to get from cache", err)
	}
	return result, nil
}

// Set stores a value with expiration
func (a *RedisAdapter) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	expiration := time.Duration(ttlSeconds) * time.Second
	if err := a.client.Client().Set(ctx, key, value, expiration).Err(); err != nil {
		return apperrors.NewExternalError("failed to set in cache", err)
	}
	return nil
}
