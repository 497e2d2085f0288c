package providers

import "context"

// CacheProvider is the short-lived key/value store behind check-in replay and
// the board response cache. Get reports a missing or expired key as a
// NotFound AppError.
type CacheProvider interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value for ttlSeconds; 0 keeps it until evicted
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
}
