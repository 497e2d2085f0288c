package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/zatekoja/smartcare/backend/internal/domain/entities"
	"github.com/zatekoja/smartcare/backend/internal/domain/providers"
	"github.com/zatekoja/smartcare/backend/internal/infrastructure/observability"
)

// CacheConfig holds cache configuration for specific routes
type CacheConfig struct {
	TTLSeconds int
	Enabled    bool
}

// DefaultBoardRoutes are the aggregate reads display boards poll
func DefaultBoardRoutes() map[string]CacheConfig {
	return map[string]CacheConfig{
		"/api/queue/status":    {TTLSeconds: 2, Enabled: true},
		"/api/crowd/status":    {TTLSeconds: 2, Enabled: true},
		"/api/ai/insights":     {TTLSeconds: 5, Enabled: true},
		"/api/emergency/stats": {TTLSeconds: 5, Enabled: true},
		"/api/activity/stats":  {TTLSeconds: 5, Enabled: true},
	}
}

// CacheMiddleware caches short-lived snapshots of board reads. Any non-GET
// request passing through bumps a generation counter that is part of every
// key, so a write is never followed by a stale read from the same process.
// Changes made off the request path (periodic recalculation, allocation
// passes) bump it through Emit.
type CacheMiddleware struct {
	cache        providers.CacheProvider
	routeConfigs map[string]CacheConfig
	generation   atomic.Uint64
}

// NewCacheMiddleware creates a new cache middleware
func NewCacheMiddleware(cache providers.CacheProvider, routes map[string]CacheConfig) *CacheMiddleware {
	if routes == nil {
		routes = DefaultBoardRoutes()
	}
	return &CacheMiddleware{
		cache:        cache,
		routeConfigs: routes,
	}
}

// Middleware returns the cache middleware handler
func (m *CacheMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			next.ServeHTTP(w, r)
			m.generation.Add(1)
			return
		}
		if m.cache == nil {
			next.ServeHTTP(w, r)
			return
		}

		config, ok := m.routeConfigs[r.URL.Path]
		if !ok || !config.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		logger := observability.LoggerFromContext(r.Context())
		cacheKey := m.generateCacheKey(r)

		if cached, err := m.cache.Get(r.Context(), cacheKey); err == nil {
			w.Header().Set("X-Cache", "HIT")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(cached)
			return
		}

		w.Header().Set("X-Cache", "MISS")
		recorder := &responseRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
			body:           &bytes.Buffer{},
		}
		next.ServeHTTP(recorder, r)

		if recorder.statusCode == http.StatusOK && recorder.body.Len() > 0 {
			if err := m.cache.Set(r.Context(), cacheKey, recorder.body.Bytes(), config.TTLSeconds); err != nil {
				logger.Debug().Err(err).Str("path", r.URL.Path).Msg("Failed to cache response")
			}
		}
	})
}

// Invalidate makes every cached snapshot unreachable
func (m *CacheMiddleware) Invalidate() {
	m.generation.Add(1)
}

// Emit invalidates cached snapshots on every queue event, so the middleware
// can be registered as a service event emitter
func (m *CacheMiddleware) Emit(*entities.QueueEvent) {
	m.Invalidate()
}

func (m *CacheMiddleware) generateCacheKey(r *http.Request) string {
	key := fmt.Sprintf("%d:%s:%s", m.generation.Load(), r.Method, r.URL.Path)
	if r.URL.RawQuery != "" {
		key += "?" + r.URL.RawQuery
	}
	hash := sha256.Sum256([]byte(key))
	return "smartcare:http:" + hex.EncodeToString(hash[:])
}

// responseRecorder captures the response for caching
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
	written    bool
}

// WriteHeader captures the status code
func (r *responseRecorder) WriteHeader(statusCode int) {
	if !r.written {
		r.statusCode = statusCode
		r.ResponseWriter.WriteHeader(statusCode)
		r.written = true
	}
}

// Write captures the response body and writes to the client
func (r *responseRecorder) Write(data []byte) (int, error) {
	if !r.written {
		r.WriteHeader(http.StatusOK)
	}
	r.body.Write(data)
	return r.ResponseWriter.Write(data)
}
