package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/zatekoja/smartcare/backend/internal/infrastructure/observability"
)

const limiterIdleTTL = 10 * time.Minute

type actorLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ActorRateLimiter limits requests per actor. Requests without an X-Actor-ID
// header are keyed by client address.
type ActorRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*actorLimiter
	rate     rate.Limit
	burst    int
	now      func() time.Time
}

// NewActorRateLimiter allows perMinute requests per actor with the given burst
func NewActorRateLimiter(perMinute, burst int) *ActorRateLimiter {
	if perMinute <= 0 {
		perMinute = 10
	}
	if burst <= 0 {
		burst = 1
	}
	return &ActorRateLimiter{
		limiters: make(map[string]*actorLimiter),
		rate:     rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    burst,
		now:      time.Now,
	}
}

// Allow reports whether key may make a request now
func (l *ActorRateLimiter) Allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.limiters[key]
	if !ok {
		l.evictIdleLocked(now)
		entry = &actorLimiter{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func (l *ActorRateLimiter) evictIdleLocked(now time.Time) {
	for key, entry := range l.limiters {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(l.limiters, key)
		}
	}
}

// Middleware rejects requests over the actor's limit with 429
func (l *ActorRateLimiter) Middleware(next http.Handler) http.Handler {
	retryAfter := strconv.Itoa(max(int(time.Duration(float64(time.Second)/float64(l.rate)).Seconds()), 1))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := actorKey(r)
		if !l.Allow(key) {
			observability.LoggerFromContext(r.Context()).Warn().
				Str("actor", key).
				Str("path", r.URL.Path).
				Msg("Rate limit exceeded")
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", retryAfter)
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func actorKey(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-Actor-ID")); id != "" {
		return "actor:" + id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
