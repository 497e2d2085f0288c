package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

const healthCheckTimeout = 2 * time.Second

// Pinger is a dependency that can report its reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports liveness and the reachability of optional dependencies
type HealthHandler struct {
	version string
	deps    map[string]Pinger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{version: version, deps: make(map[string]Pinger)}
}

// AddDependency registers a dependency checked on every health request
func (h *HealthHandler) AddDependency(name string, p Pinger) {
	h.deps[name] = p
}

// Health handles GET /health. The in-memory queue always works, so failing
// dependencies degrade the report but keep the status 200.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	names := make([]string, 0, len(h.deps))
	for name := range h.deps {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]string, len(names))
	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			if err := h.deps[name].Ping(ctx); err != nil {
				results[i] = "unreachable: " + err.Error()
				return nil
			}
			results[i] = "ok"
			return nil
		})
	}
	_ = g.Wait()

	status := "ok"
	checks := make(map[string]string, len(names))
	for i, name := range names {
		checks[name] = results[i]
		if results[i] != "ok" {
			status = "degraded"
		}
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"status":  status,
		"version": h.version,
		"checks":  checks,
	})
}
