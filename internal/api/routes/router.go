package routes

import (
	"net/http"

	"github.com/zatekoja/smartcare/backend/internal/api/handlers"
	"github.com/zatekoja/smartcare/backend/internal/api/middleware"
	"github.com/zatekoja/smartcare/backend/internal/infrastructure/observability"
)

// Handlers groups the API handlers the router mounts
type Handlers struct {
	Queue      *handlers.QueueHandler
	Crowd      *handlers.CrowdHandler
	Doctors    *handlers.DoctorHandler
	Allocation *handlers.AllocationHandler
	Emergency  *handlers.EmergencyHandler
	Activity   *handlers.ActivityHandler
	Admin      *handlers.AdminHandler
	Health     *handlers.HealthHandler
}

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux
	h   Handlers

	overrideLimiter *middleware.ActorRateLimiter
	cacheMiddleware *middleware.CacheMiddleware
	metrics         *observability.Metrics
	allowedOrigins  string
}

// NewRouter creates a new router. limiter, cache and metrics may be nil.
func NewRouter(
	h Handlers,
	overrideLimiter *middleware.ActorRateLimiter,
	cacheMiddleware *middleware.CacheMiddleware,
	metrics *observability.Metrics,
	allowedOrigins string,
) *Router {
	return &Router{
		mux:             http.NewServeMux(),
		h:               h,
		overrideLimiter: overrideLimiter,
		cacheMiddleware: cacheMiddleware,
		metrics:         metrics,
		allowedOrigins:  allowedOrigins,
	}
}

// SetupRoutes configures all routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", r.h.Health.Health)

	// Triage and queue
	r.mux.HandleFunc("POST /api/triage/assess", r.h.Queue.Assess)
	r.mux.HandleFunc("POST /api/queue/checkin", r.h.Queue.CheckIn)
	r.mux.HandleFunc("GET /api/queue", r.h.Queue.List)
	r.mux.HandleFunc("GET /api/queue/status", r.h.Queue.Status)
	r.mux.HandleFunc("GET /api/queue/entries/{id}/position", r.h.Queue.Position)
	r.mux.HandleFunc("DELETE /api/queue/entries/{id}", r.h.Queue.Remove)
	r.mux.HandleFunc("POST /api/queue/next", r.h.Queue.CallNext)
	r.mux.HandleFunc("GET /api/queue/current", r.h.Queue.Current)
	r.mux.HandleFunc("POST /api/queue/complete", r.h.Queue.Complete)
	r.mux.HandleFunc("POST /api/queue/recalculate", r.h.Queue.Recalculate)

	// Crowd management
	r.mux.HandleFunc("GET /api/crowd/status", r.h.Crowd.Status)
	r.mux.HandleFunc("GET /api/crowd/suggestions", r.h.Crowd.Suggestions)
	r.mux.HandleFunc("PUT /api/crowd/departments/{department}", r.h.Crowd.UpdateDepartment)
	r.mux.HandleFunc("GET /api/crowd/teleconsult", r.h.Crowd.Teleconsult)
	r.mux.HandleFunc("POST /api/crowd/teleconsult", r.h.Crowd.RedirectToTeleconsult)

	// Spare doctor pool
	r.mux.HandleFunc("GET /api/doctors/spare", r.h.Doctors.Pool)
	r.mux.HandleFunc("GET /api/doctors/spare/available", r.h.Doctors.Available)
	r.mux.HandleFunc("POST /api/doctors/spare/assign", r.h.Doctors.Assign)
	r.mux.HandleFunc("POST /api/doctors/spare/release", r.h.Doctors.Release)
	r.mux.HandleFunc("GET /api/doctors/spare/logs", r.h.Doctors.Logs)
	r.mux.HandleFunc("POST /api/doctors/spare/{id}/offline", r.h.Doctors.SetOffline)
	r.mux.HandleFunc("POST /api/doctors/spare/{id}/online", r.h.Doctors.SetOnline)

	// Allocation and wait-time protection
	r.mux.HandleFunc("GET /api/ai/insights", r.h.Allocation.Insights)
	r.mux.HandleFunc("GET /api/ai/departments/{department}", r.h.Allocation.Department)
	r.mux.HandleFunc("POST /api/ai/allocate", r.h.Allocation.AllocateAll)
	r.mux.HandleFunc("POST /api/ai/allocate/{department}", r.h.Allocation.AllocateDepartment)
	r.mux.HandleFunc("GET /api/ai/wait-impact/{department}", r.h.Allocation.WaitImpact)
	r.mux.HandleFunc("POST /api/ai/protect/{department}", r.h.Allocation.Protect)
	r.mux.HandleFunc("POST /api/ai/protect", r.h.Allocation.ProtectAll)

	// Emergency overrides; writes are rate limited per actor
	r.mux.Handle("POST /api/emergency/escalate", r.limited(r.h.Emergency.Escalate))
	r.mux.Handle("POST /api/emergency/boost", r.limited(r.h.Emergency.Boost))
	r.mux.HandleFunc("GET /api/emergency/logs", r.h.Emergency.Logs)
	r.mux.HandleFunc("GET /api/emergency/stats", r.h.Emergency.Stats)
	r.mux.HandleFunc("GET /api/emergency/verify", r.h.Emergency.Verify)

	// Activity timeline
	r.mux.HandleFunc("GET /api/activity", r.h.Activity.List)
	r.mux.HandleFunc("GET /api/activity/stats", r.h.Activity.Stats)

	// Demo data
	if r.h.Admin != nil {
		r.mux.HandleFunc("POST /api/admin/demo/seed", r.h.Admin.SeedDemo)
		r.mux.HandleFunc("POST /api/admin/demo/reset", r.h.Admin.ResetDemo)
	}

	// Apply middleware in reverse order (last middleware wraps first).
	// CORS is outermost so cached responses also get CORS headers.
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)

	if r.cacheMiddleware != nil {
		handler = r.cacheMiddleware.Middleware(handler)
	}

	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.ResponseOptimization(handler)
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}

func (r *Router) limited(fn http.HandlerFunc) http.Handler {
	if r.overrideLimiter == nil {
		return fn
	}
	return r.overrideLimiter.Middleware(fn)
}
