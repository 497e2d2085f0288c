package handlers

import (
	"net/http"

	"github.com/zatekoja/smartcare/backend/internal/application/services"
	apperrors "github.com/zatekoja/smartcare/backend/pkg/errors"
)

// AllocationHandler exposes the spare doctor allocator and wait-time protector
type AllocationHandler struct {
	allocator *services.DoctorAllocator
	protector *services.WaitTimeProtector
	roster    *services.DepartmentRoster
}

// NewAllocationHandler creates a new allocation handler
func NewAllocationHandler(
	allocator *services.DoctorAllocator,
	protector *services.WaitTimeProtector,
	roster *services.DepartmentRoster,
) *AllocationHandler {
	return &AllocationHandler{allocator: allocator, protector: protector, roster: roster}
}

// Insights handles GET /api/ai/insights
func (h *AllocationHandler) Insights(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.allocator.Insights())
}

// Department handles GET /api/ai/departments/{department}. The decision is
// computed but not executed.
func (h *AllocationHandler) Department(w http.ResponseWriter, r *http.Request) {
	dept, ok := h.department(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, h.allocator.Decide(dept))
}

// AllocateAll handles POST /api/ai/allocate
func (h *AllocationHandler) AllocateAll(w http.ResponseWriter, r *http.Request) {
	decisions := h.allocator.AutoAllocateAll(r.Context())
	executed := 0
	for _, d := range decisions {
		if d.Executed {
			executed++
		}
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"decisions": decisions,
		"executed":  executed,
	})
}

// AllocateDepartment handles POST /api/ai/allocate/{department}
func (h *AllocationHandler) AllocateDepartment(w http.ResponseWriter, r *http.Request) {
	dept, ok := h.department(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, h.allocator.AutoAllocateDepartment(r.Context(), dept))
}

// WaitImpact handles GET /api/ai/wait-impact/{department}
func (h *AllocationHandler) WaitImpact(w http.ResponseWriter, r *http.Request) {
	dept, ok := h.department(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, h.protector.Impact(dept))
}

// Protect handles POST /api/ai/protect/{department}
func (h *AllocationHandler) Protect(w http.ResponseWriter, r *http.Request) {
	dept, ok := h.department(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, h.protector.Protect(r.Context(), dept))
}

// ProtectAll handles POST /api/ai/protect
func (h *AllocationHandler) ProtectAll(w http.ResponseWriter, r *http.Request) {
	results := h.protector.ProtectAll(r.Context())
	assigned := 0
	for _, res := range results {
		assigned += res.Assigned
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"results":  results,
		"assigned": assigned,
	})
}

func (h *AllocationHandler) department(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := r.PathValue("department")
	dept, ok := h.roster.Lookup(name)
	if !ok {
		respondWithAppError(w, r, apperrors.NewNotFoundError("unknown department: "+name))
		return "", false
	}
	return dept.Name, true
}
