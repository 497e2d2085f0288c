package handlers

import (
	"net/http"

	"github.com/zatekoja/smartcare/backend/internal/application/services"
	apperrors "github.com/zatekoja/smartcare/backend/pkg/errors"
)

// CrowdHandler handles congestion, load balancing and teleconsult requests
type CrowdHandler struct {
	crowd *services.CrowdService
	queue *services.QueueService
}

// NewCrowdHandler creates a new crowd handler
func NewCrowdHandler(crowd *services.CrowdService, queue *services.QueueService) *CrowdHandler {
	return &CrowdHandler{crowd: crowd, queue: queue}
}

// Status handles GET /api/crowd/status[?department=X]
func (h *CrowdHandler) Status(w http.ResponseWriter, r *http.Request) {
	if department := r.URL.Query().Get("department"); department != "" {
		st, err := h.crowd.DepartmentStatus(department)
		if err != nil {
			respondWithAppError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, st)
		return
	}
	respondWithJSON(w, http.StatusOK, h.crowd.Overview())
}

// Suggestions handles GET /api/crowd/suggestions
func (h *CrowdHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	suggestions := h.crowd.Suggestions()
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"suggestions": suggestions,
		"count":       len(suggestions),
	})
}

type staffingRequest struct {
	ActiveDoctors *int `json:"active_doctors"`
}

// UpdateDepartment handles PUT /api/crowd/departments/{department}
func (h *CrowdHandler) UpdateDepartment(w http.ResponseWriter, r *http.Request) {
	var req staffingRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if req.ActiveDoctors == nil {
		respondWithAppError(w, r, apperrors.NewValidationError("active_doctors is required"))
		return
	}

	st, err := h.crowd.SetActiveDoctors(r.PathValue("department"), *req.ActiveDoctors)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, st)
}

// Teleconsult handles GET /api/crowd/teleconsult
func (h *CrowdHandler) Teleconsult(w http.ResponseWriter, r *http.Request) {
	q := h.crowd.TeleconsultQueue()
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"queue": q,
		"count": len(q),
	})
}

type redirectRequest struct {
	EntryID string `json:"entry_id"`
}

// RedirectToTeleconsult handles POST /api/crowd/teleconsult
func (h *CrowdHandler) RedirectToTeleconsult(w http.ResponseWriter, r *http.Request) {
	var req redirectRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if req.EntryID == "" {
		respondWithAppError(w, r, apperrors.NewValidationError("entry_id is required"))
		return
	}

	tc, err := h.queue.RedirectToTeleconsult(r.Context(), req.EntryID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, tc)
}
