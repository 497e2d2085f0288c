package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/zatekoja/smartcare/backend/internal/application/services"
	"github.com/zatekoja/smartcare/backend/internal/triage"
	apperrors "github.com/zatekoja/smartcare/backend/pkg/errors"
)

// QueueHandler handles triage, check-in and consultation requests
type QueueHandler struct {
	queue *services.QueueService
}

// NewQueueHandler creates a new queue handler
func NewQueueHandler(queue *services.QueueService) *QueueHandler {
	return &QueueHandler{queue: queue}
}

// Assess handles POST /api/triage/assess
func (h *QueueHandler) Assess(w http.ResponseWriter, r *http.Request) {
	var in triage.Input
	if err := decodeJSON(r, &in); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, h.queue.Assess(in))
}

// CheckIn handles POST /api/queue/checkin
func (h *QueueHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req services.CheckInRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	req.IdempotencyKey = strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))

	res, err := h.queue.CheckIn(r.Context(), req)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	respondWithJSON(w, status, res)
}

// List handles GET /api/queue?department=X&limit=N
func (h *QueueHandler) List(w http.ResponseWriter, r *http.Request) {
	department := r.URL.Query().Get("department")
	patients, err := h.queue.List(department, queryInt(r, "limit", 0))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"department": department,
		"patients":   patients,
		"count":      len(patients),
	})
}

// Status handles GET /api/queue/status
func (h *QueueHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.queue.Status())
}

// Position handles GET /api/queue/entries/{id}/position
func (h *QueueHandler) Position(w http.ResponseWriter, r *http.Request) {
	entryID := r.PathValue("id")
	if entryID == "" {
		respondWithError(w, http.StatusBadRequest, "entry ID is required")
		return
	}

	pos, err := h.queue.Position(entryID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, pos)
}

// Remove handles DELETE /api/queue/entries/{id}. With ?teleconsult=true the
// patient moves to the teleconsultation queue instead of leaving.
func (h *QueueHandler) Remove(w http.ResponseWriter, r *http.Request) {
	entryID := r.PathValue("id")
	if entryID == "" {
		respondWithError(w, http.StatusBadRequest, "entry ID is required")
		return
	}

	if r.URL.Query().Get("teleconsult") == "true" {
		tc, err := h.queue.RedirectToTeleconsult(r.Context(), entryID)
		if err != nil {
			respondWithAppError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, map[string]interface{}{
			"redirected":  true,
			"teleconsult": tc,
		})
		return
	}

	entry, err := h.queue.Remove(r.Context(), entryID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"removed": true,
		"entry":   entry,
	})
}

type callNextRequest struct {
	Department string `json:"department"`
	DoctorID   int    `json:"doctor_id"`
}

// CallNext handles POST /api/queue/next
func (h *QueueHandler) CallNext(w http.ResponseWriter, r *http.Request) {
	var req callNextRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if req.Department == "" {
		respondWithAppError(w, r, apperrors.NewValidationError("department is required"))
		return
	}

	cur, err := h.queue.CallNext(r.Context(), req.Department, req.DoctorID)
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && appErr.Type == apperrors.ErrorTypeConflict {
			respondWithJSON(w, http.StatusConflict, map[string]interface{}{
				"error":           appErr.Message,
				"current_patient": cur,
			})
			return
		}
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, cur)
}

// Current handles GET /api/queue/current?department=X
func (h *QueueHandler) Current(w http.ResponseWriter, r *http.Request) {
	department := r.URL.Query().Get("department")
	if department == "" {
		respondWithError(w, http.StatusBadRequest, "department is required")
		return
	}

	cur, ok := h.queue.Current(department)
	if !ok {
		respondWithJSON(w, http.StatusOK, map[string]interface{}{
			"department":      department,
			"current_patient": nil,
		})
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"department":      department,
		"current_patient": cur,
	})
}

// Complete handles POST /api/queue/complete
func (h *QueueHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req callNextRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if req.Department == "" {
		respondWithAppError(w, r, apperrors.NewValidationError("department is required"))
		return
	}

	cur, err := h.queue.Complete(r.Context(), req.Department)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"completed": cur,
	})
}

// Recalculate handles POST /api/queue/recalculate
func (h *QueueHandler) Recalculate(w http.ResponseWriter, r *http.Request) {
	n := h.queue.Recalculate(r.Context())
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"updated": n,
	})
}
