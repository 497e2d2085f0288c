package handlers

import (
	"net/http"
	"strconv"

	"github.com/zatekoja/smartcare/backend/internal/application/services"
	apperrors "github.com/zatekoja/smartcare/backend/pkg/errors"
)

// DoctorHandler handles spare doctor pool requests
type DoctorHandler struct {
	pool   *services.SpareDoctorPool
	roster *services.DepartmentRoster
}

// NewDoctorHandler creates a new spare doctor handler
func NewDoctorHandler(pool *services.SpareDoctorPool, roster *services.DepartmentRoster) *DoctorHandler {
	return &DoctorHandler{pool: pool, roster: roster}
}

// Pool handles GET /api/doctors/spare
func (h *DoctorHandler) Pool(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.pool.Status())
}

// Available handles GET /api/doctors/spare/available[?specialty=X]
func (h *DoctorHandler) Available(w http.ResponseWriter, r *http.Request) {
	doctors := h.pool.Available(r.URL.Query().Get("specialty"))
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"doctors": doctors,
		"count":   len(doctors),
	})
}

type assignRequest struct {
	DoctorID   int    `json:"doctor_id"`
	Department string `json:"department"`
	Reason     string `json:"reason"`
}

// Assign handles POST /api/doctors/spare/assign
func (h *DoctorHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if req.DoctorID == 0 || req.Department == "" {
		respondWithAppError(w, r, apperrors.NewValidationError("doctor_id and department are required"))
		return
	}
	dept, ok := h.roster.Lookup(req.Department)
	if !ok {
		respondWithAppError(w, r, apperrors.NewNotFoundError("unknown department: "+req.Department))
		return
	}
	if req.Reason == "" {
		req.Reason = "Manual assignment"
	}

	doc, err := h.pool.Assign(req.DoctorID, dept.Name, req.Reason, actorLabel(actorFromRequest(r)))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, doc)
}

type releaseRequest struct {
	DoctorID int    `json:"doctor_id"`
	Reason   string `json:"reason"`
}

// Release handles POST /api/doctors/spare/release
func (h *DoctorHandler) Release(w http.ResponseWriter, r *http.Request) {
	var req releaseRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if req.DoctorID == 0 {
		respondWithAppError(w, r, apperrors.NewValidationError("doctor_id is required"))
		return
	}
	if req.Reason == "" {
		req.Reason = "Manual release"
	}

	doc, err := h.pool.Release(req.DoctorID, req.Reason, actorLabel(actorFromRequest(r)))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, doc)
}

// Logs handles GET /api/doctors/spare/logs?department=X&limit=N
func (h *DoctorHandler) Logs(w http.ResponseWriter, r *http.Request) {
	logs := h.pool.Logs(r.URL.Query().Get("department"), queryInt(r, "limit", 50))
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"logs":  logs,
		"count": len(logs),
	})
}

// SetOffline handles POST /api/doctors/spare/{id}/offline
func (h *DoctorHandler) SetOffline(w http.ResponseWriter, r *http.Request) {
	id, ok := doctorIDFromPath(w, r)
	if !ok {
		return
	}
	doc, err := h.pool.SetOffline(id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, doc)
}

// SetOnline handles POST /api/doctors/spare/{id}/online
func (h *DoctorHandler) SetOnline(w http.ResponseWriter, r *http.Request) {
	id, ok := doctorIDFromPath(w, r)
	if !ok {
		return
	}
	doc, err := h.pool.SetOnline(id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, doc)
}

func doctorIDFromPath(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		respondWithError(w, http.StatusBadRequest, "invalid doctor ID")
		return 0, false
	}
	return id, true
}
