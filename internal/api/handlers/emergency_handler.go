package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/zatekoja/smartcare/backend/internal/application/services"
	"github.com/zatekoja/smartcare/backend/internal/domain/entities"
	"github.com/zatekoja/smartcare/backend/internal/domain/repositories"
	apperrors "github.com/zatekoja/smartcare/backend/pkg/errors"
)

// EmergencyHandler handles staff overrides of queue priority
type EmergencyHandler struct {
	overrides *services.EmergencyOverrideService
	archive   repositories.AuditArchive
}

// NewEmergencyHandler creates a new emergency override handler. archive may
// be nil, in which case only the in-memory log is served.
func NewEmergencyHandler(overrides *services.EmergencyOverrideService, archive repositories.AuditArchive) *EmergencyHandler {
	return &EmergencyHandler{overrides: overrides, archive: archive}
}

type overrideRequest struct {
	EntryID string `json:"entry_id"`
	Reason  string `json:"reason"`
	Notes   string `json:"notes"`
	Amount  int    `json:"boost_amount"`
}

// decode rejects only bodies that cannot be parsed. Every parsed request goes
// to the override service, which records the attempt even when it is invalid.
func (h *EmergencyHandler) decode(w http.ResponseWriter, r *http.Request) (entities.OverrideRequest, bool) {
	var body overrideRequest
	if err := decodeJSON(r, &body); err != nil {
		respondWithAppError(w, r, err)
		return entities.OverrideRequest{}, false
	}
	return entities.OverrideRequest{
		EntryID: body.EntryID,
		Actor:   actorFromRequest(r),
		Reason:  entities.OverrideReason(body.Reason),
		Notes:   body.Notes,
		Amount:  body.Amount,
	}, true
}

// Escalate handles POST /api/emergency/escalate
func (h *EmergencyHandler) Escalate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	res, err := h.overrides.Escalate(r.Context(), req)
	h.respond(w, r, res, err)
}

// Boost handles POST /api/emergency/boost
func (h *EmergencyHandler) Boost(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	res, err := h.overrides.Boost(r.Context(), req)
	h.respond(w, r, res, err)
}

// respond returns rejected attempts with their audit record so the caller
// can cite the log id
func (h *EmergencyHandler) respond(w http.ResponseWriter, r *http.Request, res entities.OverrideResult, err error) {
	if err == nil {
		respondWithJSON(w, http.StatusOK, res)
		return
	}
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || statusFor(appErr.Type) >= http.StatusInternalServerError {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, statusFor(appErr.Type), map[string]interface{}{
		"error":  appErr.Message,
		"code":   string(appErr.Type),
		"result": res,
	})
}

// Logs handles GET /api/emergency/logs?patient_id=&actor_id=&type=&limit=.
// With ?since=RFC3339 the archive is queried instead of the in-memory log.
func (h *EmergencyHandler) Logs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := queryInt(r, "limit", 50)

	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "since must be an RFC3339 timestamp")
			return
		}
		if h.archive == nil {
			respondWithError(w, http.StatusNotImplemented, "override archive is not configured")
			return
		}
		logs, err := h.archive.ListOverrides(r.Context(), since, limit)
		if err != nil {
			respondWithAppError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, map[string]interface{}{
			"logs":   logs,
			"count":  len(logs),
			"source": "archive",
		})
		return
	}

	logs := h.overrides.Logs(entities.OverrideLogFilter{
		PatientID: q.Get("patient_id"),
		ActorID:   q.Get("actor_id"),
		Type:      entities.OverrideType(q.Get("type")),
		Limit:     limit,
	})
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"logs":   logs,
		"count":  len(logs),
		"source": "memory",
	})
}

// Stats handles GET /api/emergency/stats
func (h *EmergencyHandler) Stats(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.overrides.Stats())
}

// Verify handles GET /api/emergency/verify
func (h *EmergencyHandler) Verify(w http.ResponseWriter, r *http.Request) {
	v := h.overrides.VerifyChain()
	status := http.StatusOK
	if !v.Valid {
		status = http.StatusConflict
	}
	respondWithJSON(w, status, v)
}
