package handlers

import (
	"net/http"

	"github.com/zatekoja/smartcare/backend/internal/application/services"
	"github.com/zatekoja/smartcare/backend/internal/domain/entities"
)

// ActivityHandler serves the activity timeline
type ActivityHandler struct {
	activity *services.ActivityLogger
}

// NewActivityHandler creates a new activity handler
func NewActivityHandler(activity *services.ActivityLogger) *ActivityHandler {
	return &ActivityHandler{activity: activity}
}

// List handles GET /api/activity?type=&department=&limit=
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entries := h.activity.Logs(entities.ActivityFilter{
		Type:       entities.ActivityType(q.Get("type")),
		Department: q.Get("department"),
		Limit:      queryInt(r, "limit", 50),
	})
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"activities": entries,
		"count":      len(entries),
	})
}

// Stats handles GET /api/activity/stats
func (h *ActivityHandler) Stats(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.activity.Stats())
}
