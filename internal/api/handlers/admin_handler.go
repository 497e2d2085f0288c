package handlers

import (
	"net/http"

	"github.com/zatekoja/smartcare/backend/internal/application/services"
)

// AdminHandler handles demo data management
type AdminHandler struct {
	demo *services.DemoService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(demo *services.DemoService) *AdminHandler {
	return &AdminHandler{demo: demo}
}

// SeedDemo handles POST /api/admin/demo/seed
func (h *AdminHandler) SeedDemo(w http.ResponseWriter, r *http.Request) {
	res, err := h.demo.Seed(r.Context())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, res)
}

// ResetDemo handles POST /api/admin/demo/reset
func (h *AdminHandler) ResetDemo(w http.ResponseWriter, r *http.Request) {
	cleared := h.demo.Reset(r.Context())
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"reset":           true,
		"entries_cleared": cleared,
	})
}
