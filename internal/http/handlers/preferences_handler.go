package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tripbench/internal/http/middleware"
	"tripbench/internal/modules/preferences"
)

type PreferencesHandler struct {
	svc *preferences.Service
}

func NewPreferencesHandler(svc *preferences.Service) *PreferencesHandler {
	return &PreferencesHandler{svc: svc}
}

// Get handles GET /api/admin/benchmarks/preferences.
func (h *PreferencesHandler) Get(c *gin.Context) {
	p, err := h.svc.Get(c.Request.Context(), middleware.CallerUID(c))
	if err != nil {
		writePreferencesError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}

// Save handles POST /api/admin/benchmarks/preferences.
func (h *PreferencesHandler) Save(c *gin.Context) {
	var req preferences.Preferences
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "BAD_REQUEST", "invalid json")
		return
	}
	p, err := h.svc.Save(c.Request.Context(), middleware.CallerUID(c), req)
	if err != nil {
		writePreferencesError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}
