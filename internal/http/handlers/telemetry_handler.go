package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tripbench/internal/modules/telemetry"
)

type TelemetryHandler struct {
	svc *telemetry.Service
}

func NewTelemetryHandler(svc *telemetry.Service) *TelemetryHandler {
	return &TelemetryHandler{svc: svc}
}

// Overview handles GET /api/admin/ai-telemetry?source=&provider=&windowHours=.
func (h *TelemetryHandler) Overview(c *gin.Context) {
	var q telemetry.Query
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, http.StatusBadRequest, "BAD_REQUEST", "invalid query")
		return
	}
	ov, err := h.svc.Overview(c.Request.Context(), q)
	if err != nil {
		writeTelemetryError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, ov)
}

// Ingest handles POST /api/admin/ai-telemetry/events.
func (h *TelemetryHandler) Ingest(c *gin.Context) {
	var e telemetry.Event
	if err := c.ShouldBindJSON(&e); err != nil {
		writeError(c, http.StatusBadRequest, "BAD_REQUEST", "invalid json")
		return
	}
	stored, err := h.svc.Ingest(c.Request.Context(), e)
	if err != nil {
		writeTelemetryError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, stored)
}
