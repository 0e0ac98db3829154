// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"tripbench/internal/modules/benchmark"
	"tripbench/internal/modules/preferences"
	"tripbench/internal/modules/telemetry"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, code, msg string) {
	writeJSON(c, status, errorResponse{Error: msg, Code: code})
}

func writeBenchmarkError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, benchmark.ErrBadRequest):
		writeError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
	case errors.Is(err, benchmark.ErrNotFound):
		writeError(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, benchmark.ErrInvalidState), errors.Is(err, benchmark.ErrConflict):
		writeError(c, http.StatusConflict, "CONFLICT", err.Error())
	case errors.Is(err, benchmark.ErrStore):
		slog.Error("benchmark store failed", "path", c.FullPath(), "error", err)
		writeError(c, http.StatusBadGateway, "STORE_ERROR", "benchmark store unavailable")
	default:
		writeInternal(c, err)
	}
}

func writePreferencesError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, preferences.ErrBadRequest):
		writeError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
	default:
		slog.Error("preferences store failed", "path", c.FullPath(), "error", err)
		writeError(c, http.StatusBadGateway, "STORE_ERROR", "preferences store unavailable")
	}
}

func writeTelemetryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, telemetry.ErrBadRequest):
		writeError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
	default:
		slog.Error("telemetry store failed", "path", c.FullPath(), "error", err)
		writeError(c, http.StatusBadGateway, "STORE_ERROR", "telemetry store unavailable")
	}
}

func writeInternal(c *gin.Context, err error) {
	slog.Error("request failed", "path", c.FullPath(), "error", err)
	writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
}
