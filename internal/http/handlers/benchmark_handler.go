// README: Admin benchmark endpoints (run, read, cancel, rate, cleanup, export).
package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"tripbench/internal/http/middleware"
	"tripbench/internal/modules/benchmark"
	"tripbench/internal/types"
)

type BenchmarkHandler struct {
	svc   *benchmark.Service
	async bool
}

// NewBenchmarkHandler builds the handler. async selects fire-and-forget execution for runs.
func NewBenchmarkHandler(svc *benchmark.Service, async bool) *BenchmarkHandler {
	return &BenchmarkHandler{svc: svc, async: async}
}

type runReq struct {
	SessionID   string             `json:"sessionId"`
	SessionName string             `json:"sessionName"`
	Flow        benchmark.Flow     `json:"flow"`
	Scenario    benchmark.Scenario `json:"scenario"`
	Targets     []benchmark.Target `json:"targets"`
	RunCount    int                `json:"runCount"`
	Concurrency int                `json:"concurrency"`
}

// Run handles POST /api/admin/benchmarks/run.
func (h *BenchmarkHandler) Run(c *gin.Context) {
	var req runReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "BAD_REQUEST", "invalid json")
		return
	}
	view, err := h.svc.RunBenchmark(c.Request.Context(), benchmark.RunCommand{
		SessionID:   types.ID(strings.TrimSpace(req.SessionID)),
		SessionName: req.SessionName,
		Flow:        req.Flow,
		Scenario:    req.Scenario,
		Targets:     req.Targets,
		RunCount:    req.RunCount,
		Concurrency: req.Concurrency,
		CreatedBy:   middleware.CallerUID(c),
		Async:       h.async,
	})
	if err != nil {
		writeBenchmarkError(c, err)
		return
	}
	status := http.StatusOK
	if view.Async {
		status = http.StatusAccepted
	}
	writeJSON(c, status, view)
}

// Get handles GET /api/admin/benchmarks. Without sessionId or shareToken it lists recent sessions.
func (h *BenchmarkHandler) Get(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Query("sessionId"))
	shareToken := strings.TrimSpace(c.Query("shareToken"))
	if sessionID != "" || shareToken != "" {
		view, err := h.svc.Get(c.Request.Context(), benchmark.GetQuery{
			SessionID:  types.ID(sessionID),
			ShareToken: shareToken,
		})
		if err != nil {
			writeBenchmarkError(c, err)
			return
		}
		writeJSON(c, http.StatusOK, view)
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(c, http.StatusBadRequest, "BAD_REQUEST", "limit must be a positive integer")
			return
		}
		limit = n
	}
	items, err := h.svc.ListRecent(c.Request.Context(), limit)
	if err != nil {
		writeBenchmarkError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"sessions": items})
}

type cancelReq struct {
	RunID     string `json:"runId"`
	SessionID string `json:"sessionId"`
}

// Cancel handles POST /api/admin/benchmarks/cancel.
func (h *BenchmarkHandler) Cancel(c *gin.Context) {
	var req cancelReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "BAD_REQUEST", "invalid json")
		return
	}
	view, err := h.svc.Cancel(c.Request.Context(), benchmark.CancelCommand{
		RunID:     types.ID(strings.TrimSpace(req.RunID)),
		SessionID: types.ID(strings.TrimSpace(req.SessionID)),
	})
	if err != nil {
		writeBenchmarkError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, view)
}

type rateReq struct {
	RunID string `json:"runId"`
	// Rating null clears the rating.
	Rating *benchmark.Rating `json:"rating"`
}

// Rate handles POST /api/admin/benchmarks/rate.
func (h *BenchmarkHandler) Rate(c *gin.Context) {
	var req rateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "BAD_REQUEST", "invalid json")
		return
	}
	run, err := h.svc.Rate(c.Request.Context(), benchmark.RateCommand{
		RunID:  types.ID(strings.TrimSpace(req.RunID)),
		Rating: req.Rating,
	})
	if err != nil {
		writeBenchmarkError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"run": run})
}

type cleanupReq struct {
	SessionID string                `json:"sessionId"`
	Mode      benchmark.CleanupMode `json:"mode"`
}

// Cleanup handles POST /api/admin/benchmarks/cleanup.
func (h *BenchmarkHandler) Cleanup(c *gin.Context) {
	var req cleanupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "BAD_REQUEST", "invalid json")
		return
	}
	res, err := h.svc.Cleanup(c.Request.Context(), benchmark.CleanupCommand{
		SessionID: types.ID(strings.TrimSpace(req.SessionID)),
		Mode:      req.Mode,
	})
	if err != nil {
		writeBenchmarkError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

// Export handles GET /api/admin/benchmarks/export?runId= or ?sessionId=&includeLogs=.
func (h *BenchmarkHandler) Export(c *gin.Context) {
	runID := strings.TrimSpace(c.Query("runId"))
	sessionID := strings.TrimSpace(c.Query("sessionId"))
	switch {
	case runID != "":
		data, err := h.svc.ExportRun(c.Request.Context(), types.ID(runID))
		if err != nil {
			writeBenchmarkError(c, err)
			return
		}
		attach(c, fmt.Sprintf("benchmark-run-%s.json", shortID(runID)), "application/json", data)
	case sessionID != "":
		includeLogs, _ := strconv.ParseBool(c.Query("includeLogs"))
		exp, err := h.svc.ExportSession(c.Request.Context(), types.ID(sessionID), includeLogs)
		if err != nil {
			writeBenchmarkError(c, err)
			return
		}
		attach(c, exp.Filename, "application/zip", exp.Data)
	default:
		writeError(c, http.StatusBadRequest, "BAD_REQUEST", "runId or sessionId is required")
	}
}

func attach(c *gin.Context, filename, contentType string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, data)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
