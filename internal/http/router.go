// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tripbench/internal/http/handlers"
	"tripbench/internal/http/middleware"
	"tripbench/internal/infra"
	"tripbench/internal/modules/benchmark"
	"tripbench/internal/modules/preferences"
	"tripbench/internal/modules/telemetry"
)

type RouterDeps struct {
	Verifier    infra.TokenVerifier
	Benchmark   *benchmark.Service
	Preferences *preferences.Service
	Telemetry   *telemetry.Service
	// Async runs benchmarks on a detached context and answers 202.
	Async bool
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.Logging())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	admin := r.Group("/api/admin", middleware.Auth(deps.Verifier), middleware.RequireAdmin())

	bench := handlers.NewBenchmarkHandler(deps.Benchmark, deps.Async)
	admin.POST("/benchmarks/run", bench.Run)
	admin.GET("/benchmarks", bench.Get)
	admin.POST("/benchmarks/cancel", bench.Cancel)
	admin.POST("/benchmarks/rate", bench.Rate)
	admin.POST("/benchmarks/cleanup", bench.Cleanup)
	admin.GET("/benchmarks/export", bench.Export)

	prefs := handlers.NewPreferencesHandler(deps.Preferences)
	admin.GET("/benchmarks/preferences", prefs.Get)
	admin.POST("/benchmarks/preferences", prefs.Save)

	tel := handlers.NewTelemetryHandler(deps.Telemetry)
	admin.GET("/ai-telemetry", tel.Overview)
	admin.POST("/ai-telemetry/events", tel.Ingest)

	admin.POST("/itineraries/validate", handlers.NewItineraryHandler().Validate)

	return r
}
