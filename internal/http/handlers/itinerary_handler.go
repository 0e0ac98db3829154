// README: Dry-run validation of a pasted itinerary against the benchmark validator.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tripbench/internal/itinerary"
	"tripbench/internal/modules/trip"
)

type ItineraryHandler struct {
	now func() time.Time
}

func NewItineraryHandler() *ItineraryHandler {
	return &ItineraryHandler{now: time.Now}
}

type validateReq struct {
	Itinerary map[string]any `json:"itinerary"`
	StartDate string         `json:"startDate"`
	RoundTrip bool           `json:"roundTrip"`
}

type validateResp struct {
	Report *itinerary.Report `json:"report"`
	Trip   *trip.Trip        `json:"trip,omitempty"`
}

// Validate handles POST /api/admin/itineraries/validate.
func (h *ItineraryHandler) Validate(c *gin.Context) {
	var req validateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "BAD_REQUEST", "invalid json")
		return
	}
	if req.Itinerary == nil {
		writeError(c, http.StatusBadRequest, "BAD_REQUEST", "missing itinerary")
		return
	}
	report, it := itinerary.Validate(req.Itinerary)
	resp := validateResp{Report: report}
	if report.SchemaValid && it != nil {
		resp.Trip = trip.Build(it, req.StartDate, trip.BuildOptions{RoundTrip: req.RoundTrip, Now: h.now()})
	}
	writeJSON(c, http.StatusOK, resp)
}
