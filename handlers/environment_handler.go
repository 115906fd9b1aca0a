package handlers

import (
	"net/http"

	"github.com/breathesafe/breathe-backend/internal/dashboard"
	"github.com/breathesafe/breathe-backend/types"
	"github.com/gin-gonic/gin"
)

// EnvironmentHandler serves the aggregate dashboard payload: it installs a
// new location query on the session, waits for the fan-out to settle, and
// returns the rendered view.
type EnvironmentHandler struct {
	session *dashboard.Session
}

func NewEnvironmentHandler(session *dashboard.Session) *EnvironmentHandler {
	return &EnvironmentHandler{session: session}
}

// GetEnvironment handles GET /api/environment/:lat/:lon?city=. The city
// query parameter carries the user's geocode pick so the display name
// matches what they chose.
func (h *EnvironmentHandler) GetEnvironment(c *gin.Context) {
	lat, ok := parseCoordinate(c, "lat", -90, 90)
	if !ok {
		return
	}
	lon, ok := parseCoordinate(c, "lon", -180, 180)
	if !ok {
		return
	}

	loc := types.ResolvedLocation{
		Coordinate: types.Coordinate{Latitude: lat, Longitude: lon},
		City:       c.Query("city"),
		Source:     types.LocationSource(c.DefaultQuery("source", string(types.SourceSearch))),
	}

	token := h.session.Query(loc)

	view, err := h.session.WaitSettled(c.Request.Context(), token)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetDashboard handles GET /api/dashboard: the current view without
// waiting, pending sections included. Clients poll this while a query is
// in flight.
func (h *EnvironmentHandler) GetDashboard(c *gin.Context) {
	c.JSON(http.StatusOK, h.session.Render())
}

// GetSeries handles GET /api/dashboard/series/:kind (forecast or
// history). The series view switch derives from data the session already
// holds, so it is synchronous and never hits an upstream.
func (h *EnvironmentHandler) GetSeries(c *gin.Context) {
	series, analysis, err := h.session.AnalyzeCurrentSeries(c.Param("kind"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"series": series, "analysis": analysis})
}
