package handlers

import (
	"net/http"
	"strconv"

	apperrors "github.com/breathesafe/breathe-backend/errors"
	"github.com/breathesafe/breathe-backend/internal/dashboard"
	"github.com/breathesafe/breathe-backend/logger"
	"github.com/breathesafe/breathe-backend/types"
	"github.com/gin-gonic/gin"
)

// LocationHandler exposes the location resolution paths: place search,
// device position reporting, and IP fallback.
type LocationHandler struct {
	resolver *dashboard.Resolver
}

func NewLocationHandler(resolver *dashboard.Resolver) *LocationHandler {
	return &LocationHandler{resolver: resolver}
}

// Geocode handles GET /api/geocode?city=&country=. One match resolves
// immediately; several come back as a candidate list for the user to pick
// from; none is a 404.
func (h *LocationHandler) Geocode(c *gin.Context) {
	query := types.PlaceQuery{
		City:        c.Query("city"),
		CountryCode: c.Query("country"),
	}

	result, err := h.resolver.FromSearch(c.Request.Context(), query)
	if err != nil {
		_ = c.Error(err)
		return
	}

	if result.Location != nil {
		c.JSON(http.StatusOK, gin.H{"location": result.Location})
		return
	}
	c.JSON(http.StatusOK, gin.H{"candidates": result.Candidates})
}

// deviceReport is what the client sends after attempting device
// geolocation: either a position or a classified failure.
type deviceReport struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	ErrorCode int      `json:"error_code"` // 1 denied, 2 unavailable, 3 timeout
}

// DeviceLocation handles POST /api/location/device. A reported position
// resolves directly; a reported failure goes through the fallback policy
// (permission denial terminal, anything else tries IP once).
func (h *LocationHandler) DeviceLocation(c *gin.Context) {
	var report deviceReport
	if err := c.ShouldBindJSON(&report); err != nil {
		_ = c.Error(apperrors.ValidationFailed("invalid device report", err.Error()))
		return
	}

	if report.Latitude != nil && report.Longitude != nil {
		c.JSON(http.StatusOK, gin.H{"location": &types.ResolvedLocation{
			Coordinate: types.Coordinate{Latitude: *report.Latitude, Longitude: *report.Longitude},
			Source:     types.SourceDevice,
		}})
		return
	}

	geoErr := &types.GeoError{Reason: classifyGeoCode(report.ErrorCode)}
	loc, err := h.resolver.ResolveDeviceFailure(c.Request.Context(), geoErr)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"location": loc})
}

// IPLocation handles GET /api/location/ip.
func (h *LocationHandler) IPLocation(c *gin.Context) {
	loc, err := h.resolver.FromIP(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"location": loc})
}

// classifyGeoCode maps the W3C geolocation error codes onto our reasons.
func classifyGeoCode(code int) types.GeoErrorReason {
	switch code {
	case 1:
		return types.GeoPermissionDenied
	case 2:
		return types.GeoPositionUnavailable
	case 3:
		return types.GeoTimeout
	default:
		return types.GeoUnknown
	}
}

// parseCoordinate reads a float path parameter, rejecting values outside
// the valid range.
func parseCoordinate(c *gin.Context, name string, min, max float64) (float64, bool) {
	raw := c.Param(name)
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value < min || value > max {
		logger.GetLogger().Debugw("Rejected coordinate parameter", "param", name, "value", raw)
		_ = c.Error(apperrors.ValidationFailed("invalid coordinate", name+"="+raw))
		return 0, false
	}
	return value, true
}
