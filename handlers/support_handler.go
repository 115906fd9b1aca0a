package handlers

import (
	"context"
	"net/http"

	apperrors "github.com/breathesafe/breathe-backend/errors"
	"github.com/breathesafe/breathe-backend/types"
	"github.com/gin-gonic/gin"
)

// SupportProvider is the slice of the support service the handler needs.
type SupportProvider interface {
	GetEmergencyInfo(ctx context.Context, city, countryCode string) types.SupportRecord
}

type SupportHandler struct {
	support SupportProvider
}

func NewSupportHandler(support SupportProvider) *SupportHandler {
	return &SupportHandler{support: support}
}

// GetEmergencyInfo handles GET /api/support?city=&country=. Always answers
// with a usable record; unknown places get the international default.
func (h *SupportHandler) GetEmergencyInfo(c *gin.Context) {
	city := c.Query("city")
	if city == "" {
		_ = c.Error(apperrors.ValidationFailed("city is required", ""))
		return
	}

	record := h.support.GetEmergencyInfo(c.Request.Context(), city, c.Query("country"))
	c.JSON(http.StatusOK, record)
}
