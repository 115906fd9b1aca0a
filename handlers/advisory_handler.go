package handlers

import (
	"context"
	"net/http"

	apperrors "github.com/breathesafe/breathe-backend/errors"
	"github.com/breathesafe/breathe-backend/types"
	"github.com/gin-gonic/gin"
)

// AdvisoryProvider is the slice of the advisory service the handler needs.
type AdvisoryProvider interface {
	GetAdvisory(ctx context.Context, env types.EnvironmentRecord) *types.AdvisoryRecord
}

type AdvisoryHandler struct {
	advisory AdvisoryProvider
}

func NewAdvisoryHandler(advisory AdvisoryProvider) *AdvisoryHandler {
	return &AdvisoryHandler{advisory: advisory}
}

// GetAdvisory handles POST /api/advisory with an environment record in the
// body: health guidance for arbitrary environment data, independent of the
// session.
func (h *AdvisoryHandler) GetAdvisory(c *gin.Context) {
	var env types.EnvironmentRecord
	if err := c.ShouldBindJSON(&env); err != nil {
		_ = c.Error(apperrors.ValidationFailed("invalid environment payload", err.Error()))
		return
	}

	c.JSON(http.StatusOK, h.advisory.GetAdvisory(c.Request.Context(), env))
}
