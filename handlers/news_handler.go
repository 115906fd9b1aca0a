package handlers

import (
	"context"
	"net/http"

	apperrors "github.com/breathesafe/breathe-backend/errors"
	"github.com/breathesafe/breathe-backend/types"
	"github.com/gin-gonic/gin"
)

// NewsFetcher is the slice of the news service the handler needs.
type NewsFetcher interface {
	GetCityNews(ctx context.Context, city string) ([]types.NewsItem, error)
}

type NewsHandler struct {
	news NewsFetcher
}

func NewNewsHandler(news NewsFetcher) *NewsHandler {
	return &NewsHandler{news: news}
}

// GetCityNews handles GET /api/news/:city for the dedicated news page.
func (h *NewsHandler) GetCityNews(c *gin.Context) {
	city := c.Param("city")
	if city == "" {
		_ = c.Error(apperrors.ValidationFailed("city is required", ""))
		return
	}

	items, err := h.news.GetCityNews(c.Request.Context(), city)
	if err != nil {
		_ = c.Error(apperrors.Wrap(err, apperrors.UpstreamError, "news feed unavailable"))
		return
	}
	c.JSON(http.StatusOK, items)
}
