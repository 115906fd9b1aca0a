package middleware

import (
	"fmt"
	"net/http"

	"github.com/breathesafe/breathe-backend/logger"
	"github.com/breathesafe/breathe-backend/services"
	"github.com/gin-gonic/gin"
)

// AssistantRateLimiter throttles the metered assistant endpoints per
// client IP. Over-limit requests get 429 with a Retry-After hint. A Redis
// failure lets the request through; throttling is protection, not a
// gatekeeper worth an outage.
func AssistantRateLimiter(limiter services.RateLimiterInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, retryAfter, err := limiter.AllowAssistant(c.Request.Context(), c.ClientIP())
		if err != nil {
			logger.GetLogger().Warnw("Rate limiter unavailable, allowing request",
				"error", err, "client_ip", c.ClientIP())
			c.Next()
			return
		}

		if !allowed {
			c.Header("Retry-After", fmt.Sprintf("%.0f", retryAfter.Seconds()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Type:    "RATE_LIMITED",
				Message: "Too many assistant requests",
				Code:    "429",
			})
			return
		}

		c.Next()
	}
}
