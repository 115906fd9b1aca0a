package router

import (
	"github.com/breathesafe/breathe-backend/config"
	"github.com/breathesafe/breathe-backend/handlers"
	"github.com/breathesafe/breathe-backend/middleware"
	"github.com/breathesafe/breathe-backend/services"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Dependencies struct holds all dependencies required for setting up routes.
type Dependencies struct {
	Config             *config.Config
	HealthHandler      *handlers.HealthHandler
	LocationHandler    *handlers.LocationHandler
	EnvironmentHandler *handlers.EnvironmentHandler
	NewsHandler        *handlers.NewsHandler
	SupportHandler     *handlers.SupportHandler
	AdvisoryHandler    *handlers.AdvisoryHandler
	AssistantHandler   *handlers.AssistantHandler
	RateLimiter        services.RateLimiterInterface
	Logger             *zap.SugaredLogger
}

// SetupRouter configures and returns the main Gin engine with all routes defined.
func SetupRouter(deps Dependencies) *gin.Engine {
	r := gin.Default()

	// Global middleware
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(&deps.Config.Server))

	// Health and metrics
	r.GET("/health", deps.HealthHandler.DetailedHealth)
	r.GET("/health/liveness", deps.HealthHandler.LivenessCheck)
	r.GET("/health/readiness", deps.HealthHandler.ReadinessCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		// Location resolution
		api.GET("/geocode", deps.LocationHandler.Geocode)
		api.POST("/location/device", deps.LocationHandler.DeviceLocation)
		api.GET("/location/ip", deps.LocationHandler.IPLocation)

		// Dashboard pipeline
		api.GET("/environment/:lat/:lon", deps.EnvironmentHandler.GetEnvironment)
		api.GET("/dashboard", deps.EnvironmentHandler.GetDashboard)
		api.GET("/dashboard/series/:kind", deps.EnvironmentHandler.GetSeries)

		// Standalone sections
		api.GET("/news/:city", deps.NewsHandler.GetCityNews)
		api.GET("/support", deps.SupportHandler.GetEmergencyInfo)
		api.POST("/advisory", deps.AdvisoryHandler.GetAdvisory)

		// Assistant tools, rate limited per client
		ai := api.Group("/ai")
		if deps.RateLimiter != nil {
			ai.Use(middleware.AssistantRateLimiter(deps.RateLimiter))
		}
		{
			ai.POST("/chat", deps.AssistantHandler.Chat)
			ai.POST("/commute", deps.AssistantHandler.Commute)
			ai.POST("/history", deps.AssistantHandler.History)
			ai.POST("/vision", deps.AssistantHandler.Vision)
		}
	}

	return r
}
