package main

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/breathesafe/breathe-backend/config"
	"github.com/breathesafe/breathe-backend/handlers"
	"github.com/breathesafe/breathe-backend/internal/dashboard"
	"github.com/breathesafe/breathe-backend/logger"
	"github.com/breathesafe/breathe-backend/pkg/ai"
	"github.com/breathesafe/breathe-backend/router"
	"github.com/breathesafe/breathe-backend/services"
	"github.com/redis/go-redis/v9"
)

// redisOptions translates the redis config section into client options.
func redisOptions(cfg *config.RedisConfig) *redis.Options {
	options := &redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	}
	if cfg.UseTLS {
		host := cfg.Address
		if h, _, err := net.SplitHostPort(cfg.Address); err == nil {
			host = h
		}
		options.TLSConfig = &tls.Config{
			ServerName: host,
			MinVersion: tls.VersionTLS12,
		}
	}
	return options
}

func main() {
	logger.InitLogger()
	log := logger.GetLogger()
	defer logger.Close()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Redis backs the environment cache and the assistant rate limiter.
	redisClient := redis.NewClient(redisOptions(&cfg.Redis))
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Warnw("Failed to close Redis client", "error", err)
		}
	}()

	// External collaborators
	assistantClient := ai.NewClient(
		cfg.ExternalServices.AdvisoryAPIKey,
		cfg.ExternalServices.AdvisoryAPIURL,
		cfg.ExternalServices.AdvisoryModel,
	)
	geocodeService := services.NewGeocodeService(cfg)
	ipService := services.NewIPLocationService(cfg)
	environmentService := services.NewEnvironmentService(cfg, redisClient)
	newsService := services.NewNewsService(cfg)
	supportService := services.NewSupportService(assistantClient)
	advisoryService := services.NewAdvisoryService(assistantClient)
	assistantService := services.NewAssistantService(assistantClient)
	rateLimitService := services.NewRateLimitService(redisClient, cfg.RateLimit)
	healthService := services.NewHealthService(redisClient, cfg.Server.Version)

	// Orchestration core: one shared session per deployment. The service
	// runs behind a single dashboard user model (the original is a
	// single-user page); multi-tenant session management is a deployment
	// concern layered above this binary.
	resolver := dashboard.NewResolver(geocodeService, ipService, nil, cfg.Pipeline)
	session := dashboard.NewSession(environmentService, newsService, advisoryService, supportService, cfg.Pipeline)

	deps := router.Dependencies{
		Config:             cfg,
		HealthHandler:      handlers.NewHealthHandler(healthService),
		LocationHandler:    handlers.NewLocationHandler(resolver),
		EnvironmentHandler: handlers.NewEnvironmentHandler(session),
		NewsHandler:        handlers.NewNewsHandler(newsService),
		SupportHandler:     handlers.NewSupportHandler(supportService),
		AdvisoryHandler:    handlers.NewAdvisoryHandler(advisoryService),
		AssistantHandler:   handlers.NewAssistantHandler(assistantService, session),
		RateLimiter:        rateLimitService,
		Logger:             log,
	}
	r := router.SetupRouter(deps)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infow("Starting server", "port", cfg.Server.Port, "environment", cfg.Server.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("Forced shutdown", "error", err)
	}
}
