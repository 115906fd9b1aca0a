// Package config handles loading and validation of application configuration
// from environment variables.
package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/breathesafe/breathe-backend/logger"
	"github.com/spf13/viper"
)

// Environment represents the application's running environment (development or production).
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
)

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Environment    Environment `mapstructure:"ENVIRONMENT" yaml:"environment"`
	Port           string      `mapstructure:"PORT" yaml:"port"`
	AllowedOrigins []string    `mapstructure:"ALLOWED_ORIGINS" yaml:"allowed_origins"`
	Version        string      `mapstructure:"VERSION" yaml:"version"`
}

// RedisConfig holds Redis connection details. Redis backs the environment
// record cache and the rate limiter.
type RedisConfig struct {
	Address      string `mapstructure:"ADDRESS" yaml:"address"`
	Password     string `mapstructure:"PASSWORD" yaml:"password"`
	DB           int    `mapstructure:"DB" yaml:"db"`
	UseTLS       bool   `mapstructure:"USE_TLS" yaml:"use_tls"`
	PoolSize     int    `mapstructure:"POOL_SIZE" yaml:"pool_size"`
	MinIdleConns int    `mapstructure:"MIN_IDLE_CONNS" yaml:"min_idle_conns"`
}

// ExternalServices holds API keys and URLs for upstream collaborators.
type ExternalServices struct {
	OpenWeatherKey  string `mapstructure:"OPENWEATHER_KEY"`
	WAQIToken       string `mapstructure:"WAQI_TOKEN"`
	AdvisoryAPIURL  string `mapstructure:"ADVISORY_API_URL"`
	AdvisoryAPIKey  string `mapstructure:"ADVISORY_API_KEY"`
	AdvisoryModel   string `mapstructure:"ADVISORY_MODEL"`
	IPLookupURL     string `mapstructure:"IP_LOOKUP_URL"`
	NewsFeedBaseURL string `mapstructure:"NEWS_FEED_BASE_URL"`
}

// PipelineConfig tunes the dashboard orchestration pipeline.
type PipelineConfig struct {
	// Timeout for a single upstream HTTP request (seconds)
	UpstreamTimeoutSeconds int `mapstructure:"UPSTREAM_TIMEOUT_SECONDS" yaml:"upstream_timeout_seconds"`
	// Timeout for device geolocation before falling back to IP lookup (seconds)
	GeolocationTimeoutSeconds int `mapstructure:"GEOLOCATION_TIMEOUT_SECONDS" yaml:"geolocation_timeout_seconds"`
	// TTL for cached environment records (minutes)
	CacheTTLMinutes int `mapstructure:"CACHE_TTL_MINUTES" yaml:"cache_ttl_minutes"`
	// Number of news items fetched for the dashboard
	NewsLimit int `mapstructure:"NEWS_LIMIT" yaml:"news_limit"`
	// Forecast horizon and history window in days
	ForecastDays int `mapstructure:"FORECAST_DAYS" yaml:"forecast_days"`
	HistoryDays  int `mapstructure:"HISTORY_DAYS" yaml:"history_days"`
	// Maximum distance to a WAQI monitoring station before falling back (km)
	StationMaxDistanceKM float64 `mapstructure:"STATION_MAX_DISTANCE_KM" yaml:"station_max_distance_km"`
}

// RateLimitConfig holds configuration for rate limiting the AI endpoints.
type RateLimitConfig struct {
	// Maximum requests per minute per client for AI tool endpoints
	AIRequestsPerMinute int `mapstructure:"AI_REQUESTS_PER_MINUTE" yaml:"ai_requests_per_minute"`
	// Window duration in seconds for rate limiting
	WindowSeconds int `mapstructure:"WINDOW_SECONDS" yaml:"window_seconds"`
}

// Config aggregates all application configuration sections.
type Config struct {
	Server           ServerConfig     `mapstructure:"SERVER" yaml:"server"`
	Redis            RedisConfig      `mapstructure:"REDIS" yaml:"redis"`
	ExternalServices ExternalServices `mapstructure:"EXTERNAL_SERVICES" yaml:"external_services"`
	Pipeline         PipelineConfig   `mapstructure:"PIPELINE" yaml:"pipeline"`
	RateLimit        RateLimitConfig  `mapstructure:"RATE_LIMIT" yaml:"rate_limit"`
}

// IsDevelopment returns true if the application is running in development environment.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == EnvDevelopment
}

// IsProduction returns true if the application is running in production environment.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == EnvProduction
}

// bindEnvVars binds multiple environment variables to config keys.
// Format: []{configKey, envVar}
func bindEnvVars(v *viper.Viper, bindings [][2]string) error {
	for _, b := range bindings {
		if err := v.BindEnv(b[0], b[1]); err != nil {
			return fmt.Errorf("failed to bind %s: %w", b[0], err)
		}
	}
	return nil
}

// LoadConfig loads configuration from environment variables using Viper,
// sets default values, binds environment variables to config struct fields,
// unmarshals the configuration, and validates it.
func LoadConfig() (*Config, error) {
	v := viper.New()
	log := logger.GetLogger()

	v.SetDefault("SERVER.ENVIRONMENT", EnvDevelopment)
	v.SetDefault("SERVER.PORT", "8080")
	v.SetDefault("SERVER.ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("SERVER.VERSION", "dev")
	v.SetDefault("REDIS.ADDRESS", "localhost:6379")
	v.SetDefault("REDIS.PASSWORD", "")
	v.SetDefault("REDIS.DB", 0)
	v.SetDefault("REDIS.USE_TLS", false)
	v.SetDefault("REDIS.POOL_SIZE", 3)
	v.SetDefault("REDIS.MIN_IDLE_CONNS", 1)
	v.SetDefault("EXTERNAL_SERVICES.ADVISORY_API_URL", "https://api.openai.com/v1")
	v.SetDefault("EXTERNAL_SERVICES.ADVISORY_MODEL", "gpt-4o-mini")
	v.SetDefault("EXTERNAL_SERVICES.IP_LOOKUP_URL", "https://ipapi.co")
	v.SetDefault("EXTERNAL_SERVICES.NEWS_FEED_BASE_URL", "https://news.google.com")
	v.SetDefault("PIPELINE.UPSTREAM_TIMEOUT_SECONDS", 10)
	v.SetDefault("PIPELINE.GEOLOCATION_TIMEOUT_SECONDS", 15)
	v.SetDefault("PIPELINE.CACHE_TTL_MINUTES", 10)
	v.SetDefault("PIPELINE.NEWS_LIMIT", 5)
	v.SetDefault("PIPELINE.FORECAST_DAYS", 5)
	v.SetDefault("PIPELINE.HISTORY_DAYS", 7)
	v.SetDefault("PIPELINE.STATION_MAX_DISTANCE_KM", 25.0)
	v.SetDefault("RATE_LIMIT.AI_REQUESTS_PER_MINUTE", 20)
	v.SetDefault("RATE_LIMIT.WINDOW_SECONDS", 60)
	v.SetDefault("LOG_LEVEL", "info")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Bind environment variables
	envBindings := [][2]string{
		// Server config
		{"SERVER.ENVIRONMENT", "SERVER_ENVIRONMENT"},
		{"SERVER.PORT", "PORT"},
		{"SERVER.ALLOWED_ORIGINS", "ALLOWED_ORIGINS"},
		{"SERVER.VERSION", "VERSION"},
		// Redis config
		{"REDIS.ADDRESS", "REDIS_ADDRESS"},
		{"REDIS.PASSWORD", "REDIS_PASSWORD"},
		{"REDIS.DB", "REDIS_DB"},
		{"REDIS.USE_TLS", "REDIS_USE_TLS"},
		// External services
		{"EXTERNAL_SERVICES.OPENWEATHER_KEY", "OPENWEATHER_KEY"},
		{"EXTERNAL_SERVICES.WAQI_TOKEN", "WAQI_TOKEN"},
		{"EXTERNAL_SERVICES.ADVISORY_API_URL", "ADVISORY_API_URL"},
		{"EXTERNAL_SERVICES.ADVISORY_API_KEY", "ADVISORY_API_KEY"},
		{"EXTERNAL_SERVICES.ADVISORY_MODEL", "ADVISORY_MODEL"},
		{"EXTERNAL_SERVICES.IP_LOOKUP_URL", "IP_LOOKUP_URL"},
		{"EXTERNAL_SERVICES.NEWS_FEED_BASE_URL", "NEWS_FEED_BASE_URL"},
		// Pipeline config
		{"PIPELINE.UPSTREAM_TIMEOUT_SECONDS", "PIPELINE_UPSTREAM_TIMEOUT_SECONDS"},
		{"PIPELINE.GEOLOCATION_TIMEOUT_SECONDS", "PIPELINE_GEOLOCATION_TIMEOUT_SECONDS"},
		{"PIPELINE.CACHE_TTL_MINUTES", "PIPELINE_CACHE_TTL_MINUTES"},
		{"PIPELINE.NEWS_LIMIT", "PIPELINE_NEWS_LIMIT"},
		{"PIPELINE.FORECAST_DAYS", "PIPELINE_FORECAST_DAYS"},
		{"PIPELINE.HISTORY_DAYS", "PIPELINE_HISTORY_DAYS"},
		{"PIPELINE.STATION_MAX_DISTANCE_KM", "PIPELINE_STATION_MAX_DISTANCE_KM"},
		// Rate limit config
		{"RATE_LIMIT.AI_REQUESTS_PER_MINUTE", "RATE_LIMIT_AI_REQUESTS_PER_MINUTE"},
		{"RATE_LIMIT.WINDOW_SECONDS", "RATE_LIMIT_WINDOW_SECONDS"},
	}

	if err := bindEnvVars(v, envBindings); err != nil {
		return nil, err
	}

	log.Infow("Configuration loaded",
		"environment", v.GetString("SERVER.ENVIRONMENT"),
		"server_port", v.GetString("SERVER.PORT"),
		"redis_address", v.GetString("REDIS.ADDRESS"),
		"openweather_key", logger.MaskAPIKey(v.GetString("EXTERNAL_SERVICES.OPENWEATHER_KEY")),
		"waqi_token", logger.MaskAPIKey(v.GetString("EXTERNAL_SERVICES.WAQI_TOKEN")),
		"news_limit", v.GetInt("PIPELINE.NEWS_LIMIT"),
	)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal failed: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// validateConfig checks if the loaded configuration values are valid.
func validateConfig(cfg *Config) error {
	if cfg.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if !containsWildcard(cfg.Server.AllowedOrigins) {
		for _, origin := range cfg.Server.AllowedOrigins {
			if _, err := url.ParseRequestURI(origin); err != nil {
				return fmt.Errorf("invalid allowed origin '%s': %w", origin, err)
			}
		}
	}

	// The weather, geocoding, forecast and history fetches all ride on the
	// OpenWeather key; outside development the service is useless without it.
	if cfg.IsProduction() && cfg.ExternalServices.OpenWeatherKey == "" {
		return fmt.Errorf("OPENWEATHER_KEY is required in production")
	}

	if cfg.Pipeline.UpstreamTimeoutSeconds <= 0 {
		return fmt.Errorf("upstream timeout must be positive")
	}
	if cfg.Pipeline.NewsLimit <= 0 {
		return fmt.Errorf("news limit must be positive")
	}
	if cfg.Pipeline.StationMaxDistanceKM <= 0 {
		return fmt.Errorf("station max distance must be positive")
	}

	return nil
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
