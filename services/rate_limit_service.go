package services

import (
	"context"
	"time"

	"github.com/breathesafe/breathe-backend/config"
	"github.com/redis/go-redis/v9"
)

// RateLimiterInterface defines the contract for rate limiting operations.
type RateLimiterInterface interface {
	CheckLimit(ctx context.Context, key string, limit int, duration time.Duration) (bool, time.Duration, error)
	AllowAssistant(ctx context.Context, clientID string) (bool, time.Duration, error)
}

// RateLimitService throttles the assistant endpoints with a Redis
// fixed-window counter. Assistant calls are the only metered upstream, so
// they get a dedicated budget per client.
type RateLimitService struct {
	redis     *redis.Client
	cfg       config.RateLimitConfig
	keyPrefix string
}

func NewRateLimitService(redisClient *redis.Client, cfg config.RateLimitConfig) *RateLimitService {
	return &RateLimitService{
		redis:     redisClient,
		cfg:       cfg,
		keyPrefix: "rate_limit:",
	}
}

// AllowAssistant applies the configured assistant budget to a client.
func (s *RateLimitService) AllowAssistant(ctx context.Context, clientID string) (bool, time.Duration, error) {
	window := time.Duration(s.cfg.WindowSeconds) * time.Second
	return s.CheckLimit(ctx, "assistant:"+clientID, s.cfg.AIRequestsPerMinute, window)
}

// CheckLimit increments the window counter for key and reports whether the
// call is within limit. When over limit it returns the time until the
// window resets.
func (s *RateLimitService) CheckLimit(ctx context.Context, key string, limit int, duration time.Duration) (bool, time.Duration, error) {
	rKey := s.keyPrefix + key

	pipe := s.redis.Pipeline()
	incr := pipe.Incr(ctx, rKey)
	pipe.Expire(ctx, rKey, duration)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, 0, err
	}

	if incr.Val() > int64(limit) {
		ttl, err := s.redis.TTL(ctx, rKey).Result()
		if err != nil {
			return false, 0, err
		}
		return false, ttl, nil
	}

	return true, 0, nil
}
