package services

import (
	"context"
	"testing"
	"time"

	"github.com/breathesafe/breathe-backend/config"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckLimitUnderLimit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectIncr("rate_limit:assistant:1.2.3.4").SetVal(3)
	mock.ExpectExpire("rate_limit:assistant:1.2.3.4", time.Minute).SetVal(true)

	svc := NewRateLimitService(db, config.RateLimitConfig{AIRequestsPerMinute: 20, WindowSeconds: 60})
	allowed, retryAfter, err := svc.CheckLimit(context.Background(), "assistant:1.2.3.4", 20, time.Minute)

	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Zero(t, retryAfter)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckLimitOverLimit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectIncr("rate_limit:assistant:1.2.3.4").SetVal(21)
	mock.ExpectExpire("rate_limit:assistant:1.2.3.4", time.Minute).SetVal(true)
	mock.ExpectTTL("rate_limit:assistant:1.2.3.4").SetVal(42 * time.Second)

	svc := NewRateLimitService(db, config.RateLimitConfig{AIRequestsPerMinute: 20, WindowSeconds: 60})
	allowed, retryAfter, err := svc.CheckLimit(context.Background(), "assistant:1.2.3.4", 20, time.Minute)

	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 42*time.Second, retryAfter)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAllowAssistantUsesConfiguredWindow(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectIncr("rate_limit:assistant:client-9").SetVal(1)
	mock.ExpectExpire("rate_limit:assistant:client-9", 30*time.Second).SetVal(true)

	svc := NewRateLimitService(db, config.RateLimitConfig{AIRequestsPerMinute: 5, WindowSeconds: 30})
	allowed, _, err := svc.AllowAssistant(context.Background(), "client-9")

	require.NoError(t, err)
	assert.True(t, allowed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
