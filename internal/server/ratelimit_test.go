package server

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRateLimiter(t *testing.T) {
	rl := NewRateLimiter(10, 100)

	assert.NotNil(t, rl)
	assert.Equal(t, 10, rl.requestsPerMinute)
	assert.Equal(t, 100, rl.requestsPerHour)
	assert.NotNil(t, rl.clients)
}

func TestRateLimiter_CheckRateLimit_NoLimits(t *testing.T) {
	rl := NewRateLimiter(0, 0) // No limits

	for range 100 {
		assert.NoError(t, rl.CheckRateLimit("client1"))
	}

	usage := rl.GetUsage("client1")
	assert.Equal(t, 100, usage.requestsLastMinute)
	assert.Equal(t, 100, usage.requestsLastHour)
}

func TestRateLimiter_CheckRateLimit_RequestsPerMinute(t *testing.T) {
	rl := NewRateLimiter(2, 0) // 2 requests per minute

	clientID := "client1"

	// First two requests succeed
	assert.NoError(t, rl.CheckRateLimit(clientID))
	assert.NoError(t, rl.CheckRateLimit(clientID))

	// Third request should fail
	err := rl.CheckRateLimit(clientID)
	assert.Error(t, err)

	rateLimitErr := &RateLimitError{}
	ok := errors.As(err, &rateLimitErr)
	require.True(t, ok)
	assert.Equal(t, "minute", rateLimitErr.Type)
	assert.Equal(t, 2, rateLimitErr.Limit)
	assert.Positive(t, rateLimitErr.RetryAfter)
}

func TestRateLimiter_CheckRateLimit_RequestsPerHour(t *testing.T) {
	rl := NewRateLimiter(0, 3) // 3 requests per hour

	clientID := "client1"

	for range 3 {
		assert.NoError(t, rl.CheckRateLimit(clientID))
	}

	err := rl.CheckRateLimit(clientID)
	assert.Error(t, err)

	rateLimitErr := &RateLimitError{}
	ok := errors.As(err, &rateLimitErr)
	require.True(t, ok)
	assert.Equal(t, "hour", rateLimitErr.Type)
	assert.Equal(t, 3, rateLimitErr.Limit)
}

func TestRateLimiter_CheckRateLimit_WindowReset(t *testing.T) {
	rl := NewRateLimiter(1, 0)

	clientID := "client1"

	require.NoError(t, rl.CheckRateLimit(clientID))
	require.Error(t, rl.CheckRateLimit(clientID))

	// Pretend the client has been idle for the whole minute window
	rl.mu.Lock()
	rl.clients[clientID].lastRequestTime = time.Now().Add(-61 * time.Second)
	rl.mu.Unlock()

	assert.NoError(t, rl.CheckRateLimit(clientID))
}

func TestRateLimiter_GetUsage(t *testing.T) {
	rl := NewRateLimiter(10, 100)

	clientID := "client1"

	require.NoError(t, rl.CheckRateLimit(clientID))
	require.NoError(t, rl.CheckRateLimit(clientID))

	usage := rl.GetUsage(clientID)
	assert.Equal(t, 2, usage.requestsLastMinute)
	assert.Equal(t, 2, usage.requestsLastHour)
	assert.False(t, usage.lastRequestTime.IsZero())

	// Returned value is a copy; mutating it must not affect the limiter
	usage.requestsLastMinute = 0
	assert.Equal(t, 2, rl.GetUsage(clientID).requestsLastMinute)
}

func TestRateLimiter_GetUsage_UnknownClient(t *testing.T) {
	rl := NewRateLimiter(10, 100)

	usage := rl.GetUsage("nobody")
	assert.Equal(t, 0, usage.requestsLastMinute)
	assert.Equal(t, 0, usage.requestsLastHour)
	assert.True(t, usage.lastRequestTime.IsZero())
}

func TestRateLimiter_MultipleClients(t *testing.T) {
	rl := NewRateLimiter(1, 0)

	// Each client gets its own minute budget
	assert.NoError(t, rl.CheckRateLimit("client1"))
	assert.NoError(t, rl.CheckRateLimit("client2"))
	assert.NoError(t, rl.CheckRateLimit("client3"))

	assert.Error(t, rl.CheckRateLimit("client1"))
	assert.Error(t, rl.CheckRateLimit("client2"))
	assert.NoError(t, rl.CheckRateLimit("client4"))
}

func TestRateLimitError_Error(t *testing.T) {
	err := &RateLimitError{
		Type:       "minute",
		Limit:      60,
		RetryAfter: 30 * time.Second,
	}

	msg := err.Error()
	assert.Contains(t, msg, "minute")
	assert.Contains(t, msg, "60")
}
