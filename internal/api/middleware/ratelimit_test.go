package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInMemoryRateLimiterPerClient(t *testing.T) {
	rl := NewInMemoryRateLimiter(&Config{
		GlobalRPS: 1000,
		ClientRPS: 1,
		// burst defaults to 2x rate, so each client gets 2 immediate requests
	})
	defer func() {
		_ = rl.Close()
	}()

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"), "third immediate request exceeds client burst")

	// A different client has its own bucket.
	assert.True(t, rl.Allow("10.0.0.2"))
}

func TestInMemoryRateLimiterGlobal(t *testing.T) {
	rl := NewInMemoryRateLimiter(&Config{
		GlobalRPS:   1,
		GlobalBurst: 1,
		ClientRPS:   1000,
	})
	defer func() {
		_ = rl.Close()
	}()

	assert.True(t, rl.Allow("10.0.0.1"))

	// The global bucket is shared across clients.
	assert.False(t, rl.Allow("10.0.0.2"))
}

func TestInMemoryRateLimiterEmptyClientID(t *testing.T) {
	rl := NewInMemoryRateLimiter(&Config{
		GlobalRPS: 1000,
		ClientRPS: 1,
	})
	defer func() {
		_ = rl.Close()
	}()

	// An empty client id only consults the global limit.
	for i := 0; i < 10; i++ {
		assert.True(t, rl.Allow(""))
	}
}

func TestComputeBurstCapacity(t *testing.T) {
	assert.Equal(t, 40, computeBurstCapacity(20, 0), "defaults to 2x rate")
	assert.Equal(t, 5, computeBurstCapacity(20, 5), "override wins")
}

func TestClientHost(t *testing.T) {
	assert.Equal(t, "10.0.0.1", clientHost("10.0.0.1:54321"))
	assert.Equal(t, "10.0.0.1", clientHost("10.0.0.1"))
	assert.Equal(t, "::1", clientHost("[::1]:8080"))
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewInMemoryRateLimiter(&Config{
		GlobalRPS:   1,
		GlobalBurst: 1,
		ClientRPS:   1000,
	})
	defer func() {
		_ = rl.Close()
	}()

	handler := RateLimit(rl, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "Rate limit exceeded")
}
