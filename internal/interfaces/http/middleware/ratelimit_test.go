package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Allow(t *testing.T) {
	now := time.Date(2026, time.October, 16, 9, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(2, time.Minute)
	limiter.now = func() time.Time { return now }

	ok, remaining := limiter.Allow("a")
	assert.True(t, ok)
	assert.Equal(t, 1, remaining)
	ok, remaining = limiter.Allow("a")
	assert.True(t, ok)
	assert.Equal(t, 0, remaining)
	ok, _ = limiter.Allow("a")
	assert.False(t, ok)

	ok, _ = limiter.Allow("b")
	assert.True(t, ok, "clients have separate windows")

	now = now.Add(time.Minute)
	ok, _ = limiter.Allow("a")
	assert.True(t, ok, "a new window starts full")

	now = now.Add(3 * time.Minute)
	limiter.evict()
	assert.Empty(t, limiter.clients)
}

func TestRateLimit(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)
	router := okRouter(RequestID(), RateLimit(limiter))

	first := httptest.NewRequest(http.MethodGet, "/test", nil)
	first.Header.Set(HeaderActorID, uuid.NewString())
	w := serve(router, first)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	again := httptest.NewRequest(http.MethodGet, "/test", nil)
	again.Header.Set(HeaderActorID, first.Header.Get(HeaderActorID))
	w = serve(router, again)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"RATE_LIMITED"`)
	assert.Contains(t, w.Body.String(), `"request_id"`)

	other := httptest.NewRequest(http.MethodGet, "/test", nil)
	other.Header.Set(HeaderActorID, uuid.NewString())
	assert.Equal(t, http.StatusOK, serve(router, other).Code, "another actor from the same IP")
}

func TestRateLimitByKey(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)
	router := okRouter(RateLimitByKey(limiter, func(*gin.Context) string { return "global" }))

	assert.Equal(t, http.StatusOK, serve(router, httptest.NewRequest(http.MethodGet, "/test", nil)).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(router, httptest.NewRequest(http.MethodGet, "/test", nil)).Code)
}
