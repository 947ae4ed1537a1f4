package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"triage/internal/config"
)

func TestFromSettings(t *testing.T) {
	cfg := FromSettings(config.RateLimitConfig{RPS: 2, MaxAge: 60})
	assert.Equal(t, 2.0, cfg.RPS)
	assert.Equal(t, 20, cfg.Burst)
	assert.Equal(t, time.Minute, cfg.MaxAge)
	assert.Equal(t, 5*time.Minute, cfg.CleanupInterval)
}

func TestMiddleware_LimitsPerClient(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := NewLimiter(Config{RPS: 1, Burst: 2, CleanupInterval: time.Minute, MaxAge: time.Minute})

	router := gin.New()
	router.Use(l.Middleware())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1"))
	assert.Equal(t, http.StatusOK, do("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.1"))
	assert.Equal(t, http.StatusOK, do("10.0.0.2"))
}

func TestLimiter_Cleanup(t *testing.T) {
	l := NewLimiter(Config{RPS: 1, Burst: 1, MaxAge: time.Minute})
	now := time.Now()
	l.now = func() time.Time { return now }

	l.Allow("a")
	now = now.Add(30 * time.Second)
	l.Allow("b")
	now = now.Add(45 * time.Second)

	assert.Equal(t, 1, l.Cleanup())
	assert.Len(t, l.clients, 1)
	assert.Contains(t, l.clients, "b")
}
