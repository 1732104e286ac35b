package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"user-management-service/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r http.Handler, method, path string, header http.Header) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID_Generated(t *testing.T) {
	var seen string
	r := gin.New()
	r.Use(RequestID())
	r.GET("/ping", func(c *gin.Context) {
		seen = logger.GetRequestID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	w := serve(r, http.MethodGet, "/ping", nil)

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
}

func TestRequestID_Propagated(t *testing.T) {
	var seen string
	r := gin.New()
	r.Use(RequestID())
	r.GET("/ping", func(c *gin.Context) {
		seen = logger.GetRequestID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	// Non-canonical casing as sent by many clients
	w := serve(r, http.MethodGet, "/ping", http.Header{"x-request-id": {"req-123"}})

	assert.Equal(t, "req-123", seen)
	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
}

func TestLogger_LevelByStatus(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := gin.New()
	r.Use(RequestID(), Logger(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	serve(r, http.MethodGet, "/ok", nil)
	serve(r, http.MethodGet, "/missing", nil)
	serve(r, http.MethodGet, "/boom", nil)

	entries := logs.FilterMessage("http request").All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)

	fields := entries[0].ContextMap()
	assert.Equal(t, "/ok", fields["path"])
	assert.Equal(t, int64(http.StatusOK), fields["status"])
	assert.NotEmpty(t, fields["request_id"])
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	r := gin.New()
	r.Use(Recovery(zap.New(core)))
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := serve(r, http.MethodGet, "/panic", nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal_error","message":"An internal error occurred"}`, w.Body.String())
	assert.Equal(t, 1, logs.FilterMessage("panic recovered in http handler").Len())
}

func setupRateLimiter(t *testing.T, cfg RateLimiterConfig) (*gin.Engine, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	rl := NewRateLimiter(client, cfg, zaptest.NewLogger(t))
	r := gin.New()
	r.Use(rl.Middleware())
	r.GET("/api/users", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/api/users", func(c *gin.Context) { c.Status(http.StatusCreated) })
	return r, mr
}

func TestRateLimiter_BurstThenReject(t *testing.T) {
	r, _ := setupRateLimiter(t, RateLimiterConfig{RequestsPerSecond: 0.001, BurstCapacity: 3, Enabled: true})

	for i := 0; i < 3; i++ {
		w := serve(r, http.MethodGet, "/api/users", nil)
		assert.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
	}

	w := serve(r, http.MethodGet, "/api/users", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "rate_limit_exceeded")

	// Buckets are per method
	w = serve(r, http.MethodPost, "/api/users", nil)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestRateLimiter_Disabled(t *testing.T) {
	r, _ := setupRateLimiter(t, RateLimiterConfig{RequestsPerSecond: 0.001, BurstCapacity: 1, Enabled: false})

	for i := 0; i < 5; i++ {
		w := serve(r, http.MethodGet, "/api/users", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRateLimiter_FailOpen(t *testing.T) {
	r, mr := setupRateLimiter(t, RateLimiterConfig{RequestsPerSecond: 0.001, BurstCapacity: 1, Enabled: true})
	mr.Close()

	for i := 0; i < 3; i++ {
		w := serve(r, http.MethodGet, "/api/users", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRateLimiter_NilIsNoop(t *testing.T) {
	var rl *RateLimiter
	r := gin.New()
	r.Use(rl.Middleware())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/x", nil).Code)
}
