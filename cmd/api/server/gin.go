package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	ginhandler "user-management-service/internal/adapter/gin/handler"
	"user-management-service/internal/adapter/gin/middleware"
	ginrouter "user-management-service/internal/adapter/gin/router"
)

// SetupGinServer creates and configures the Gin REST API server
func SetupGinServer(
	handler *ginhandler.UserHandler,
	rateLimiter *middleware.RateLimiter,
	checks map[string]ginrouter.Check,
	serviceName string,
	addr string,
	l *zap.Logger,
) *http.Server {
	gin.SetMode(gin.ReleaseMode)

	// Setup Gin router with all middleware and routes
	router := ginrouter.SetupRouter(handler, rateLimiter, checks, serviceName, l)

	l.Info("Gin REST API configured",
		zap.String("address", addr),
		zap.Bool("rate_limit", rateLimiter != nil),
		zap.Int("readiness_checks", len(checks)),
	)
	l.Info("Swagger UI available at", zap.String("path", "/swagger/index.html"))

	return &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
