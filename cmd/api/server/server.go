package server

import (
	"context"
	"errors"
	"net"
	"net/http"

	"go.uber.org/zap"

	"user-management-service/cmd/api/di"
	"user-management-service/internal/config"
)

// Server struct holds all server dependencies
type Server struct {
	Config *config.Config
	Logger *zap.Logger
	Gin    *http.Server
}

// New creates a new server instance
func New(cfg *config.Config, l *zap.Logger, container *di.Container) *Server {
	return &Server{
		Config: cfg,
		Logger: l,
		Gin: SetupGinServer(
			container.GinHandler,
			container.RateLimiter,
			container.ReadinessChecks(),
			cfg.Logger.ServiceName,
			httpAddress(cfg),
			l,
		),
	}
}

// Start listens on the configured port and serves until Shutdown is called.
func (s *Server) Start() error {
	lc := net.ListenConfig{}
	lis, err := lc.Listen(context.Background(), "tcp", s.Gin.Addr)
	if err != nil {
		return err
	}

	s.Logger.Info("REST API running", zap.String("address", lis.Addr().String()))
	if err := s.Gin.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.Gin.Shutdown(ctx)
}

// httpAddress returns the HTTP server address
func httpAddress(cfg *config.Config) string {
	return ":" + cfg.App.HTTPPort
}
