package infrastructure

import (
	"fmt"
	"net"

	"go.uber.org/zap"

	"user-management-service/internal/config"
	redisclient "user-management-service/pkg/redis"
)

// NewRedisClient connects to the Redis instance backing the user cache and the rate limiter.
func NewRedisClient(cfg *config.Config, l *zap.Logger) (*redisclient.Client, error) {
	rc := cfg.Redis
	rdb, err := redisclient.NewClient(redisclient.Config{
		Host:        rc.Host,
		Port:        rc.Port,
		Password:    rc.Password,
		DB:          rc.DB,
		MaxRetries:  rc.MaxRetries,
		PoolSize:    rc.PoolSize,
		MinIdleConn: rc.MinIdleConn,
	}, l)
	if err != nil {
		return nil, fmt.Errorf("redis %s: %w", net.JoinHostPort(rc.Host, rc.Port), err)
	}
	return rdb, nil
}
