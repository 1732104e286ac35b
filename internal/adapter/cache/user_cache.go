package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	domain "user-management-service/internal/domain/user"
)

// UserCache defines the interface for user caching operations.
//
// Every invalidation bumps a per-user version. A loader reads the version before
// querying the store and writes with SetIfVersion, so a load that overlaps a write
// cannot put the pre-write row back into the cache.
type UserCache interface {
	// Get retrieves a user from cache by ID.
	// Returns nil if user is not found in cache.
	Get(ctx context.Context, id int64) (*domain.User, error)

	// Version returns the current invalidation version for the user.
	Version(ctx context.Context, id int64) (int64, error)

	// SetIfVersion stores the user with the configured TTL unless it was
	// invalidated since version was read. It reports whether the user was stored.
	SetIfVersion(ctx context.Context, user *domain.User, version int64) (bool, error)

	// Delete removes a user from cache by ID and bumps its version.
	Delete(ctx context.Context, id int64) error
}

// cachedUser is the JSON shape stored in Redis.
type cachedUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// RedisUserCache implements UserCache using Redis as the backing store.
type RedisUserCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

// NewRedisUserCache creates a new Redis-backed user cache.
func NewRedisUserCache(client *redis.Client, ttl time.Duration, log *zap.Logger) *RedisUserCache {
	return &RedisUserCache{
		client: client,
		ttl:    ttl,
		log:    log,
	}
}

// Key returns the Redis key holding the user with the given ID.
func Key(id int64) string {
	return fmt.Sprintf("user:%d", id)
}

// VersionKey returns the Redis key holding the user's invalidation version.
func VersionKey(id int64) string {
	return fmt.Sprintf("user:%d:ver", id)
}

// Stores ARGV[1] at KEYS[1] for ARGV[3] ms only while KEYS[2] still equals ARGV[2].
var setIfVersionScript = redis.NewScript(`
	local current = tonumber(redis.call('GET', KEYS[2])) or 0
	if current ~= tonumber(ARGV[2]) then
		return 0
	end
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
	return 1
`)

// Get retrieves a user from Redis cache.
func (c *RedisUserCache) Get(ctx context.Context, id int64) (*domain.User, error) {
	data, err := c.client.Get(ctx, Key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.log.Debug("cache miss", zap.Int64("user_id", id))
		return nil, nil
	}
	if err != nil {
		c.log.Error("failed to get from cache", zap.Int64("user_id", id), zap.Error(err))
		return nil, err
	}

	var cu cachedUser
	if err := json.Unmarshal(data, &cu); err != nil {
		c.log.Error("failed to unmarshal cached user", zap.Int64("user_id", id), zap.Error(err))
		return nil, err
	}

	c.log.Debug("cache hit", zap.Int64("user_id", id))
	return &domain.User{
		ID:        cu.ID,
		FirstName: cu.FirstName,
		LastName:  cu.LastName,
		Email:     cu.Email,
	}, nil
}

// Version returns the user's invalidation version, zero when never invalidated.
func (c *RedisUserCache) Version(ctx context.Context, id int64) (int64, error) {
	v, err := c.client.Get(ctx, VersionKey(id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		c.log.Error("failed to get cache version", zap.Int64("user_id", id), zap.Error(err))
		return 0, err
	}
	return v, nil
}

// SetIfVersion stores a user in Redis cache with TTL unless its version moved on.
func (c *RedisUserCache) SetIfVersion(ctx context.Context, user *domain.User, version int64) (bool, error) {
	if user == nil {
		return false, errors.New("cannot cache nil user")
	}

	data, err := json.Marshal(cachedUser{
		ID:        user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
	})
	if err != nil {
		c.log.Error("failed to marshal user for cache", zap.Int64("user_id", user.ID), zap.Error(err))
		return false, err
	}

	stored, err := setIfVersionScript.Run(ctx, c.client,
		[]string{Key(user.ID), VersionKey(user.ID)},
		data, version, c.ttl.Milliseconds(),
	).Int64()
	if err != nil {
		c.log.Error("failed to set cache", zap.Int64("user_id", user.ID), zap.Error(err))
		return false, err
	}

	if stored == 0 {
		c.log.Debug("skipped caching stale user", zap.Int64("user_id", user.ID), zap.Int64("version", version))
		return false, nil
	}

	c.log.Debug("cached user", zap.Int64("user_id", user.ID), zap.Duration("ttl", c.ttl))
	return true, nil
}

// Delete removes a user from Redis cache and bumps its version. The version key
// outlives the cached value so in-flight loads still see the change.
func (c *RedisUserCache) Delete(ctx context.Context, id int64) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, VersionKey(id))
		pipe.Expire(ctx, VersionKey(id), 2*c.ttl)
		pipe.Del(ctx, Key(id))
		return nil
	})
	if err != nil {
		c.log.Error("failed to delete from cache", zap.Int64("user_id", id), zap.Error(err))
		return err
	}

	c.log.Debug("deleted from cache", zap.Int64("user_id", id))
	return nil
}
