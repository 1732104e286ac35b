package cached

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"user-management-service/internal/adapter/cache"
	domain "user-management-service/internal/domain/user"
	"user-management-service/internal/usecase/user"
)

// CachedUserRepository implements user.Repository with caching support.
// It wraps a persistent repository (DB) and a cache implementation.
type CachedUserRepository struct {
	dbRepo user.Repository
	cache  cache.UserCache
	log    *zap.Logger
	group  singleflight.Group
}

var _ user.Repository = (*CachedUserRepository)(nil)

// NewCachedUserRepository creates a new instance of CachedUserRepository.
func NewCachedUserRepository(dbRepo user.Repository, c cache.UserCache, log *zap.Logger) *CachedUserRepository {
	return &CachedUserRepository{
		dbRepo: dbRepo,
		cache:  c,
		log:    log,
	}
}

// Save writes through to the DB repository and invalidates the cached entry.
func (r *CachedUserRepository) Save(ctx context.Context, u *domain.User) (*domain.User, error) {
	saved, err := r.dbRepo.Save(ctx, u)
	if err != nil {
		return nil, err
	}

	r.invalidate(ctx, saved.ID)
	return saved, nil
}

// FindByID retrieves a user by ID using Cache-Aside pattern.
// Absent users are not cached.
func (r *CachedUserRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	cachedUser, err := r.cache.Get(ctx, id)
	if err != nil {
		r.log.Warn("cache get error, falling back to database", zap.Int64("id", id), zap.Error(err))
	} else if cachedUser != nil {
		return cachedUser, nil
	}

	// Collapse concurrent misses for the same id into one database read
	result, err, shared := r.group.Do(cache.Key(id), func() (any, error) {
		// Waiters share this load; it outlives any single caller's cancellation
		loadCtx := context.WithoutCancel(ctx)
		return r.load(loadCtx, id)
	})
	if err != nil {
		return nil, err
	}

	u, _ := result.(*domain.User)
	if u == nil {
		return nil, nil
	}
	if shared {
		// Callers may mutate the returned entity
		cp := *u
		return &cp, nil
	}
	return u, nil
}

func (r *CachedUserRepository) load(ctx context.Context, id int64) (*domain.User, error) {
	// Read before the store so a concurrent invalidation is detected on write
	version, verErr := r.cache.Version(ctx, id)

	u, err := r.dbRepo.FindByID(ctx, id)
	if err != nil || u == nil {
		return u, err
	}

	if verErr != nil {
		r.log.Warn("cache version unavailable, not caching user", zap.Int64("id", id), zap.Error(verErr))
		return u, nil
	}
	if _, err := r.cache.SetIfVersion(ctx, u, version); err != nil {
		r.log.Warn("failed to cache user", zap.Int64("id", id), zap.Error(err))
	}
	return u, nil
}

// FindAll delegates to the DB repository.
func (r *CachedUserRepository) FindAll(ctx context.Context) ([]domain.User, error) {
	return r.dbRepo.FindAll(ctx)
}

// DeleteByID deletes the user from DB and invalidates the cache.
func (r *CachedUserRepository) DeleteByID(ctx context.Context, id int64) error {
	if err := r.dbRepo.DeleteByID(ctx, id); err != nil {
		return err
	}

	r.invalidate(ctx, id)
	return nil
}

func (r *CachedUserRepository) invalidate(ctx context.Context, id int64) {
	if err := r.cache.Delete(ctx, id); err != nil {
		r.log.Warn("failed to invalidate cached user", zap.Int64("id", id), zap.Error(err))
	}
}
