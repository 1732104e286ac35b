package user

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	domain "user-management-service/internal/domain/user"
	pkgerrors "user-management-service/pkg/errors"
	"user-management-service/pkg/logger"
)

// Repository defines the data access operations the usecase depends on.
// Implementations: the gorm store and a read-through cache decorator around it.
type Repository interface {
	Save(ctx context.Context, u *domain.User) (*domain.User, error) // Insert when ID is zero, update otherwise
	FindByID(ctx context.Context, id int64) (*domain.User, error)   // Returns (nil, nil) when absent
	FindAll(ctx context.Context) ([]domain.User, error)             // Every user in store order
	DeleteByID(ctx context.Context, id int64) error                 // No-op when absent
}

// UserUsecase implements Usecase on top of a Repository.
type UserUsecase struct {
	repo Repository
	log  *zap.Logger
}

var _ Usecase = (*UserUsecase)(nil)

// New creates a new instance of UserUsecase.
func New(r Repository, log *zap.Logger) *UserUsecase {
	return &UserUsecase{repo: r, log: log}
}

func notFound(id int64) error {
	return pkgerrors.NewNotFoundError("user", fmt.Sprintf("user not found: id=%d", id))
}

// CreateUser persists a new user. The store assigns the ID; any ID on the input is ignored.
func (uc *UserUsecase) CreateUser(ctx context.Context, in UserDto) (*UserDto, error) {
	log := logger.WithContext(ctx, uc.log)
	log.Info("creating user", zap.String("email", in.Email))

	entity := ToEntity(in)
	entity.ID = 0

	saved, err := uc.repo.Save(ctx, &entity)
	if err != nil {
		log.Error("failed to create user", zap.String("email", in.Email), zap.Error(err))
		return nil, err
	}

	out := ToDto(*saved)
	return &out, nil
}

// GetUserByID returns the user with the given ID or a NotFoundError.
func (uc *UserUsecase) GetUserByID(ctx context.Context, id int64) (*UserDto, error) {
	log := logger.WithContext(ctx, uc.log)

	u, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		log.Error("failed to get user", zap.Int64("id", id), zap.Error(err))
		return nil, err
	}
	if u == nil {
		log.Warn("user not found", zap.Int64("id", id))
		return nil, notFound(id)
	}

	out := ToDto(*u)
	return &out, nil
}

// GetAllUsers returns every user in the store's iteration order.
func (uc *UserUsecase) GetAllUsers(ctx context.Context) ([]UserDto, error) {
	users, err := uc.repo.FindAll(ctx)
	if err != nil {
		logger.WithContext(ctx, uc.log).Error("failed to list users", zap.Error(err))
		return nil, err
	}
	return ToDtos(users), nil
}

// UpdateUser loads the existing user, overwrites its email and names, and saves it.
// The ID is never changed.
func (uc *UserUsecase) UpdateUser(ctx context.Context, in UserDto) (*UserDto, error) {
	log := logger.WithContext(ctx, uc.log)
	log.Info("updating user", zap.Int64("id", in.ID), zap.String("email", in.Email))

	existing, err := uc.repo.FindByID(ctx, in.ID)
	if err != nil {
		log.Error("failed to load user for update", zap.Int64("id", in.ID), zap.Error(err))
		return nil, err
	}
	if existing == nil {
		log.Warn("user not found for update", zap.Int64("id", in.ID))
		return nil, notFound(in.ID)
	}

	existing.Email = in.Email
	existing.FirstName = in.FirstName
	existing.LastName = in.LastName

	saved, err := uc.repo.Save(ctx, existing)
	if err != nil {
		log.Error("failed to update user", zap.Int64("id", in.ID), zap.Error(err))
		return nil, err
	}

	out := ToDto(*saved)
	return &out, nil
}

// DeleteUser removes the user with the given ID. Deleting an absent ID succeeds.
func (uc *UserUsecase) DeleteUser(ctx context.Context, id int64) error {
	log := logger.WithContext(ctx, uc.log)
	log.Info("deleting user", zap.Int64("id", id))

	if err := uc.repo.DeleteByID(ctx, id); err != nil {
		log.Error("failed to delete user", zap.Int64("id", id), zap.Error(err))
		return err
	}
	return nil
}
