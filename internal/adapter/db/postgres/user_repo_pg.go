package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"user-management-service/internal/domain/user"
	pkgerrors "user-management-service/pkg/errors"
)

// SQLSTATE for unique_violation
const pgUniqueViolation = "23505"

// UserRepoPG implements the user Repository with GORM. It is dialect-agnostic; the
// name reflects the production store.
type UserRepoPG struct {
	db       *gorm.DB            // GORM database connection
	log      *zap.Logger         // Structured logger for database operations
	validate *validator.Validate // Enforces column constraints before writing
}

// NewUserRepoPG creates a new instance of UserRepoPG.
func NewUserRepoPG(db *gorm.DB, log *zap.Logger) *UserRepoPG {
	return &UserRepoPG{db: db, log: log, validate: validator.New()}
}

// UserSchema represents the database schema for the users table.
type UserSchema struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	FirstName string `gorm:"not null" validate:"required"`
	LastName  string `gorm:"not null" validate:"required"`
	Email     string `gorm:"not null;unique" validate:"required"`
}

// TableName specifies the table name for the UserSchema model.
func (UserSchema) TableName() string {
	return "users"
}

func toSchema(u *user.User) UserSchema {
	return UserSchema{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
	}
}

func (s UserSchema) toDomain() *user.User {
	return &user.User{
		ID:        s.ID,
		FirstName: s.FirstName,
		LastName:  s.LastName,
		Email:     s.Email,
	}
}

// Save inserts the user when its ID is zero and updates the existing row otherwise.
// Updating an ID with no row returns a NotFoundError; rows are never created under a
// caller-chosen ID. The returned user carries the store-assigned ID.
func (r *UserRepoPG) Save(ctx context.Context, u *user.User) (*user.User, error) {
	if u == nil {
		return nil, errors.New("user cannot be nil")
	}

	model := toSchema(u)
	if err := r.checkConstraints(model); err != nil {
		r.log.Warn("rejected user with missing columns", zap.Int64("id", u.ID), zap.Error(err))
		return nil, err
	}

	if model.ID == 0 {
		if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
			return nil, r.saveError(err, u)
		}
		r.log.Info("user created in db", zap.Int64("id", model.ID))
		return model.toDomain(), nil
	}

	result := r.db.WithContext(ctx).Model(&UserSchema{}).Where("id = ?", model.ID).Updates(map[string]any{
		"first_name": model.FirstName,
		"last_name":  model.LastName,
		"email":      model.Email,
	})
	if result.Error != nil {
		return nil, r.saveError(result.Error, u)
	}
	if result.RowsAffected == 0 {
		r.log.Warn("user to update not found in db", zap.Int64("id", model.ID))
		return nil, pkgerrors.NewNotFoundError("user", fmt.Sprintf("user not found: id=%d", model.ID))
	}

	r.log.Info("user updated in db", zap.Int64("id", model.ID))
	return model.toDomain(), nil
}

func (r *UserRepoPG) saveError(err error, u *user.User) error {
	if isUniqueViolation(err) {
		r.log.Warn("email already exists", zap.String("email", u.Email))
		return pkgerrors.NewAlreadyExistsError("user", "email already exists")
	}
	r.log.Error("failed to save user in db", zap.Error(err), zap.Int64("id", u.ID))
	return pkgerrors.NewInternalError("failed to save user", err)
}

// FindByID retrieves a user by ID. It returns (nil, nil) when no such user exists.
func (r *UserRepoPG) FindByID(ctx context.Context, id int64) (*user.User, error) {
	var model UserSchema
	if err := r.db.WithContext(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.log.Debug("user not found", zap.Int64("id", id))
			return nil, nil
		}
		r.log.Error("failed to get user from db", zap.Error(err), zap.Int64("id", id))
		return nil, pkgerrors.NewInternalError("failed to get user", err)
	}

	return model.toDomain(), nil
}

// FindAll retrieves every user. No ordering is applied.
func (r *UserRepoPG) FindAll(ctx context.Context) ([]user.User, error) {
	var models []UserSchema
	if err := r.db.WithContext(ctx).Find(&models).Error; err != nil {
		r.log.Error("failed to list users from db", zap.Error(err))
		return nil, pkgerrors.NewInternalError("failed to list users", err)
	}

	users := make([]user.User, len(models))
	for i, model := range models {
		users[i] = *model.toDomain()
	}
	return users, nil
}

// DeleteByID removes a user by ID. Deleting a missing ID is not an error.
func (r *UserRepoPG) DeleteByID(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Delete(&UserSchema{}, id)
	if result.Error != nil {
		r.log.Error("failed to delete user in db", zap.Error(result.Error), zap.Int64("id", id))
		return pkgerrors.NewInternalError("failed to delete user", result.Error)
	}

	r.log.Info("user deleted in db", zap.Int64("id", id), zap.Int64("rows_affected", result.RowsAffected))
	return nil
}

// checkConstraints rejects rows the NOT NULL columns would accept only as empty strings.
func (r *UserRepoPG) checkConstraints(model UserSchema) error {
	err := r.validate.Struct(model)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	fields := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		fields = append(fields, e.Field())
	}
	return pkgerrors.NewValidationError(strings.Join(fields, ", "), "is required")
}

// isUniqueViolation recognises unique constraint failures from every supported driver.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// AutoMigrate creates or updates the users table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&UserSchema{})
}
