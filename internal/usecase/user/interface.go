package user

import "context"

// Usecase defines the interface for user business logic operations.
type Usecase interface {
	CreateUser(ctx context.Context, in UserDto) (*UserDto, error)
	GetUserByID(ctx context.Context, id int64) (*UserDto, error)
	GetAllUsers(ctx context.Context) ([]UserDto, error)
	UpdateUser(ctx context.Context, in UserDto) (*UserDto, error)
	DeleteUser(ctx context.Context, id int64) error
}
