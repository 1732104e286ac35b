package user

import domain "user-management-service/internal/domain/user"

// ToDto converts a user entity into its transfer representation.
func ToDto(u domain.User) UserDto {
	return UserDto{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
	}
}

// ToEntity converts a transfer object into a user entity.
func ToEntity(d UserDto) domain.User {
	return domain.User{
		ID:        d.ID,
		FirstName: d.FirstName,
		LastName:  d.LastName,
		Email:     d.Email,
	}
}

// ToDtos maps a slice of entities. The result is never nil.
func ToDtos(users []domain.User) []UserDto {
	out := make([]UserDto, len(users))
	for i, u := range users {
		out[i] = ToDto(u)
	}
	return out
}
