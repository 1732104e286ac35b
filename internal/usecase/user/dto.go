package user

// UserDto is the API-facing representation of a user. It mirrors the entity field for
// field so the HTTP shape can evolve independently of the storage shape.
type UserDto struct {
	ID        int64  `json:"id,omitempty"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}
