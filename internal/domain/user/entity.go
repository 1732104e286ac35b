package user

// User represents a user entity in the system.
type User struct {
	ID        int64  // ID is assigned by the store on creation and never changes
	FirstName string // FirstName of the user (required)
	LastName  string // LastName of the user (required)
	Email     string // Email is unique across all users
}
