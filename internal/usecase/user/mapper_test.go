package user

import (
	"testing"

	"github.com/stretchr/testify/assert"

	domain "user-management-service/internal/domain/user"
)

func TestMapper_RoundTrip(t *testing.T) {
	users := []domain.User{
		{ID: 1, FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"},
		{ID: 0, FirstName: "", LastName: "", Email: ""},
		{ID: 9223372036854775807, FirstName: "Zoë", LastName: "Ünal", Email: "zoe+tag@example.org"},
	}

	for _, u := range users {
		assert.Equal(t, u, ToEntity(ToDto(u)))

		d := ToDto(u)
		assert.Equal(t, d, ToDto(ToEntity(d)))
	}
}

func TestToDto_CopiesEveryField(t *testing.T) {
	d := ToDto(domain.User{ID: 3, FirstName: "A", LastName: "B", Email: "a@b.com"})

	assert.Equal(t, UserDto{ID: 3, FirstName: "A", LastName: "B", Email: "a@b.com"}, d)
}

func TestToDtos_NeverNil(t *testing.T) {
	assert.NotNil(t, ToDtos(nil))
	assert.Len(t, ToDtos([]domain.User{{ID: 1}, {ID: 2}}), 2)
}
