package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a read-only projection of the external identity provider's record.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     *string   `json:"email,omitempty"`
	FirstName *string   `json:"first_name,omitempty"`
	LastName  *string   `json:"last_name,omitempty"`
	Role      string    `json:"role"` // rbac role: landlord / seeker / admin
	CreatedAt time.Time `json:"created_at"`
}
