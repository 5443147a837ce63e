package auth

import (
	"time"

	"github.com/odyssey-erp/odyssey-access/internal/shared"
)

// User represents an account able to obtain a bearer token.
type User struct {
	ID             int64
	Email          string
	PasswordHash   string
	OrganizationID *int64
	Role           string
	IsSuperAdmin   bool
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Principal projects the account onto the request identity.
func (u User) Principal() shared.Principal {
	return shared.Principal{
		UserID:         u.ID,
		OrganizationID: u.OrganizationID,
		DeclaredRole:   u.Role,
		IsSuperAdmin:   u.IsSuperAdmin,
	}
}
