package actors

import (
	"time"

	"github.com/google/uuid"

	"github.com/retrouvio/retrouvio/internal/perm"
)

// Actor represents an administrative account in the directory. Account
// creation and credentials live with the identity collaborator; this
// directory carries what authorization and broadcast resolution need.
type Actor struct {
	ID          uuid.UUID
	Email       string
	Name        string
	Role        perm.Role
	Status      perm.Status
	Permissions perm.PermissionSet
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Identity returns the trusted tuple handed to the permission engine.
func (a Actor) Identity() perm.Identity {
	return perm.Identity{
		ID:          a.ID,
		Role:        a.Role,
		Status:      a.Status,
		Permissions: a.Permissions,
	}
}
