package perm

import "github.com/google/uuid"

// Role is an administrative role name.
type Role string

const (
	// RoleModerator handles day-to-day listing moderation.
	RoleModerator Role = "moderator"
	// RoleAdmin manages moderators and platform settings.
	RoleAdmin Role = "admin"
	// RoleSuperAdmin bypasses every permission check.
	RoleSuperAdmin Role = "super-admin"
	// RolePolice is a law-enforcement account.
	RolePolice Role = "police"
	// RoleGendarmerie is a law-enforcement account.
	RoleGendarmerie Role = "gendarmerie"
)

// Roles lists every known role.
func Roles() []Role {
	return []Role{RoleModerator, RoleAdmin, RoleSuperAdmin, RolePolice, RoleGendarmerie}
}

// ParseRole normalises a raw role string. The boolean reports whether the
// role is one of the known values.
func ParseRole(raw string) (Role, bool) {
	switch Role(raw) {
	case RoleModerator, RoleAdmin, RoleSuperAdmin, RolePolice, RoleGendarmerie:
		return Role(raw), true
	}
	return "", false
}

// Status is an account life-cycle status.
type Status string

const (
	// StatusActive marks a usable account.
	StatusActive Status = "active"
	// StatusInactive marks a disabled account.
	StatusInactive Status = "inactive"
	// StatusPending marks an account awaiting activation.
	StatusPending Status = "pending"
)

// ActionType identifies a sensitive action category.
type ActionType string

const (
	// ActionAnnonceDeletion is the removal of a published listing.
	ActionAnnonceDeletion ActionType = "annonce-deletion"
	// ActionAdminCreation is the creation of a new administrative account.
	ActionAdminCreation ActionType = "admin-creation"
	// ActionPermissionChange is a change to an actor's permission set.
	ActionPermissionChange ActionType = "permission-change"
	// ActionAlertBroadcast is a platform-wide alert emission.
	ActionAlertBroadcast ActionType = "alert-broadcast"
)

// PermissionSet maps resource name to action name to granted flag.
type PermissionSet map[string]map[string]bool

// Clone returns a deep copy of the set.
func (p PermissionSet) Clone() PermissionSet {
	if p == nil {
		return nil
	}
	out := make(PermissionSet, len(p))
	for resource, actions := range p {
		copied := make(map[string]bool, len(actions))
		for action, granted := range actions {
			copied[action] = granted
		}
		out[resource] = copied
	}
	return out
}

// Identity is the trusted actor tuple supplied by the authentication layer.
type Identity struct {
	ID          uuid.UUID
	Role        Role
	Status      Status
	Permissions PermissionSet
}

// Resource names used by the permission matrix.
const (
	ResourceAnnonces      = "annonces"
	ResourceUsers         = "users"
	ResourceAdmins        = "admins"
	ResourceAlerts        = "alerts"
	ResourceStats         = "stats"
	ResourceNotifications = "notifications"
)

// Action names used by the permission matrix.
const (
	ActionView      = "view"
	ActionModerate  = "moderate"
	ActionDelete    = "delete"
	ActionSuspend   = "suspend"
	ActionCreate    = "create"
	ActionManage    = "manage"
	ActionBroadcast = "broadcast"
	ActionExport    = "export"
)
