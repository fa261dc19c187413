// Package perm decides what an administrative actor may do. All decisions are
// pure functions of the supplied identity; the package performs no I/O and is
// safe for concurrent use without synchronisation.
package perm

// criticalActions lists the action types that require deferred validation by a
// super-admin before they are considered resolved.
var criticalActions = map[ActionType]struct{}{
	ActionAnnonceDeletion:  {},
	ActionAdminCreation:    {},
	ActionPermissionChange: {},
	ActionAlertBroadcast:   {},
}

// HasPermission reports whether the identity may perform action on resource.
// Super-admins pass unconditionally. A missing resource or action key means
// denied, never an error.
func HasPermission(id Identity, resource, action string) bool {
	if id.Role == RoleSuperAdmin {
		return true
	}
	actions, ok := id.Permissions[resource]
	if !ok {
		return false
	}
	return actions[action]
}

// RequiresValidation reports whether the action type must be held pending
// until a super-admin approves it. Super-admins bypass deferred validation.
func RequiresValidation(id Identity, t ActionType) bool {
	if id.Role == RoleSuperAdmin {
		return false
	}
	_, critical := criticalActions[t]
	return critical
}

// IsCriticalAction reports whether t belongs to the fixed critical set,
// independent of any actor.
func IsCriticalAction(t ActionType) bool {
	_, ok := criticalActions[t]
	return ok
}

// CanManageAdmins reports whether the identity may resolve pending action
// records: super-admins, or holders of the explicit admins/manage permission.
func CanManageAdmins(id Identity) bool {
	if id.Role == RoleSuperAdmin {
		return true
	}
	return HasPermission(id, ResourceAdmins, ActionManage)
}
