package perm

// roleTemplates holds the default permission matrix per role. Actors are
// seeded from these at creation and may be overridden individually afterwards.
var roleTemplates = map[Role]PermissionSet{
	RoleModerator: {
		ResourceAnnonces:      {ActionView: true, ActionModerate: true},
		ResourceUsers:         {ActionView: true},
		ResourceStats:         {ActionView: true},
		ResourceNotifications: {ActionView: true},
	},
	RoleAdmin: {
		ResourceAnnonces:      {ActionView: true, ActionModerate: true, ActionDelete: true},
		ResourceUsers:         {ActionView: true, ActionSuspend: true},
		ResourceAdmins:        {ActionView: true, ActionCreate: true},
		ResourceAlerts:        {ActionView: true, ActionBroadcast: true},
		ResourceStats:         {ActionView: true, ActionExport: true},
		ResourceNotifications: {ActionView: true, ActionManage: true},
	},
	RoleSuperAdmin: {
		ResourceAnnonces:      {ActionView: true, ActionModerate: true, ActionDelete: true},
		ResourceUsers:         {ActionView: true, ActionSuspend: true},
		ResourceAdmins:        {ActionView: true, ActionCreate: true, ActionManage: true},
		ResourceAlerts:        {ActionView: true, ActionBroadcast: true},
		ResourceStats:         {ActionView: true, ActionExport: true},
		ResourceNotifications: {ActionView: true, ActionManage: true},
	},
	RolePolice: {
		ResourceAnnonces:      {ActionView: true},
		ResourceUsers:         {ActionView: true},
		ResourceAlerts:        {ActionView: true, ActionBroadcast: true},
		ResourceStats:         {ActionView: true, ActionExport: true},
		ResourceNotifications: {ActionView: true},
	},
	RoleGendarmerie: {
		ResourceAnnonces:      {ActionView: true},
		ResourceUsers:         {ActionView: true},
		ResourceAlerts:        {ActionView: true, ActionBroadcast: true},
		ResourceStats:         {ActionView: true, ActionExport: true},
		ResourceNotifications: {ActionView: true},
	},
}

// DefaultPermissions returns the default permission set for a role as a deep
// copy. An unrecognised role falls back to the moderator template.
func DefaultPermissions(role Role) PermissionSet {
	template, ok := roleTemplates[role]
	if !ok {
		template = roleTemplates[RoleModerator]
	}
	return template.Clone()
}
