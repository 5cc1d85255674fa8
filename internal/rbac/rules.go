package rbac

// Default policy. Ownership checks (an instructor touching only their own
// exam) happen in the handlers; this table only gates by role.
var RolePermissions = map[string][]string{
	"student": {
		"exam:view",
		"submission:create",
		"result:view",
		"profile:*",
	},
	"instructor": {
		"exam:view",
		"exam:create",
		"exam:delete",
		"question:create",
		"analysis:view",
		"result:view",
		"profile:*",
	},
	"admin": {
		"*", // everything
	},
}
