package rbac

// Default policy. Admin and student surfaces are disjoint: an admin
// token gets 403 on student routes, matching the portal's wrong-role
// redirect behavior.
var RolePermissions = map[string][]string{
	"student": {
		"quiz:take",
		"attempt:save",
		"attempt:submit",
		"attempt:abandon",
		"attempt:view-own",
		"progress:view",
	},
	"admin": {
		"pdf:*",
		"quiz:manage",
		"question:manage",
		"analytics:view",
	},
}
