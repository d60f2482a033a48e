package auth

import (
	"errors"
	"strings"
)

// ErrForbidden is returned by RequirePermission when the role lacks the
// requested permission.
var ErrForbidden = errors.New("forbidden")

var rolePermissions = map[string][]string{
	RoleAdmin: {"*"},
	RoleWehrfuehrer: {
		"personnel:*",
		"sessions:*",
		"reports:export",
		"backup:create",
		"settings:*",
		"announcements:*",
		"groups:*",
		"trainings:*",
	},
	RoleGruppenfuehrer: {
		"personnel:read",
		"sessions:end",
		"reports:export",
		"announcements:read",
	},
	RoleMitglied: {
		"personnel:read:own",
		"attendance:read:own",
	},
}

// HasPermission reports whether role grants permission.  A granted "*"
// allows everything, an exact match allows, and a granted "ns:*" allows any
// permission starting with "ns:".
func HasPermission(role, permission string) bool {
	for _, granted := range rolePermissions[role] {
		if granted == "*" || granted == permission {
			return true
		}
		if prefix, ok := strings.CutSuffix(granted, "*"); ok && strings.HasSuffix(prefix, ":") {
			if strings.HasPrefix(permission, prefix) {
				return true
			}
		}
	}
	return false
}

// RequirePermission returns ErrForbidden unless id's role grants permission.
func RequirePermission(id Identity, permission string) error {
	if !HasPermission(id.Role, permission) {
		return ErrForbidden
	}
	return nil
}
