// Package auth holds the caller identity and the role permission table used
// to gate privileged operations.
package auth

// Identity is the authenticated caller of a request.  Staff accounts and
// personnel-linked accounts share this shape; PersonnelID is set only for
// the latter.
type Identity struct {
	UserID      uint64
	Username    string
	Role        string
	PersonnelID *uint64
}

// Roles known to the permission table.
const (
	RoleAdmin          = "admin"
	RoleWehrfuehrer    = "wehrfuehrer"
	RoleGruppenfuehrer = "gruppenfuehrer"
	RoleMitglied       = "mitglied"
)

// ValidRole reports whether role has an entry in the permission table.
func ValidRole(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}
