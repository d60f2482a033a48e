package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/firestation-attendance/internal/auth"
)

// identityKey is the echo context key JWTAuth and OptionalAuth store the
// caller under.
const identityKey = "identity"

// IdentityFrom returns the authenticated caller, or nil on anonymous
// (kiosk) requests.
func IdentityFrom(c echo.Context) *auth.Identity {
	id, _ := c.Get(identityKey).(*auth.Identity)
	return id
}

// userID returns the caller's id for rate limit and cache keys, "anon"
// when nobody is logged in.
func userID(c echo.Context) string {
	if id := IdentityFrom(c); id != nil {
		return strconv.FormatUint(id.UserID, 10)
	}
	return "anon"
}

// userRole returns the caller's role, "anon" when nobody is logged in.
func userRole(c echo.Context) string {
	if id := IdentityFrom(c); id != nil {
		return id.Role
	}
	return "anon"
}
