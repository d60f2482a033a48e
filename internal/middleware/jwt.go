package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/firestation-attendance/internal/auth"
	"github.com/iliyamo/firestation-attendance/internal/utils"
)

// JWTAuth validates a Bearer access token and stores the caller as an
// *auth.Identity (see IdentityFrom).  The subject and role are also set as
// "user_id" and "role" for handlers that only need those.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearer(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			if !authenticate(c, secret, raw) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			return next(c)
		}
	}
}

// OptionalAuth is JWTAuth for routes the kiosk may call anonymously.  A
// request without Authorization passes with no identity; a present but
// invalid token is still rejected so a stale staff session never silently
// downgrades to kiosk rights.
func OptionalAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get(echo.HeaderAuthorization) == "" {
				return next(c)
			}
			raw, ok := bearer(c)
			if !ok || !authenticate(c, secret, raw) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			return next(c)
		}
	}
}

func bearer(c echo.Context) (string, bool) {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	return raw, raw != ""
}

func authenticate(c echo.Context, secret, raw string) bool {
	claims, err := utils.ParseAccessToken(secret, raw)
	if err != nil {
		return false
	}
	uid, _ := claims.UserID() // checked by ParseAccessToken
	c.Set(identityKey, &auth.Identity{
		UserID:      uid,
		Username:    claims.Username,
		Role:        claims.Role,
		PersonnelID: claims.PersonnelID,
	})
	c.Set("user_id", claims.Subject)
	c.Set("role", claims.Role)
	return true
}
