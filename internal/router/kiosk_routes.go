package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/firestation-attendance/internal/handler"
	"github.com/iliyamo/firestation-attendance/internal/middleware"
)

// RegisterKiosk registers the endpoints the station kiosk calls without
// logging in.  Every route passes through limit.  Session creation also
// accepts a bearer token so staff-created sessions record their creator.
func RegisterKiosk(e *echo.Echo, s *handler.SessionHandler, a *handler.AttendanceHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/api")

	g.POST("/sessions", s.Create, limit, middleware.OptionalAuth(jwtSecret))
	g.GET("/sessions/active/current", s.ActiveCurrent, limit)
	g.POST("/sessions/:id/end-with-rank", s.EndWithRank, limit)

	g.POST("/attendance/checkin", a.CheckIn, limit)
	g.POST("/attendance/checkout", a.CheckOut, limit)
	g.POST("/attendance/validate-token", a.ValidateToken, limit)
	g.GET("/attendance/session/:id/active", a.Active, limit)
}
