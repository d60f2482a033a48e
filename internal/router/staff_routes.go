package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/firestation-attendance/internal/handler"
	"github.com/iliyamo/firestation-attendance/internal/middleware"
)

// RegisterStaff registers endpoints that need a logged-in user.  Each
// route names the permission it needs; statistics responses go through
// cache.
func RegisterStaff(e *echo.Echo, s *handler.SessionHandler, st *handler.StatisticsHandler, p *handler.PersonnelHandler, jwtSecret string, cache echo.MiddlewareFunc) {
	g := e.Group("/api", middleware.JWTAuth(jwtSecret))
	need := middleware.RequirePermission

	// ---- Sessions ----
	g.GET("/sessions", s.List)
	g.GET("/sessions/:id", s.Get)
	g.POST("/sessions/:id/end", s.End, need("sessions:end"))
	g.GET("/sessions/:id/qr", s.QR, need("sessions:create"))

	// ---- Statistics ----
	g.GET("/statistics/personnel/:id/yearly", st.PersonnelYearly, need("reports:export"), cache)
	g.GET("/statistics/personnel/:id/history", st.History, need("reports:export"), cache)
	g.GET("/statistics/unit/yearly", st.UnitYearly, need("reports:export"), cache)

	// ---- Personnel ----
	g.GET("/personnel", p.List, need("personnel:read"))
	g.GET("/personnel/:id", p.Get, need("personnel:read"))
	g.POST("/personnel", p.Create, need("personnel:create"))
	g.PUT("/personnel/:id", p.Update, need("personnel:update"))
	g.DELETE("/personnel/:id", p.Delete, need("personnel:delete"))
}
