package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/firestation-attendance/internal/handler"
	"github.com/iliyamo/firestation-attendance/internal/middleware"
)

// Board groups the handlers for the station's organisational data: groups,
// announcements, news, the calendar and the duty schedule.
type Board struct {
	Groups        *handler.GroupHandler
	Announcements *handler.AnnouncementHandler
	News          *handler.NewsHandler
	Calendar      *handler.CalendarHandler
	Duty          *handler.DutyHandler
}

// RegisterBoard registers the board endpoints.  What the kiosk displays or
// lets members sign up for is open and rate-limited by limit; everything
// else needs a login and a permission.  News may be written by any
// logged-in user.
func RegisterBoard(e *echo.Echo, b Board, jwtSecret string, limit echo.MiddlewareFunc) {
	open := e.Group("/api")
	open.GET("/announcements/active", b.Announcements.Active, limit)
	open.GET("/news", b.News.List, limit)
	open.GET("/news/:id", b.News.Get, limit)
	open.GET("/calendar", b.Calendar.List, limit)
	open.GET("/calendar/:id", b.Calendar.Get, limit)
	open.POST("/calendar/:id/register", b.Calendar.Register, limit)
	open.DELETE("/calendar/:id/unregister/:personnel_id", b.Calendar.Unregister, limit)

	g := e.Group("/api", middleware.JWTAuth(jwtSecret))
	need := middleware.RequirePermission

	// ---- Groups ----
	g.GET("/groups", b.Groups.List, need("groups:read"))
	g.GET("/groups/:id", b.Groups.Get, need("groups:read"))
	g.POST("/groups", b.Groups.Create, need("groups:create"))
	g.PUT("/groups/:id", b.Groups.Update, need("groups:update"))
	g.DELETE("/groups/:id", b.Groups.Delete, need("groups:delete"))

	// ---- Announcements ----
	g.GET("/announcements", b.Announcements.List, need("announcements:read"))
	g.GET("/announcements/:id", b.Announcements.Get, need("announcements:read"))
	g.POST("/announcements", b.Announcements.Create, need("announcements:create"))
	g.PUT("/announcements/:id", b.Announcements.Update, need("announcements:update"))
	g.DELETE("/announcements/:id", b.Announcements.Delete, need("announcements:delete"))

	// ---- News ----
	g.POST("/news", b.News.Create)
	g.PUT("/news/:id", b.News.Update)
	g.DELETE("/news/:id", b.News.Delete)

	// ---- Calendar ----
	g.POST("/calendar", b.Calendar.Create, need("calendar:write"))
	g.PUT("/calendar/:id", b.Calendar.Update, need("calendar:write"))
	g.DELETE("/calendar/:id", b.Calendar.Delete, need("calendar:write"))

	// ---- Duty schedule ----
	g.GET("/duty", b.Duty.List, need("duty:read"))
	g.POST("/duty", b.Duty.Create, need("duty:write"))
	g.PUT("/duty/:id", b.Duty.Update, need("duty:write"))
	g.DELETE("/duty/:id", b.Duty.Delete, need("duty:write"))
}
