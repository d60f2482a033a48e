package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AttendanceHandler serves the kiosk check-in endpoints under /api/attendance.
type AttendanceHandler struct {
	Ops       AttendanceOps
	Attendees AttendeeQueries
	Logger    *zap.Logger
}

type rollReq struct {
	SessionID         uint64 `json:"session_id" validate:"required"`
	Stammrollennummer string `json:"stammrollennummer" validate:"required"`
}

type validateTokenReq struct {
	Token string `json:"token" validate:"required"`
}

// CheckIn records arrival of the member with the given roll number.
func (h *AttendanceHandler) CheckIn(c echo.Context) error {
	var req rollReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	res, err := h.Ops.CheckIn(ctx, req.SessionID, req.Stammrollennummer)
	if err != nil {
		return writeServiceError(c, h.Logger, err)
	}
	p := res.Personnel
	return c.JSON(http.StatusOK, echo.Map{
		"message":       "checked in",
		"attendance_id": res.Attendance.ID,
		"personnel": echo.Map{
			"id":         p.ID,
			"vorname":    p.Vorname,
			"nachname":   p.Nachname,
			"dienstgrad": res.RankName,
		},
		"checked_in_at": res.Attendance.CheckedInAt,
	})
}

// CheckOut records departure.  Deactivated members may still check out.
func (h *AttendanceHandler) CheckOut(c echo.Context) error {
	var req rollReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	res, err := h.Ops.CheckOut(ctx, req.SessionID, req.Stammrollennummer)
	if err != nil {
		return writeServiceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "checked out",
		"personnel": echo.Map{
			"vorname":  res.Personnel.Vorname,
			"nachname": res.Personnel.Nachname,
		},
		"checked_out_at": res.Attendance.CheckedOutAt,
	})
}

// Active lists who is currently checked in to a session.
func (h *AttendanceHandler) Active(c echo.Context) error {
	id, ok := idParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	atts, err := h.Attendees.ListBySession(ctx, id, true)
	if err != nil {
		return writeServiceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, atts)
}

// ValidateToken resolves a scanned QR token.  Every failure reads the same
// so the kiosk cannot learn which sessions exist.
func (h *AttendanceHandler) ValidateToken(c echo.Context) error {
	var req validateTokenReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	id, err := h.Ops.ValidateQrCheckin(ctx, req.Token)
	if err != nil {
		return writeServiceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"valid": true, "session_id": id})
}
