package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/firestation-attendance/internal/middleware"
	"github.com/iliyamo/firestation-attendance/internal/model"
	"github.com/iliyamo/firestation-attendance/internal/repository"
	"github.com/iliyamo/firestation-attendance/internal/service"
)

// CalendarStore is implemented by *repository.CalendarRepo.
type CalendarStore interface {
	List(ctx context.Context, f repository.CalendarFilter) ([]model.CalendarEvent, error)
	GetByID(ctx context.Context, id uint64) (model.CalendarEvent, error)
	Participants(ctx context.Context, eventID uint64) ([]model.EventParticipant, error)
	Create(ctx context.Context, e *model.CalendarEvent) error
	Update(ctx context.Context, e model.CalendarEvent) error
	Delete(ctx context.Context, id uint64) error
	Register(ctx context.Context, eventID, personnelID uint64, notes *string) error
	Unregister(ctx context.Context, eventID, personnelID uint64) error
}

// CalendarHandler serves /api/calendar.  Reading and (un)registering are
// open to the kiosk; managing events needs calendar:write.
type CalendarHandler struct {
	Events CalendarStore
	Logger *zap.Logger
}

type eventReq struct {
	Title                *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Description          *string    `json:"description"`
	EventType            *string    `json:"event_type" validate:"omitempty,min=1,max=50"`
	StartTime            *time.Time `json:"start_time"`
	EndTime              *time.Time `json:"end_time"`
	Location             *string    `json:"location" validate:"omitempty,max=200"`
	AllDay               *bool      `json:"all_day"`
	Recurrence           *string    `json:"recurrence" validate:"omitempty,max=50"`
	MaxParticipants      *int       `json:"max_participants" validate:"omitempty,min=0"`
	RegistrationRequired *bool      `json:"registration_required"`
}

func (r eventReq) apply(e *model.CalendarEvent) {
	if r.Title != nil {
		e.Title = *r.Title
	}
	if r.Description != nil {
		e.Description = r.Description
	}
	if r.EventType != nil {
		e.EventType = *r.EventType
	}
	if r.StartTime != nil {
		e.StartTime = r.StartTime.UTC()
	}
	if r.EndTime != nil {
		e.EndTime = r.EndTime.UTC()
	}
	if r.Location != nil {
		e.Location = r.Location
	}
	if r.AllDay != nil {
		e.AllDay = *r.AllDay
	}
	if r.Recurrence != nil {
		e.Recurrence = *r.Recurrence
	}
	if r.MaxParticipants != nil {
		e.MaxParticipants = r.MaxParticipants
	}
	if r.RegistrationRequired != nil {
		e.RegistrationRequired = *r.RegistrationRequired
	}
}

type registerReq struct {
	PersonnelID uint64  `json:"personnel_id" validate:"required"`
	Notes       *string `json:"notes"`
}

type eventDetail struct {
	model.CalendarEvent
	Participants []model.EventParticipant `json:"participants"`
}

// List: GET /api/calendar?start_date=&end_date=&event_type=
func (h *CalendarHandler) List(c echo.Context) error {
	from, to, ok := dateRange(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "dates must be YYYY-MM-DD"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	events, err := h.Events.List(ctx, repository.CalendarFilter{From: from, To: to, EventType: c.QueryParam("event_type")})
	if err != nil {
		return writeServiceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, events)
}

// Get: GET /api/calendar/:id returns the event with its participants.
func (h *CalendarHandler) Get(c echo.Context) error {
	id, ok := idParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	e, err := h.Events.GetByID(ctx, id)
	if err != nil {
		return writeServiceError(c, h.Logger, notFound(err, service.ErrEventNotFound))
	}
	ps, err := h.Events.Participants(ctx, id)
	if err != nil {
		return writeServiceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, eventDetail{CalendarEvent: e, Participants: ps})
}

// Create: POST /api/calendar
func (h *CalendarHandler) Create(c echo.Context) error {
	var req eventReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	if req.Title == nil || req.EventType == nil || req.StartTime == nil || req.EndTime == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title, event_type, start_time and end_time are required"})
	}
	e := model.CalendarEvent{Recurrence: "none"}
	if id := middleware.IdentityFrom(c); id != nil {
		e.CreatedBy = &id.UserID
	}
	req.apply(&e)
	if e.EndTime.Before(e.StartTime) {
		return writeServiceError(c, h.Logger, service.ErrInvalidTimeRange)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Events.Create(ctx, &e); err != nil {
		return writeServiceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusCreated, e)
}

// Update: PUT /api/calendar/:id.  Absent fields keep their value.
func (h *CalendarHandler) Update(c echo.Context) error {
	id, ok := idParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	var req eventReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	e, err := h.Events.GetByID(ctx, id)
	if err != nil {
		return writeServiceError(c, h.Logger, notFound(err, service.ErrEventNotFound))
	}
	req.apply(&e)
	if e.EndTime.Before(e.StartTime) {
		return writeServiceError(c, h.Logger, service.ErrInvalidTimeRange)
	}
	if err := h.Events.Update(ctx, e); err != nil {
		return writeServiceError(c, h.Logger, notFound(err, service.ErrEventNotFound))
	}
	return c.JSON(http.StatusOK, e)
}

// Delete: DELETE /api/calendar/:id
func (h *CalendarHandler) Delete(c echo.Context) error {
	id, ok := idParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Events.Delete(ctx, id); err != nil {
		return writeServiceError(c, h.Logger, notFound(err, service.ErrEventNotFound))
	}
	return c.NoContent(http.StatusNoContent)
}

// Register: POST /api/calendar/:id/register
func (h *CalendarHandler) Register(c echo.Context) error {
	id, ok := idParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	var req registerReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	err := h.Events.Register(ctx, id, req.PersonnelID, req.Notes)
	switch {
	case err == nil:
		return c.JSON(http.StatusCreated, echo.Map{"message": "registered", "event_id": id, "personnel_id": req.PersonnelID})
	case errors.Is(err, repository.ErrFull):
		err = service.ErrEventFull
	default:
		err = constraint(err, service.ErrAlreadyRegistered, service.ErrPersonnelNotFound)
		err = notFound(err, service.ErrEventNotFound)
	}
	return writeServiceError(c, h.Logger, err)
}

// Unregister: DELETE /api/calendar/:id/unregister/:personnel_id
func (h *CalendarHandler) Unregister(c echo.Context) error {
	id, ok := idParam(c, "id")
	pid, ok2 := idParam(c, "personnel_id")
	if !ok || !ok2 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Events.Unregister(ctx, id, pid); err != nil {
		return writeServiceError(c, h.Logger, notFound(err, service.ErrRegistrationNotFound))
	}
	return c.NoContent(http.StatusNoContent)
}

// dateRange reads ?start_date and ?end_date as whole days in UTC.  The
// returned upper bound is exclusive, so end_date includes its whole day.
func dateRange(c echo.Context) (from, to *time.Time, ok bool) {
	from, err := dateQuery(c, "start_date")
	if err != nil {
		return nil, nil, false
	}
	end, err := dateQuery(c, "end_date")
	if err != nil {
		return nil, nil, false
	}
	if end != nil {
		t := end.AddDate(0, 0, 1)
		to = &t
	}
	return from, to, true
}
