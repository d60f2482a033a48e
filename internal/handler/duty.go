package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/firestation-attendance/internal/middleware"
	"github.com/iliyamo/firestation-attendance/internal/model"
	"github.com/iliyamo/firestation-attendance/internal/repository"
	"github.com/iliyamo/firestation-attendance/internal/service"
)

// DutyStore is implemented by *repository.DutyRepo.
type DutyStore interface {
	List(ctx context.Context, f repository.DutyFilter) ([]model.DutyEntry, error)
	GetByID(ctx context.Context, id uint64) (model.DutySchedule, error)
	Create(ctx context.Context, d *model.DutySchedule) error
	Update(ctx context.Context, d model.DutySchedule) error
	Delete(ctx context.Context, id uint64) error
}

// DutyHandler serves /api/duty.
type DutyHandler struct {
	Duties DutyStore
	Logger *zap.Logger
}

type dutyReq struct {
	Title       *string    `json:"title" validate:"omitempty,min=1,max=200"`
	DutyType    *string    `json:"duty_type" validate:"omitempty,min=1,max=50"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	PersonnelID *uint64    `json:"personnel_id" validate:"omitempty,min=1"`
	Notes       *string    `json:"notes"`
}

func (r dutyReq) apply(d *model.DutySchedule) {
	if r.Title != nil {
		d.Title = *r.Title
	}
	if r.DutyType != nil {
		d.DutyType = *r.DutyType
	}
	if r.StartTime != nil {
		d.StartTime = r.StartTime.UTC()
	}
	if r.EndTime != nil {
		d.EndTime = r.EndTime.UTC()
	}
	if r.PersonnelID != nil {
		d.PersonnelID = *r.PersonnelID
	}
	if r.Notes != nil {
		d.Notes = r.Notes
	}
}

// List: GET /api/duty?start_date=&end_date=&personnel_id=
func (h *DutyHandler) List(c echo.Context) error {
	from, to, ok := dateRange(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "dates must be YYYY-MM-DD"})
	}
	f := repository.DutyFilter{From: from, To: to}
	if c.QueryParam("personnel_id") != "" {
		pid, ok := queryID(c, "personnel_id")
		if !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid personnel_id"})
		}
		f.PersonnelID = pid
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	items, err := h.Duties.List(ctx, f)
	if err != nil {
		return writeServiceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, items)
}

// Create: POST /api/duty.  An unknown personnel_id is a 404.
func (h *DutyHandler) Create(c echo.Context) error {
	var req dutyReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	if req.Title == nil || req.DutyType == nil || req.StartTime == nil || req.EndTime == nil || req.PersonnelID == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title, duty_type, start_time, end_time and personnel_id are required"})
	}
	var d model.DutySchedule
	if id := middleware.IdentityFrom(c); id != nil {
		d.CreatedBy = &id.UserID
	}
	req.apply(&d)
	if !d.EndTime.After(d.StartTime) {
		return writeServiceError(c, h.Logger, service.ErrInvalidTimeRange)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Duties.Create(ctx, &d); err != nil {
		return writeServiceError(c, h.Logger, constraint(err, err, service.ErrPersonnelNotFound))
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": d.ID, "message": "duty created"})
}

// Update: PUT /api/duty/:id.  Absent fields keep their value.
func (h *DutyHandler) Update(c echo.Context) error {
	id, ok := idParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid duty id"})
	}
	var req dutyReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	d, err := h.Duties.GetByID(ctx, id)
	if err != nil {
		return writeServiceError(c, h.Logger, notFound(err, service.ErrDutyNotFound))
	}
	req.apply(&d)
	if !d.EndTime.After(d.StartTime) {
		return writeServiceError(c, h.Logger, service.ErrInvalidTimeRange)
	}
	if err := h.Duties.Update(ctx, d); err != nil {
		err = constraint(err, err, service.ErrPersonnelNotFound)
		return writeServiceError(c, h.Logger, notFound(err, service.ErrDutyNotFound))
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "duty updated"})
}

// Delete: DELETE /api/duty/:id
func (h *DutyHandler) Delete(c echo.Context) error {
	id, ok := idParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid duty id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Duties.Delete(ctx, id); err != nil {
		return writeServiceError(c, h.Logger, notFound(err, service.ErrDutyNotFound))
	}
	return c.NoContent(http.StatusNoContent)
}
