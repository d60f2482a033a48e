package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/firestation-attendance/internal/middleware"
	"github.com/iliyamo/firestation-attendance/internal/model"
	"github.com/iliyamo/firestation-attendance/internal/service"
)

// AnnouncementStore is implemented by *repository.AnnouncementRepo.
type AnnouncementStore interface {
	List(ctx context.Context) ([]model.Announcement, error)
	ListActive(ctx context.Context, now time.Time) ([]model.Announcement, error)
	GetByID(ctx context.Context, id uint64) (model.Announcement, error)
	Create(ctx context.Context, a *model.Announcement) error
	Update(ctx context.Context, a model.Announcement) error
	Delete(ctx context.Context, id uint64) error
}

// AnnouncementHandler serves /api/announcements.  Active announcements are
// public so the kiosk can show them.
type AnnouncementHandler struct {
	Announcements AnnouncementStore
	Logger        *zap.Logger
	Now           func() time.Time // nil means time.Now
}

type announcementReq struct {
	Title        *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Content      *string    `json:"content" validate:"omitempty,min=1"`
	Priority     *string    `json:"priority" validate:"omitempty,oneof=normal high urgent"`
	ValidFrom    *time.Time `json:"valid_from"`
	ValidUntil   *time.Time `json:"valid_until"`
	TargetGroups []uint64   `json:"target_groups"`
}

// apply copies the fields present in the body onto a.
func (r announcementReq) apply(a *model.Announcement) {
	if r.Title != nil {
		a.Title = *r.Title
	}
	if r.Content != nil {
		a.Content = *r.Content
	}
	if r.Priority != nil {
		a.Priority = *r.Priority
	}
	if r.ValidFrom != nil {
		a.ValidFrom = r.ValidFrom.UTC()
	}
	if r.ValidUntil != nil {
		t := r.ValidUntil.UTC()
		a.ValidUntil = &t
	}
	if r.TargetGroups != nil {
		a.TargetGroups = r.TargetGroups
	}
}

func (h *AnnouncementHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

// Active: GET /api/announcements/active
func (h *AnnouncementHandler) Active(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	items, err := h.Announcements.ListActive(ctx, h.now())
	if err != nil {
		return writeServiceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, items)
}

// List: GET /api/announcements
func (h *AnnouncementHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	items, err := h.Announcements.List(ctx)
	if err != nil {
		return writeServiceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, items)
}

// Get: GET /api/announcements/:id
func (h *AnnouncementHandler) Get(c echo.Context) error {
	id, ok := idParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid announcement id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	a, err := h.Announcements.GetByID(ctx, id)
	if err != nil {
		return writeServiceError(c, h.Logger, notFound(err, service.ErrAnnouncementNotFound))
	}
	return c.JSON(http.StatusOK, a)
}

// Create: POST /api/announcements.  Title and content are required;
// valid_from defaults to now and priority to normal.
func (h *AnnouncementHandler) Create(c echo.Context) error {
	var req announcementReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	if req.Title == nil || req.Content == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title and content are required"})
	}
	a := model.Announcement{Priority: model.PriorityNormal, ValidFrom: h.now()}
	if id := middleware.IdentityFrom(c); id != nil {
		a.CreatedBy = &id.UserID
	}
	req.apply(&a)
	if a.ValidUntil != nil && a.ValidUntil.Before(a.ValidFrom) {
		return writeServiceError(c, h.Logger, service.ErrInvalidTimeRange)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Announcements.Create(ctx, &a); err != nil {
		return writeServiceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusCreated, a)
}

// Update: PUT /api/announcements/:id.  Absent fields keep their value.
func (h *AnnouncementHandler) Update(c echo.Context) error {
	id, ok := idParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid announcement id"})
	}
	var req announcementReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	a, err := h.Announcements.GetByID(ctx, id)
	if err != nil {
		return writeServiceError(c, h.Logger, notFound(err, service.ErrAnnouncementNotFound))
	}
	req.apply(&a)
	if a.ValidUntil != nil && a.ValidUntil.Before(a.ValidFrom) {
		return writeServiceError(c, h.Logger, service.ErrInvalidTimeRange)
	}
	if err := h.Announcements.Update(ctx, a); err != nil {
		return writeServiceError(c, h.Logger, notFound(err, service.ErrAnnouncementNotFound))
	}
	return c.JSON(http.StatusOK, a)
}

// Delete: DELETE /api/announcements/:id
func (h *AnnouncementHandler) Delete(c echo.Context) error {
	id, ok := idParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid announcement id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Announcements.Delete(ctx, id); err != nil {
		return writeServiceError(c, h.Logger, notFound(err, service.ErrAnnouncementNotFound))
	}
	return c.NoContent(http.StatusNoContent)
}
