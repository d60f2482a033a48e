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

// NewsStore is implemented by *repository.NewsRepo.
type NewsStore interface {
	List(ctx context.Context, activeOnly bool, now time.Time, skip, limit int) ([]model.News, error)
	GetByID(ctx context.Context, id uint64) (model.News, error)
	Create(ctx context.Context, n *model.News) error
	Update(ctx context.Context, n model.News) error
	Delete(ctx context.Context, id uint64) error
}

// NewsHandler serves /api/news.  Reading is public; writing needs a login.
type NewsHandler struct {
	News   NewsStore
	Logger *zap.Logger
	Now    func() time.Time // nil means time.Now
}

const defaultNewsLimit = 50

type newsReq struct {
	Title     *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Content   *string    `json:"content" validate:"omitempty,min=1"`
	Priority  *string    `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	ExpiresAt *time.Time `json:"expires_at"`
	IsActive  *bool      `json:"is_active"`
}

func (r newsReq) apply(n *model.News) {
	if r.Title != nil {
		n.Title = *r.Title
	}
	if r.Content != nil {
		n.Content = *r.Content
	}
	if r.Priority != nil {
		n.Priority = *r.Priority
	}
	if r.ExpiresAt != nil {
		t := r.ExpiresAt.UTC()
		n.ExpiresAt = &t
	}
	if r.IsActive != nil {
		n.IsActive = *r.IsActive
	}
}

func (h *NewsHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

// List: GET /api/news?active_only=&skip=&limit=.  active_only defaults to
// true.
func (h *NewsHandler) List(c echo.Context) error {
	skip := queryInt(c, "skip", 0)
	limit := queryInt(c, "limit", defaultNewsLimit)
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 || limit > maxListLimit {
		limit = defaultNewsLimit
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	items, err := h.News.List(ctx, queryBool(c, "active_only", true), h.now(), skip, limit)
	if err != nil {
		return writeServiceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, items)
}

// Get: GET /api/news/:id
func (h *NewsHandler) Get(c echo.Context) error {
	id, ok := idParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid news id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	n, err := h.News.GetByID(ctx, id)
	if err != nil {
		return writeServiceError(c, h.Logger, notFound(err, service.ErrNewsNotFound))
	}
	return c.JSON(http.StatusOK, n)
}

// Create: POST /api/news.  The author is the logged-in username.
func (h *NewsHandler) Create(c echo.Context) error {
	var req newsReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	if req.Title == nil || req.Content == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title and content are required"})
	}
	n := model.News{Priority: model.PriorityNormal, IsActive: true}
	if id := middleware.IdentityFrom(c); id != nil {
		n.CreatedBy = id.Username
	}
	req.apply(&n)

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.News.Create(ctx, &n); err != nil {
		return writeServiceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusCreated, n)
}

// Update: PUT /api/news/:id.  Absent fields keep their value.
func (h *NewsHandler) Update(c echo.Context) error {
	id, ok := idParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid news id"})
	}
	var req newsReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	n, err := h.News.GetByID(ctx, id)
	if err != nil {
		return writeServiceError(c, h.Logger, notFound(err, service.ErrNewsNotFound))
	}
	req.apply(&n)
	if err := h.News.Update(ctx, n); err != nil {
		return writeServiceError(c, h.Logger, notFound(err, service.ErrNewsNotFound))
	}
	return c.JSON(http.StatusOK, n)
}

// Delete: DELETE /api/news/:id
func (h *NewsHandler) Delete(c echo.Context) error {
	id, ok := idParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid news id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.News.Delete(ctx, id); err != nil {
		return writeServiceError(c, h.Logger, notFound(err, service.ErrNewsNotFound))
	}
	return c.NoContent(http.StatusNoContent)
}
