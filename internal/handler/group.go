package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/firestation-attendance/internal/model"
	"github.com/iliyamo/firestation-attendance/internal/service"
)

// GroupStore is implemented by *repository.GroupRepo.
type GroupStore interface {
	List(ctx context.Context) ([]model.Group, error)
	GetByID(ctx context.Context, id uint64) (model.Group, error)
	Create(ctx context.Context, g *model.Group) error
	Update(ctx context.Context, g model.Group) error
	Delete(ctx context.Context, id uint64) error
}

// GroupHandler serves /api/groups.
type GroupHandler struct {
	Groups GroupStore
	Logger *zap.Logger
}

type groupReq struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Description *string `json:"description" validate:"omitempty,max=255"`
	Color       *string `json:"color" validate:"omitempty,max=20"`
}

func (r groupReq) apply(g *model.Group) {
	g.Name = strings.TrimSpace(r.Name)
	g.Description = r.Description
	g.Color = r.Color
}

// List: GET /api/groups
func (h *GroupHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	groups, err := h.Groups.List(ctx)
	if err != nil {
		return writeServiceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, groups)
}

// Get: GET /api/groups/:id
func (h *GroupHandler) Get(c echo.Context) error {
	id, ok := idParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid group id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	g, err := h.Groups.GetByID(ctx, id)
	if err != nil {
		return writeServiceError(c, h.Logger, notFound(err, service.ErrGroupNotFound))
	}
	return c.JSON(http.StatusOK, g)
}

// Create: POST /api/groups
func (h *GroupHandler) Create(c echo.Context) error {
	var req groupReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	var g model.Group
	req.apply(&g)

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Groups.Create(ctx, &g); err != nil {
		return writeServiceError(c, h.Logger, constraint(err, service.ErrDuplicateGroup, err))
	}
	return c.JSON(http.StatusCreated, g)
}

// Update: PUT /api/groups/:id
func (h *GroupHandler) Update(c echo.Context) error {
	id, ok := idParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid group id"})
	}
	var req groupReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	g := model.Group{ID: id}
	req.apply(&g)

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Groups.Update(ctx, g); err != nil {
		err = constraint(err, service.ErrDuplicateGroup, err)
		return writeServiceError(c, h.Logger, notFound(err, service.ErrGroupNotFound))
	}
	g, err := h.Groups.GetByID(ctx, id)
	if err != nil {
		return writeServiceError(c, h.Logger, notFound(err, service.ErrGroupNotFound))
	}
	return c.JSON(http.StatusOK, g)
}

// Delete: DELETE /api/groups/:id.  Members stay, without a group.
func (h *GroupHandler) Delete(c echo.Context) error {
	id, ok := idParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid group id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Groups.Delete(ctx, id); err != nil {
		return writeServiceError(c, h.Logger, notFound(err, service.ErrGroupNotFound))
	}
	return c.NoContent(http.StatusNoContent)
}
