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

// PersonnelStore is implemented by *repository.PersonnelRepo.
type PersonnelStore interface {
	GetByID(ctx context.Context, id uint64) (model.Personnel, error)
	List(ctx context.Context, activeOnly bool) ([]model.Personnel, error)
	Create(ctx context.Context, p *model.Personnel) error
	Update(ctx context.Context, p model.Personnel) error
	Deactivate(ctx context.Context, id uint64) error
}

// PersonnelHandler serves /api/personnel.
type PersonnelHandler struct {
	Personnel PersonnelStore
	Logger    *zap.Logger
}

type personnelReq struct {
	Stammrollennummer string  `json:"stammrollennummer" validate:"required,max=50"`
	Vorname           string  `json:"vorname" validate:"required,max=100"`
	Nachname          string  `json:"nachname" validate:"required,max=100"`
	Dienstgrad        string  `json:"dienstgrad" validate:"required"`
	GroupID           *uint64 `json:"group_id"`
	IsActive          *bool   `json:"is_active"`
}

type personnelResp struct {
	model.Personnel
	DienstgradName string `json:"dienstgrad_name"`
}

func newPersonnelResp(p model.Personnel) personnelResp {
	return personnelResp{Personnel: p, DienstgradName: model.RankName(p.Dienstgrad)}
}

var errRollTaken = &service.Error{Kind: service.KindValidation, Code: "duplicate_stammrollennummer", Message: "stammrollennummer already exists"}

// apply copies the body onto p.  It returns false for unknown rank codes.
func (r personnelReq) apply(p *model.Personnel) bool {
	if _, level := model.RankInfo(strings.TrimSpace(r.Dienstgrad)); level == 0 {
		return false
	}
	p.Stammrollennummer = strings.TrimSpace(r.Stammrollennummer)
	p.Vorname = strings.TrimSpace(r.Vorname)
	p.Nachname = strings.TrimSpace(r.Nachname)
	p.Dienstgrad = strings.TrimSpace(r.Dienstgrad)
	p.GroupID = r.GroupID
	if r.IsActive != nil {
		p.IsActive = *r.IsActive
	}
	return true
}

// List: GET /api/personnel?active_only=
func (h *PersonnelHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	items, err := h.Personnel.List(ctx, queryBool(c, "active_only", false))
	if err != nil {
		return writeServiceError(c, h.Logger, err)
	}
	out := make([]personnelResp, 0, len(items))
	for _, p := range items {
		out = append(out, newPersonnelResp(p))
	}
	return c.JSON(http.StatusOK, out)
}

// Get: GET /api/personnel/:id
func (h *PersonnelHandler) Get(c echo.Context) error {
	id, ok := idParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid personnel id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	p, err := h.Personnel.GetByID(ctx, id)
	if err != nil {
		return writeServiceError(c, h.Logger, notFound(err, service.ErrPersonnelNotFound))
	}
	return c.JSON(http.StatusOK, newPersonnelResp(p))
}

// Create: POST /api/personnel
func (h *PersonnelHandler) Create(c echo.Context) error {
	var req personnelReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	p := model.Personnel{IsActive: true}
	if !req.apply(&p) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown dienstgrad"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Personnel.Create(ctx, &p); err != nil {
		return writeServiceError(c, h.Logger, constraint(err, errRollTaken, service.ErrUnknownGroup))
	}
	return c.JSON(http.StatusCreated, newPersonnelResp(p))
}

// Update: PUT /api/personnel/:id
func (h *PersonnelHandler) Update(c echo.Context) error {
	id, ok := idParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid personnel id"})
	}
	var req personnelReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	p, err := h.Personnel.GetByID(ctx, id)
	if err != nil {
		return writeServiceError(c, h.Logger, notFound(err, service.ErrPersonnelNotFound))
	}
	if !req.apply(&p) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown dienstgrad"})
	}
	if err := h.Personnel.Update(ctx, p); err != nil {
		err = constraint(err, errRollTaken, service.ErrUnknownGroup)
		return writeServiceError(c, h.Logger, notFound(err, service.ErrPersonnelNotFound))
	}
	return c.JSON(http.StatusOK, newPersonnelResp(p))
}

// Delete: DELETE /api/personnel/:id deactivates the member.  Attendance
// history is kept.
func (h *PersonnelHandler) Delete(c echo.Context) error {
	id, ok := idParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid personnel id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Personnel.Deactivate(ctx, id); err != nil {
		return writeServiceError(c, h.Logger, notFound(err, service.ErrPersonnelNotFound))
	}
	return c.NoContent(http.StatusNoContent)
}
