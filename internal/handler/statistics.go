package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/firestation-attendance/internal/service"
)

// StatsReports is implemented by *service.StatisticsService.
type StatsReports interface {
	PersonnelYearly(ctx context.Context, personnelID uint64, year int) (service.PersonnelYearly, error)
	UnitYearly(ctx context.Context, year int) (service.UnitYearly, error)
	History(ctx context.Context, personnelID uint64, start, end *time.Time) (service.History, error)
}

// StatisticsHandler serves /api/statistics.
type StatisticsHandler struct {
	Reports StatsReports
	Logger  *zap.Logger
}

const dateLayout = "2006-01-02"

// PersonnelYearly: GET /api/statistics/personnel/:id/yearly?year=
func (h *StatisticsHandler) PersonnelYearly(c echo.Context) error {
	id, ok := idParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid personnel id"})
	}
	year, ok := yearParam(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid year"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	out, err := h.Reports.PersonnelYearly(ctx, id, year)
	if err != nil {
		return writeServiceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, out)
}

// UnitYearly: GET /api/statistics/unit/yearly?year=
func (h *StatisticsHandler) UnitYearly(c echo.Context) error {
	year, ok := yearParam(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid year"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	out, err := h.Reports.UnitYearly(ctx, year)
	if err != nil {
		return writeServiceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, out)
}

// History: GET /api/statistics/personnel/:id/history?start_date=&end_date=
// Dates are YYYY-MM-DD.
func (h *StatisticsHandler) History(c echo.Context) error {
	id, ok := idParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid personnel id"})
	}
	start, err := dateQuery(c, "start_date")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "start_date must be YYYY-MM-DD"})
	}
	end, err := dateQuery(c, "end_date")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "end_date must be YYYY-MM-DD"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	out, err := h.Reports.History(ctx, id, start, end)
	if err != nil {
		return writeServiceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, out)
}

// yearParam returns 0 when ?year is absent so the service picks the
// current year.
func yearParam(c echo.Context) (int, bool) {
	if c.QueryParam("year") == "" {
		return 0, true
	}
	y := queryInt(c, "year", -1)
	return y, y >= 2000 && y <= 2100
}

func dateQuery(c echo.Context, name string) (*time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, raw, time.UTC)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
