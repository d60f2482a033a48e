package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/firestation-attendance/internal/service"
)

// statusFor maps a domain error kind to its HTTP status.
func statusFor(k service.Kind) int {
	switch k {
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindAuthorization:
		return http.StatusForbidden
	default: // invalid state, validation, token
		return http.StatusBadRequest
	}
}

// writeServiceError renders err as {"error", "code"}.  Domain errors keep
// their message; anything else is a storage failure, logged and reported
// as a generic 500.
func writeServiceError(c echo.Context, logger *zap.Logger, err error) error {
	if e, ok := service.AsError(err); ok {
		return c.JSON(statusFor(e.Kind), echo.Map{"error": e.Message, "code": e.Code})
	}
	logger.Error("request failed",
		zap.String("route", c.Path()),
		zap.Any("request_id", c.Get("request_id")),
		zap.Error(err),
	)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error", "code": "internal"})
}
