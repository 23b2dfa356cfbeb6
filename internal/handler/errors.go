package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/signvault/internal/service"
)

// statusFor maps a service error kind to its HTTP status.
func statusFor(k service.Kind) int {
	switch k {
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindLifecycle:
		return http.StatusConflict
	case service.KindOwnership:
		return http.StatusForbidden
	case service.KindValidation:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// writeError renders a service error as {"error", "kind"}. Anything that is
// not a named domain error is logged and reported as a generic failure so
// that no partial state or internals leak into the response.
func writeError(c echo.Context, log *zap.Logger, err error) error {
	var se *service.Error
	if errors.As(err, &se) && se.Kind != service.KindInternal && se.Kind != service.KindIntegrity {
		return c.JSON(statusFor(se.Kind), echo.Map{"error": se.Msg, "kind": se.Kind.String()})
	}
	log.Error("request failed", zap.String("route", c.Path()), zap.Error(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error", "kind": service.KindInternal.String()})
}

// clientInfo captures the caller's network identity for the ledger.
func clientInfo(c echo.Context) service.ClientInfo {
	return service.ClientInfo{IP: c.RealIP(), UserAgent: c.Request().UserAgent()}
}
