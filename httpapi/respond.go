package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Sunny-Hasho/Eventura-v1/auth"
	"github.com/Sunny-Hasho/Eventura-v1/fault"
)

// writeError maps domain failures onto HTTP statuses. Anything unmapped is a
// 500 with a generic body so internals never leak to clients.
func writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, fault.ErrNotFound), errors.Is(err, auth.ErrUserNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, fault.ErrUnauthorized):
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
	case errors.Is(err, fault.ErrInvalidState):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
	case errors.Is(err, fault.ErrConflict), errors.Is(err, auth.ErrDuplicateEmail):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, auth.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error()})
	case errors.Is(err, auth.ErrWeakPassword):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	default:
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
