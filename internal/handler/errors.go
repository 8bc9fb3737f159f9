package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/hotel-booking/internal/booking"
)

// retryAfterSeconds is sent with 503 responses for a busy hotel.
const retryAfterSeconds = "1"

// statusFor maps domain errors to HTTP status codes.  Zero means the error
// is not a client error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, booking.ErrValidation),
		errors.Is(err, booking.ErrInsufficientInventory),
		errors.Is(err, booking.ErrInvalidTransition):
		return http.StatusBadRequest
	case errors.Is(err, booking.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, booking.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, booking.ErrHotelInUse):
		return http.StatusConflict
	case errors.Is(err, booking.ErrBusy):
		return http.StatusServiceUnavailable
	}
	return 0
}

// writeError renders err as a JSON error body.  Unexpected errors are
// logged and reported without details.
func writeError(c echo.Context, log *zap.Logger, err error) error {
	if ve := booking.AsValidationError(err); ve != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "fields": ve.Fields()})
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return c.JSON(he.Code, echo.Map{"error": http.StatusText(he.Code)})
	}
	status := statusFor(err)
	if status == 0 {
		log.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	if status == http.StatusServiceUnavailable {
		c.Response().Header().Set(echo.HeaderRetryAfter, retryAfterSeconds)
	}
	return c.JSON(status, echo.Map{"error": err.Error()})
}
