package handler

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-booking/internal/booking"
	"github.com/iliyamo/hotel-booking/internal/middleware"
	"github.com/iliyamo/hotel-booking/internal/model"
)

const defaultRequestTimeout = 5 * time.Second

// Validator adapts go-playground/validator to echo.  Failures come back as
// *booking.ValidationError keyed by JSON field name.
type Validator struct {
	v *validator.Validate
}

// NewValidator returns a Validator for request DTOs.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

// Validate implements echo.Validator.
func (cv *Validator) Validate(i any) error {
	err := cv.v.Struct(i)
	if err == nil {
		return nil
	}
	fes, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	ve := booking.NewValidationError(fieldName(fes[0]), message(fes[0]))
	for _, fe := range fes[1:] {
		ve.Add(fieldName(fe), message(fe))
	}
	return ve
}

// fieldName drops the struct name prefix: "hotelReq.images[0]" -> "images[0]".
func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "url", "http_url":
		return "must be a valid URL"
	case "min":
		return "must be at least " + fe.Param() + lengthUnit(fe)
	case "max":
		return "must be at most " + fe.Param() + lengthUnit(fe)
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	}
	return fmt.Sprintf("failed %q check", fe.Tag())
}

func lengthUnit(fe validator.FieldError) string {
	switch fe.Kind() {
	case reflect.String:
		return " characters"
	case reflect.Slice, reflect.Map:
		return " items"
	}
	return ""
}

// bind decodes the body into dst and validates it.
func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return booking.NewValidationError("body", "invalid JSON body")
	}
	return c.Validate(dst)
}

// parseID reads a positive integer path parameter.
func parseID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, booking.NewValidationError(name, "must be a positive integer")
	}
	return id, nil
}

// queryInt reads an optional integer query parameter into ve.
func queryInt(c echo.Context, name string, ve *booking.ValidationError) int {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		ve.Add(name, "must be an integer")
	}
	return n
}

// queryFloat reads an optional number query parameter into ve.
func queryFloat(c echo.Context, name string, ve *booking.ValidationError) *float64 {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		ve.Add(name, "must be a number")
		return nil
	}
	return &f
}

// requester builds the coordinator identity from the JWT claims.
func requester(c echo.Context) (booking.Requester, error) {
	uid, ok := middleware.UserID(c)
	if !ok {
		return booking.Requester{}, echo.ErrUnauthorized
	}
	return booking.Requester{UserID: uid, Elevated: middleware.Role(c) == model.RoleAdmin}, nil
}

func withTimeout(c echo.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = defaultRequestTimeout
	}
	return context.WithTimeout(c.Request().Context(), d)
}

// listPage is the envelope of paginated list responses.
type listPage[T any] struct {
	Items    []T   `json:"items"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
}
