package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-booking/internal/handler"
	"github.com/iliyamo/hotel-booking/internal/middleware"
	"github.com/iliyamo/hotel-booking/internal/model"
)

// RegisterBookings registers guest booking endpoints under /v1/bookings and
// the admin views under /v1/admin.  Ownership of a single booking is checked
// by the handler, not by role.
func RegisterBookings(e *echo.Echo, h *handler.BookingHandler, jwtSecret string) {
	g := e.Group("/v1/bookings",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleUser, model.RoleAdmin),
	)
	g.POST("", h.Create)
	g.GET("", h.Mine)
	g.GET("/:id", h.Get)
	g.PUT("/:id/cancel", h.Cancel)

	admin := e.Group("/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	admin.GET("/bookings", h.ListAll)
	admin.PUT("/bookings/:id/confirm", h.Confirm)
	admin.PUT("/bookings/:id/complete", h.Complete)
	admin.GET("/occupancy", h.Occupancy)
}
