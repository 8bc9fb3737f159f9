package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-booking/internal/handler"
	"github.com/iliyamo/hotel-booking/internal/middleware"
	"github.com/iliyamo/hotel-booking/internal/model"
)

// RegisterHotels registers the public catalog, cached when cache is
// enabled, and the admin hotel endpoints.  Middleware is attached per route
// because both share the /v1/hotels prefix.
func RegisterHotels(e *echo.Echo, h *handler.HotelHandler, jwtSecret string, cache echo.MiddlewareFunc) {
	g := e.Group("/v1/hotels")
	g.GET("", h.List, cache)
	g.GET("/recommended", h.Recommended, cache)
	g.GET("/:id", h.Get, cache)

	admin := []echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	}
	g.POST("", h.Create, admin...)
	g.PUT("/:id", h.Replace, admin...)
	g.PATCH("/:id", h.Patch, admin...)
	g.DELETE("/:id", h.Delete, admin...)
}
