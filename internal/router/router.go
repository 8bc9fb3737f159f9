// Package router wires handlers and middleware onto an Echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/hotel-booking/internal/config"
	"github.com/iliyamo/hotel-booking/internal/handler"
	"github.com/iliyamo/hotel-booking/internal/middleware"
)

// Deps is everything the HTTP surface needs.  Redis is optional; without it
// rate limiting and response caching are off.
type Deps struct {
	Auth      *handler.AuthHandler
	Hotels    *handler.HotelHandler
	Bookings  *handler.BookingHandler
	DB        handler.Pinger
	JWTSecret string
	Redis     *redis.Client
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
	Log       *zap.Logger
}

// New builds an Echo instance with the global middleware chain and every
// route registered.
func New(d Deps) *echo.Echo {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()

	e.Use(middleware.RequestLogger(log))
	e.Use(middleware.Recover(log))
	e.Use(middleware.NewTokenBucket(d.RateLimit, d.Redis, log))

	RegisterRoutes(e, d.DB)
	RegisterAuth(e, d.Auth, d.JWTSecret)
	RegisterHotels(e, d.Hotels, d.JWTSecret, middleware.NewRedisCache(d.Cache, d.Redis))
	RegisterBookings(e, d.Bookings, d.JWTSecret)
	return e
}

// RegisterRoutes registers routes that do not require authentication and
// are not part of the catalog.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterAuth registers the session endpoints under /v1/auth and the
// profile endpoint under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)               // rotates the refresh token
	g.POST("/refresh-access", a.RefreshAccess) // access token only
	g.POST("/logout", a.Logout)

	e.GET("/v1/me", a.Me, middleware.JWTAuth(jwtSecret))
}
