package handler

import (
	"context"
	"time"

	"github.com/iliyamo/hotel-booking/internal/model"
)

// HotelReader is the read side of the hotel catalog.  Both the MySQL
// repository and the in-memory store satisfy it.
type HotelReader interface {
	GetByID(ctx context.Context, id uint64) (*model.Hotel, error)
	Search(ctx context.Context, q model.HotelQuery) ([]model.Hotel, int64, error)
	Recommended(ctx context.Context, limit int) ([]model.Hotel, error)
	ListOccupancy(ctx context.Context) ([]model.HotelOccupancy, error)
}

// BookingReader lists and loads bookings.
type BookingReader interface {
	GetByID(ctx context.Context, id uint64) (*model.Booking, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error)
	ListAll(ctx context.Context, page, pageSize int) ([]model.Booking, int64, error)
}

// UserStore persists user accounts.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id uint64) (*model.User, error)
}

// TokenStore persists hashed refresh tokens.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// CatalogPurger drops cached catalog responses after an admin change.
type CatalogPurger interface {
	Purge(ctx context.Context) (int, error)
}
