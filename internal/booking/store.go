package booking

import (
	"context"

	"github.com/iliyamo/hotel-booking/internal/model"
)

// InventoryTx is the atomic room-count surface the Ledger needs.  Both
// methods must be indivisible with respect to other writers of the same
// hotel row and must report ErrNotFound for an unknown hotel.
type InventoryTx interface {
	// DecrementRooms takes n rooms only if at least n are available,
	// otherwise it returns ErrInsufficientInventory and changes nothing.
	DecrementRooms(ctx context.Context, hotelID uint64, n int) (model.Inventory, error)
	// IncrementRooms gives back n rooms, clamped to the hotel's total.
	IncrementRooms(ctx context.Context, hotelID uint64, n int) (model.Inventory, error)
}

// Tx is everything the Coordinator may touch inside one store transaction.
type Tx interface {
	InventoryTx

	// HotelForUpdate loads a hotel and holds its row until the transaction
	// ends.
	HotelForUpdate(ctx context.Context, hotelID uint64) (*model.Hotel, error)
	// InsertHotel stores a new hotel and fills its ID and timestamps.
	InsertHotel(ctx context.Context, h *model.Hotel) error
	// DeleteHotel removes a hotel, failing with ErrHotelInUse while any of
	// its bookings is pending or confirmed.
	DeleteHotel(ctx context.Context, hotelID uint64) error
	// SetInventory overwrites both room counters of a hotel.
	SetInventory(ctx context.Context, hotelID uint64, inv model.Inventory) error
	// UpdateHotelDetails writes the descriptive fields and price of h and
	// sets its UpdatedAt.  Inventory fields of h are ignored.
	UpdateHotelDetails(ctx context.Context, h *model.Hotel) error

	// InsertBooking stores a new booking and fills its ID and timestamps.
	InsertBooking(ctx context.Context, b *model.Booking) error
	// BookingForUpdate loads a booking and holds its row.
	BookingForUpdate(ctx context.Context, id uint64) (*model.Booking, error)
	// UpdateBookingStatus persists Status and PaymentStatus of b.
	UpdateBookingStatus(ctx context.Context, b *model.Booking) error
}

// Store opens transactions and serves the one lookup the Coordinator needs
// before it knows which hotel to lock.
type Store interface {
	// WithinTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// Booking reads a booking without locking it.
	Booking(ctx context.Context, id uint64) (*model.Booking, error)
}

// Locker grants exclusive access to a key.  Lock blocks until the key is
// free or ctx is done and returns the function that gives the key back.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
