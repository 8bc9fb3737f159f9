package booking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/hotel-booking/internal/model"
)

// DefaultLockWait bounds how long an operation waits for a hotel's
// exclusive access before failing with ErrBusy.
const DefaultLockWait = 5 * time.Second

// CoordinatorConfig holds the collaborators of a Coordinator.  Store and
// Locker are required.
type CoordinatorConfig struct {
	Store    Store
	Locker   Locker
	Notifier Notifier
	Logger   *zap.Logger
	LockWait time.Duration
	Now      func() time.Time
}

// Coordinator is the only writer of hotel inventory.  Every operation that
// changes room counts or booking status runs under the hotel's exclusive
// access and inside one store transaction, so a booking and the rooms it
// holds are always written together or not at all.
type Coordinator struct {
	store    Store
	locker   Locker
	notifier Notifier
	log      *zap.Logger
	lockWait time.Duration
	ledger   Ledger
	machine  StateMachine
}

// NewCoordinator builds a Coordinator and panics if a required dependency
// is missing.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	if cfg.Store == nil || cfg.Locker == nil {
		panic("nil store or locker passed to NewCoordinator")
	}
	c := &Coordinator{
		store:    cfg.Store,
		locker:   cfg.Locker,
		notifier: cfg.Notifier,
		log:      cfg.Logger,
		lockWait: cfg.LockWait,
		machine:  StateMachine{Now: cfg.Now},
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	if c.lockWait <= 0 {
		c.lockWait = DefaultLockWait
	}
	return c
}

func hotelLockKey(hotelID uint64) string {
	return "hotel:" + strconv.FormatUint(hotelID, 10)
}

// exclusive runs fn while holding the hotel's lock.  Only the wait for the
// lock is bounded by lockWait; fn itself runs under ctx.  Any failure to get
// the lock is ErrBusy, including the caller's deadline running out while
// waiting.  Only a cancelled caller gets its own error back.
func (c *Coordinator) exclusive(ctx context.Context, hotelID uint64, fn func() error) error {
	lockCtx, cancel := context.WithTimeout(ctx, c.lockWait)
	defer cancel()
	unlock, err := c.locker.Lock(lockCtx, hotelLockKey(hotelID))
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
		c.log.Warn("hotel lock not acquired",
			zap.Uint64("hotel_id", hotelID), zap.Duration("waited", c.lockWait), zap.Error(err))
		return fmt.Errorf("hotel %d: %w", hotelID, ErrBusy)
	}
	defer unlock()
	return fn()
}

// PlaceBooking reserves req.Rooms in the hotel and stores a pending booking
// for them.  If the booking cannot be built or written after the rooms were
// reserved, the rooms are released before the error is returned.
func (c *Coordinator) PlaceBooking(ctx context.Context, req PlaceRequest) (*model.Booking, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	var (
		placed *model.Booking
		inv    model.Inventory
	)
	err := c.exclusive(ctx, req.HotelID, func() error {
		return c.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
			hotel, err := tx.HotelForUpdate(ctx, req.HotelID)
			if err != nil {
				return err
			}
			if hotel.AvailableRooms < req.Rooms {
				return fmt.Errorf("hotel %d has %d rooms available, %d requested: %w",
					hotel.ID, hotel.AvailableRooms, req.Rooms, ErrInsufficientInventory)
			}
			inv, err = c.ledger.Reserve(ctx, tx, hotel.ID, req.Rooms)
			if err != nil {
				return err
			}
			b, err := c.machine.Create(req, hotel.Price)
			if err == nil {
				err = tx.InsertBooking(ctx, b)
			}
			if err != nil {
				c.undoReservation(ctx, tx, hotel.ID, req.Rooms)
				return fmt.Errorf("write booking: %w", err)
			}
			placed = b
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	c.log.Info("booking placed",
		zap.Uint64("booking_id", placed.ID),
		zap.Uint64("hotel_id", placed.HotelID),
		zap.Uint64("user_id", placed.UserID),
		zap.Int("rooms", placed.Rooms),
		zap.Int("available_rooms", inv.AvailableRooms))
	c.notify(ctx, EventCreated, placed, inv)
	return placed, nil
}

func (c *Coordinator) undoReservation(ctx context.Context, tx Tx, hotelID uint64, rooms int) {
	if _, err := c.ledger.Release(ctx, tx, hotelID, rooms); err != nil {
		// The transaction is rolled back by the caller anyway.
		c.log.Error("release after failed booking write",
			zap.Uint64("hotel_id", hotelID), zap.Int("rooms", rooms), zap.Error(err))
	}
}

// CancelBooking cancels a booking on behalf of who and gives its rooms back.
// A refused transition leaves inventory untouched.
func (c *Coordinator) CancelBooking(ctx context.Context, bookingID uint64, who Requester) (*model.Booking, error) {
	return c.transition(ctx, bookingID, EventCancelled, true, func(b *model.Booking) error {
		return c.machine.Cancel(b, who)
	})
}

// ConfirmBooking confirms a pending booking.  Only elevated requesters may
// confirm; inventory is not touched because rooms were taken at placement.
func (c *Coordinator) ConfirmBooking(ctx context.Context, bookingID uint64, who Requester) (*model.Booking, error) {
	return c.transition(ctx, bookingID, EventConfirmed, false, func(b *model.Booking) error {
		return c.machine.Confirm(b, who)
	})
}

// CompleteBooking marks a confirmed stay as completed and returns its rooms.
func (c *Coordinator) CompleteBooking(ctx context.Context, bookingID uint64) (*model.Booking, error) {
	return c.transition(ctx, bookingID, EventCompleted, true, c.machine.Complete)
}

func (c *Coordinator) transition(ctx context.Context, bookingID uint64, kind EventKind, release bool, apply func(*model.Booking) error) (*model.Booking, error) {
	// HotelID never changes, so an unlocked read is enough to pick the lock.
	current, err := c.store.Booking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	var (
		out *model.Booking
		inv model.Inventory
	)
	err = c.exclusive(ctx, current.HotelID, func() error {
		return c.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
			b, err := tx.BookingForUpdate(ctx, bookingID)
			if err != nil {
				return err
			}
			if err := apply(b); err != nil {
				return err
			}
			if release {
				if inv, err = c.ledger.Release(ctx, tx, b.HotelID, b.Rooms); err != nil {
					return err
				}
			}
			if err := tx.UpdateBookingStatus(ctx, b); err != nil {
				return fmt.Errorf("write booking status: %w", err)
			}
			out = b
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	c.log.Info("booking status changed",
		zap.Uint64("booking_id", out.ID),
		zap.Uint64("hotel_id", out.HotelID),
		zap.String("status", string(out.Status)),
		zap.Bool("rooms_released", release))
	c.notify(ctx, kind, out, inv)
	return out, nil
}

// CreateHotel stores a new hotel with all totalRooms available.
func (c *Coordinator) CreateHotel(ctx context.Context, h *model.Hotel, totalRooms int) error {
	if totalRooms < 0 {
		return NewValidationError("total_rooms", "must not be negative")
	}
	h.Inventory = model.NewInventory(totalRooms, totalRooms)
	return c.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.InsertHotel(ctx, h)
	})
}

// ResizeInventory changes a hotel's capacity.  Rooms held by bookings stay
// held, so total cannot drop below them.
func (c *Coordinator) ResizeInventory(ctx context.Context, hotelID uint64, totalRooms int) (model.Inventory, error) {
	var inv model.Inventory
	err := c.exclusive(ctx, hotelID, func() error {
		return c.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
			hotel, err := tx.HotelForUpdate(ctx, hotelID)
			if err != nil {
				return err
			}
			next, err := Resize(hotel.Inventory, totalRooms)
			if err != nil {
				return err
			}
			if err := tx.SetInventory(ctx, hotelID, next); err != nil {
				return err
			}
			inv = next
			return nil
		})
	})
	if err != nil {
		return model.Inventory{}, err
	}
	c.log.Info("hotel inventory resized",
		zap.Uint64("hotel_id", hotelID), zap.Int("total_rooms", inv.TotalRooms), zap.Int("available_rooms", inv.AvailableRooms))
	return inv, nil
}

// UpdateHotel applies edit to the hotel's descriptive fields and, when
// totalRooms is set, resizes its inventory.  Both happen in one transaction:
// a refused resize or a failed write leaves the hotel as it was.
func (c *Coordinator) UpdateHotel(ctx context.Context, hotelID uint64, edit func(*model.Hotel), totalRooms *int) (*model.Hotel, error) {
	var updated *model.Hotel
	err := c.exclusive(ctx, hotelID, func() error {
		return c.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
			hotel, err := tx.HotelForUpdate(ctx, hotelID)
			if err != nil {
				return err
			}
			if totalRooms != nil && *totalRooms != hotel.TotalRooms {
				next, err := Resize(hotel.Inventory, *totalRooms)
				if err != nil {
					return err
				}
				if err := tx.SetInventory(ctx, hotelID, next); err != nil {
					return err
				}
				hotel.Inventory = next
			}
			edit(hotel)
			hotel.ID = hotelID
			if err := tx.UpdateHotelDetails(ctx, hotel); err != nil {
				return err
			}
			updated = hotel
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	c.log.Info("hotel updated",
		zap.Uint64("hotel_id", hotelID), zap.Int("total_rooms", updated.TotalRooms), zap.Int("available_rooms", updated.AvailableRooms))
	return updated, nil
}

// DeleteHotel removes a hotel that has no pending or confirmed bookings.
func (c *Coordinator) DeleteHotel(ctx context.Context, hotelID uint64) error {
	return c.exclusive(ctx, hotelID, func() error {
		return c.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
			return tx.DeleteHotel(ctx, hotelID)
		})
	})
}

func (c *Coordinator) notify(ctx context.Context, kind EventKind, b *model.Booking, inv model.Inventory) {
	if c.notifier == nil {
		return
	}
	c.notifier.Notify(context.WithoutCancel(ctx), Event{
		Kind:      kind,
		Booking:   *b,
		Inventory: inv,
		At:        c.machine.now(),
	})
}

// IsClientError reports whether err is one of the request-scoped domain
// failures, as opposed to an infrastructure error.
func IsClientError(err error) bool {
	for _, target := range []error{ErrNotFound, ErrInsufficientInventory, ErrInvalidTransition, ErrForbidden, ErrValidation, ErrBusy, ErrHotelInUse} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
