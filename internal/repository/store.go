package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/hotel-booking/internal/booking"
	"github.com/iliyamo/hotel-booking/internal/model"
)

// Store is the transactional MySQL store used by the booking coordinator.
// Rows read for update are locked with SELECT ... FOR UPDATE and room
// counters only change through conditional UPDATE statements.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore returns a Store bound to db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// WithinTx runs fn inside a transaction, committing when fn returns nil.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx booking.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(ctx, &sqlTx{tx: tx, now: s.now}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// Booking reads a booking without locking it.
func (s *Store) Booking(ctx context.Context, id uint64) (*model.Booking, error) {
	b, err := scanBooking(s.db.QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("booking %d: %w", id, ErrBookingNotFound)
	}
	return b, err
}

type sqlTx struct {
	tx  *sql.Tx
	now func() time.Time
}

func (t *sqlTx) HotelForUpdate(ctx context.Context, hotelID uint64) (*model.Hotel, error) {
	h, err := scanHotel(t.tx.QueryRowContext(ctx,
		"SELECT "+hotelColumns+" FROM hotels WHERE id = ? FOR UPDATE", hotelID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("hotel %d: %w", hotelID, ErrHotelNotFound)
	}
	return h, err
}

func (t *sqlTx) inventory(ctx context.Context, hotelID uint64) (model.Inventory, error) {
	var total, available int
	err := t.tx.QueryRowContext(ctx,
		"SELECT total_rooms, available_rooms FROM hotels WHERE id = ?", hotelID).Scan(&total, &available)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Inventory{}, fmt.Errorf("hotel %d: %w", hotelID, ErrHotelNotFound)
	}
	if err != nil {
		return model.Inventory{}, err
	}
	return model.NewInventory(total, available), nil
}

// occupancyExpr relies on MySQL evaluating single-table SET assignments
// left to right, so available_rooms already holds its new value.
const occupancyExpr = "occupancy_rate = IF(total_rooms = 0, 0, (total_rooms - available_rooms) * 100 / total_rooms)"

func (t *sqlTx) DecrementRooms(ctx context.Context, hotelID uint64, n int) (model.Inventory, error) {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE hotels SET available_rooms = available_rooms - ?, "+occupancyExpr+
			", updated_at = ? WHERE id = ? AND available_rooms >= ?",
		n, t.now(), hotelID, n)
	if err != nil {
		return model.Inventory{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return model.Inventory{}, err
	}
	if affected == 0 {
		// Either the hotel is gone or it has too few rooms left.
		if _, err := t.inventory(ctx, hotelID); err != nil {
			return model.Inventory{}, err
		}
		return model.Inventory{}, booking.ErrInsufficientInventory
	}
	return t.inventory(ctx, hotelID)
}

func (t *sqlTx) IncrementRooms(ctx context.Context, hotelID uint64, n int) (model.Inventory, error) {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE hotels SET available_rooms = LEAST(total_rooms, available_rooms + ?), "+occupancyExpr+
			", updated_at = ? WHERE id = ?",
		n, t.now(), hotelID)
	if err != nil {
		return model.Inventory{}, err
	}
	return t.inventory(ctx, hotelID)
}

func (t *sqlTx) SetInventory(ctx context.Context, hotelID uint64, inv model.Inventory) error {
	inv = model.NewInventory(inv.TotalRooms, inv.AvailableRooms)
	res, err := t.tx.ExecContext(ctx,
		"UPDATE hotels SET total_rooms = ?, available_rooms = ?, occupancy_rate = ?, updated_at = ? WHERE id = ?",
		inv.TotalRooms, inv.AvailableRooms, inv.OccupancyRate, t.now(), hotelID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("hotel %d: %w", hotelID, ErrHotelNotFound)
	}
	return nil
}

func (t *sqlTx) UpdateHotelDetails(ctx context.Context, h *model.Hotel) error {
	amenities, err := encodeList(h.Amenities)
	if err != nil {
		return err
	}
	images, err := encodeList(h.Images)
	if err != nil {
		return err
	}
	now := t.now()
	// The row is held by HotelForUpdate, so 0 affected rows only means
	// nothing changed.
	_, err = t.tx.ExecContext(ctx,
		`UPDATE hotels SET name = ?, city = ?, address = ?, lat = ?, lng = ?, description = ?,
			price = ?, amenities = ?, images = ?, rating = ?, updated_at = ?
		 WHERE id = ?`,
		h.Name, h.Location.City, h.Location.Address, nullFloat(h.Location.Lat), nullFloat(h.Location.Lng),
		h.Description, h.Price, amenities, images, h.Rating, now, h.ID)
	if err != nil {
		return err
	}
	h.UpdatedAt = now
	return nil
}

func (t *sqlTx) InsertHotel(ctx context.Context, h *model.Hotel) error {
	amenities, err := encodeList(h.Amenities)
	if err != nil {
		return err
	}
	images, err := encodeList(h.Images)
	if err != nil {
		return err
	}
	h.Inventory = model.NewInventory(h.TotalRooms, h.AvailableRooms)
	now := t.now()
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO hotels (name, city, address, lat, lng, description, price, amenities, images, rating,
			total_rooms, available_rooms, occupancy_rate, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		h.Name, h.Location.City, h.Location.Address, nullFloat(h.Location.Lat), nullFloat(h.Location.Lng),
		h.Description, h.Price, amenities, images, h.Rating,
		h.TotalRooms, h.AvailableRooms, h.OccupancyRate, now, now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	h.ID = uint64(id)
	h.CreatedAt, h.UpdatedAt = now, now
	return nil
}

func (t *sqlTx) DeleteHotel(ctx context.Context, hotelID uint64) error {
	var id uint64
	err := t.tx.QueryRowContext(ctx, "SELECT id FROM hotels WHERE id = ? FOR UPDATE", hotelID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("hotel %d: %w", hotelID, ErrHotelNotFound)
	}
	if err != nil {
		return err
	}
	var active int
	err = t.tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM bookings WHERE hotel_id = ? AND status IN ('pending','confirmed')",
		hotelID).Scan(&active)
	if err != nil {
		return err
	}
	if active > 0 {
		return fmt.Errorf("hotel %d has %d active bookings: %w", hotelID, active, booking.ErrHotelInUse)
	}
	// Finished bookings go with the hotel (ON DELETE CASCADE).
	_, err = t.tx.ExecContext(ctx, "DELETE FROM hotels WHERE id = ?", hotelID)
	return err
}

func (t *sqlTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	now := t.now()
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO bookings (user_id, hotel_id, check_in, check_out, adults, children, rooms,
			total_price, status, payment_status, special_requests, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		b.UserID, b.HotelID, b.CheckIn, b.CheckOut, b.Guests.Adults, b.Guests.Children, b.Rooms,
		b.TotalPrice, string(b.Status), string(b.PaymentStatus), nullString(b.SpecialRequests), now, now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	b.CreatedAt, b.UpdatedAt = now, now
	return nil
}

func (t *sqlTx) BookingForUpdate(ctx context.Context, id uint64) (*model.Booking, error) {
	b, err := scanBooking(t.tx.QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE id = ? FOR UPDATE", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("booking %d: %w", id, ErrBookingNotFound)
	}
	return b, err
}

func (t *sqlTx) UpdateBookingStatus(ctx context.Context, b *model.Booking) error {
	now := t.now()
	_, err := t.tx.ExecContext(ctx,
		"UPDATE bookings SET status = ?, payment_status = ?, updated_at = ? WHERE id = ?",
		string(b.Status), string(b.PaymentStatus), now, b.ID)
	if err != nil {
		return err
	}
	b.UpdatedAt = now
	return nil
}
