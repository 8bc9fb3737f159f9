package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/hotel-booking/internal/model"
)

// BookingRepo serves booking reads.  Status changes go through Store.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to db.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// GetByID returns a booking or ErrBookingNotFound.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("booking %d: %w", id, ErrBookingNotFound)
	}
	return b, err
}

// ListByUser returns all bookings of a user, newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE user_id = ? ORDER BY created_at DESC, id DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

// ListAll returns one page of every booking, newest first, and the total.
func (r *BookingRepo) ListAll(ctx context.Context, page, pageSize int) ([]model.Booking, int64, error) {
	q := model.HotelQuery{Page: page, PageSize: pageSize}
	offset := q.Normalize()
	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM bookings").Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		q.PageSize, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out, err := collectBookings(rows)
	return out, total, err
}

// DueForCompletion returns IDs of confirmed bookings whose check-out is at
// or before the given time, earliest first.
func (r *BookingRepo) DueForCompletion(ctx context.Context, before time.Time, limit int) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id FROM bookings WHERE status = 'confirmed' AND check_out <= ? ORDER BY check_out, id LIMIT ?",
		before.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []uint64{}
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func collectBookings(rows *sql.Rows) ([]model.Booking, error) {
	out := []model.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}
