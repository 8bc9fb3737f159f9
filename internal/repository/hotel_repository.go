package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/hotel-booking/internal/model"
)

// HotelRepo serves catalog reads and descriptive updates.  Inventory
// columns are written only through Store.
type HotelRepo struct {
	db *sql.DB
}

// NewHotelRepo returns a HotelRepo bound to db.
func NewHotelRepo(db *sql.DB) *HotelRepo { return &HotelRepo{db: db} }

// GetByID returns a hotel or ErrHotelNotFound.
func (r *HotelRepo) GetByID(ctx context.Context, id uint64) (*model.Hotel, error) {
	h, err := scanHotel(r.db.QueryRowContext(ctx,
		"SELECT "+hotelColumns+" FROM hotels WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("hotel %d: %w", id, ErrHotelNotFound)
	}
	return h, err
}

// Search filters by city and price range and returns one page, newest
// first, along with the total number of matches.
func (r *HotelRepo) Search(ctx context.Context, q model.HotelQuery) ([]model.Hotel, int64, error) {
	offset := q.Normalize()
	where := []string{}
	args := []any{}
	if city := strings.TrimSpace(q.City); city != "" {
		where = append(where, "LOWER(city) = ?")
		args = append(args, strings.ToLower(city))
	}
	if q.MinPrice != nil {
		where = append(where, "price >= ?")
		args = append(args, *q.MinPrice)
	}
	if q.MaxPrice != nil {
		where = append(where, "price <= ?")
		args = append(args, *q.MaxPrice)
	}
	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM hotels WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+hotelColumns+" FROM hotels WHERE "+cond+" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		append(args, q.PageSize, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out, err := collectHotels(rows)
	return out, total, err
}

// Recommended returns the best rated hotels, newest first among equals.
func (r *HotelRepo) Recommended(ctx context.Context, limit int) ([]model.Hotel, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+hotelColumns+" FROM hotels ORDER BY rating DESC, created_at DESC, id DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectHotels(rows)
}

// ListOccupancy returns each hotel's inventory ordered by name.
func (r *HotelRepo) ListOccupancy(ctx context.Context) ([]model.HotelOccupancy, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, total_rooms, available_rooms FROM hotels ORDER BY name, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.HotelOccupancy{}
	for rows.Next() {
		var (
			o                model.HotelOccupancy
			total, available int
		)
		if err := rows.Scan(&o.ID, &o.Name, &total, &available); err != nil {
			return nil, err
		}
		o.Inventory = model.NewInventory(total, available)
		out = append(out, o)
	}
	return out, rows.Err()
}

func collectHotels(rows *sql.Rows) ([]model.Hotel, error) {
	out := []model.Hotel{}
	for rows.Next() {
		h, err := scanHotel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *h)
	}
	return out, rows.Err()
}
