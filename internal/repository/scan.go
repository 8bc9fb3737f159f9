package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/iliyamo/hotel-booking/internal/model"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const hotelColumns = `id, name, city, address, lat, lng, description, price, amenities, images, rating,
	total_rooms, available_rooms, created_at, updated_at`

const bookingColumns = `id, user_id, hotel_id, check_in, check_out, adults, children, rooms,
	total_price, status, payment_status, special_requests, created_at, updated_at`

func scanHotel(s rowScanner) (*model.Hotel, error) {
	var (
		h                 model.Hotel
		lat, lng          sql.NullFloat64
		amenities, images []byte
		total, available  int
	)
	err := s.Scan(&h.ID, &h.Name, &h.Location.City, &h.Location.Address, &lat, &lng,
		&h.Description, &h.Price, &amenities, &images, &h.Rating,
		&total, &available, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lat.Valid {
		h.Location.Lat = &lat.Float64
	}
	if lng.Valid {
		h.Location.Lng = &lng.Float64
	}
	if h.Amenities, err = decodeList(amenities); err != nil {
		return nil, fmt.Errorf("hotel %d amenities: %w", h.ID, err)
	}
	if h.Images, err = decodeList(images); err != nil {
		return nil, fmt.Errorf("hotel %d images: %w", h.ID, err)
	}
	// occupancy_rate is stored for reporting; the value handed out is
	// always recomputed from the counters.
	h.Inventory = model.NewInventory(total, available)
	return &h, nil
}

func scanBooking(s rowScanner) (*model.Booking, error) {
	var (
		b       model.Booking
		special sql.NullString
	)
	err := s.Scan(&b.ID, &b.UserID, &b.HotelID, &b.CheckIn, &b.CheckOut,
		&b.Guests.Adults, &b.Guests.Children, &b.Rooms, &b.TotalPrice,
		&b.Status, &b.PaymentStatus, &special, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	b.SpecialRequests = special.String
	b.CheckIn = b.CheckIn.UTC()
	b.CheckOut = b.CheckOut.UTC()
	return &b, nil
}

func decodeList(raw []byte) ([]string, error) {
	out := []string{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func encodeList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
