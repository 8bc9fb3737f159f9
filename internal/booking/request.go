package booking

import (
	"time"
	"unicode/utf8"

	"github.com/iliyamo/hotel-booking/internal/model"
)

const maxSpecialRequestsLen = 1000

// Requester is the identity supplied by the auth layer.  Elevated marks an
// administrator who may act on other users' bookings.
type Requester struct {
	UserID   uint64
	Elevated bool
}

// PlaceRequest is a validated request to book rooms.  Build it with
// NewPlaceRequest; the zero value is rejected by the Coordinator.
type PlaceRequest struct {
	UserID          uint64
	HotelID         uint64
	CheckIn         time.Time
	CheckOut        time.Time
	Guests          model.Guests
	Rooms           int
	SpecialRequests string
}

// NewPlaceRequest checks every field of a booking request and returns a
// *ValidationError listing all problems at once.
func NewPlaceRequest(userID, hotelID uint64, checkIn, checkOut time.Time, guests model.Guests, rooms int, specialRequests string) (PlaceRequest, error) {
	r := PlaceRequest{
		UserID:          userID,
		HotelID:         hotelID,
		CheckIn:         checkIn.UTC(),
		CheckOut:        checkOut.UTC(),
		Guests:          guests,
		Rooms:           rooms,
		SpecialRequests: specialRequests,
	}
	if err := r.validate(); err != nil {
		return PlaceRequest{}, err
	}
	return r, nil
}

func (r PlaceRequest) validate() error {
	ve := newValidationError()
	if r.UserID == 0 {
		ve.Add("user_id", "is required")
	}
	if r.HotelID == 0 {
		ve.Add("hotel_id", "is required")
	}
	switch {
	case r.CheckIn.IsZero():
		ve.Add("check_in", "is required")
	case r.CheckOut.IsZero():
		ve.Add("check_out", "is required")
	case !r.CheckOut.After(r.CheckIn):
		ve.Add("check_out", "must be after check_in")
	}
	if r.Rooms < 1 {
		ve.Add("rooms", "must be at least 1")
	}
	if r.Guests.Adults < 1 {
		ve.Add("guests.adults", "must be at least 1")
	}
	if r.Guests.Children < 0 {
		ve.Add("guests.children", "must not be negative")
	}
	if utf8.RuneCountInString(r.SpecialRequests) > maxSpecialRequestsLen {
		ve.Add("special_requests", "is too long")
	}
	return ve.orNil()
}
