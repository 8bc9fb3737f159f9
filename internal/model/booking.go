package model

import "time"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

// Terminal reports whether no further transition is allowed.
func (s BookingStatus) Terminal() bool {
	return s == BookingCancelled || s == BookingCompleted
}

// PaymentStatus tracks money for a booking independently of its lifecycle.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// Guests is the party size of a booking.
type Guests struct {
	Adults   int `json:"adults"`   // bookings.adults
	Children int `json:"children"` // bookings.children
}

// Booking records a user's stay at a hotel.  UserID and HotelID never change
// after creation and TotalPrice is fixed when the booking is created.
//
// Fields:
//  ID              – primary key identifier.
//  UserID          – user who made the booking.
//  HotelID         – hotel being booked.
//  CheckIn         – arrival date.
//  CheckOut        – departure date, strictly after CheckIn.
//  Guests          – adults (≥1) and children (≥0).
//  Rooms           – number of rooms held by the booking (≥1).
//  TotalPrice      – price × rooms × nights at creation time.
//  Status          – lifecycle state.
//  PaymentStatus   – payment state.
//  SpecialRequests – free text from the guest.
type Booking struct {
	ID              uint64        `json:"id"`                         // bookings.id
	UserID          uint64        `json:"user_id"`                    // bookings.user_id
	HotelID         uint64        `json:"hotel_id"`                   // bookings.hotel_id
	CheckIn         time.Time     `json:"check_in"`                   // bookings.check_in
	CheckOut        time.Time     `json:"check_out"`                  // bookings.check_out
	Guests          Guests        `json:"guests"`                     // bookings.adults/children
	Rooms           int           `json:"rooms"`                      // bookings.rooms
	TotalPrice      float64       `json:"total_price"`                // bookings.total_price
	Status          BookingStatus `json:"status"`                     // bookings.status
	PaymentStatus   PaymentStatus `json:"payment_status"`             // bookings.payment_status
	SpecialRequests string        `json:"special_requests,omitempty"` // bookings.special_requests
	CreatedAt       time.Time     `json:"created_at"`                 // bookings.created_at
	UpdatedAt       time.Time     `json:"updated_at"`                 // bookings.updated_at
}

// Nights returns the number of nights covered by the stay, rounding a
// partial day up.
func (b *Booking) Nights() int {
	return NightsBetween(b.CheckIn, b.CheckOut)
}

// NightsBetween returns ceil((checkOut - checkIn) / 24h).  It is zero or
// negative when checkOut is not after checkIn.
func NightsBetween(checkIn, checkOut time.Time) int {
	d := checkOut.Sub(checkIn)
	day := 24 * time.Hour
	n := int(d / day)
	if d%day > 0 {
		n++
	}
	return n
}
