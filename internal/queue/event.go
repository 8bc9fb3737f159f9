// Package queue defines message payloads exchanged over the message broker
// and the consumer that records them.
package queue

import (
	"time"

	"github.com/iliyamo/hotel-booking/internal/booking"
)

// BookingEvent is published after every committed booking lifecycle change.
// It carries enough for downstream consumers to log or notify without
// querying the primary database.
type BookingEvent struct {
	Event          string  `json:"event"`
	BookingID      uint64  `json:"booking_id"`
	UserID         uint64  `json:"user_id"`
	HotelID        uint64  `json:"hotel_id"`
	Status         string  `json:"status"`
	PaymentStatus  string  `json:"payment_status"`
	Rooms          int     `json:"rooms"`
	TotalPrice     float64 `json:"total_price"`
	CheckIn        string  `json:"check_in"`
	CheckOut       string  `json:"check_out"`
	TotalRooms     int     `json:"total_rooms"`
	AvailableRooms int     `json:"available_rooms"`
	OccupancyRate  float64 `json:"occupancy_rate"`
	OccurredAt     string  `json:"occurred_at"`
}

// FromDomain converts a coordinator event into its wire form.  Inventory
// fields are zero for events that did not touch inventory.
func FromDomain(ev booking.Event) BookingEvent {
	b := ev.Booking
	return BookingEvent{
		Event:          string(ev.Kind),
		BookingID:      b.ID,
		UserID:         b.UserID,
		HotelID:        b.HotelID,
		Status:         string(b.Status),
		PaymentStatus:  string(b.PaymentStatus),
		Rooms:          b.Rooms,
		TotalPrice:     b.TotalPrice,
		CheckIn:        b.CheckIn.UTC().Format(time.RFC3339),
		CheckOut:       b.CheckOut.UTC().Format(time.RFC3339),
		TotalRooms:     ev.Inventory.TotalRooms,
		AvailableRooms: ev.Inventory.AvailableRooms,
		OccupancyRate:  ev.Inventory.OccupancyRate,
		OccurredAt:     ev.At.UTC().Format(time.RFC3339),
	}
}
