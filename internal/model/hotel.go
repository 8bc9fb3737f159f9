package model

import "time"

// Inventory is the room-count state of a single hotel.  OccupancyRate is
// derived from the two counters and is only ever produced by NewInventory.
//
// Fields:
//  TotalRooms     – fixed capacity of the hotel.
//  AvailableRooms – rooms not held by an active booking, 0..TotalRooms.
//  OccupancyRate  – percentage of TotalRooms currently taken (0 when the
//                   hotel has no rooms).
type Inventory struct {
	TotalRooms     int     `json:"total_rooms"`     // hotels.total_rooms
	AvailableRooms int     `json:"available_rooms"` // hotels.available_rooms
	OccupancyRate  float64 `json:"occupancy_rate"`  // hotels.occupancy_rate
}

// NewInventory builds an inventory snapshot and computes its occupancy rate.
func NewInventory(total, available int) Inventory {
	inv := Inventory{TotalRooms: total, AvailableRooms: available}
	if total > 0 {
		inv.OccupancyRate = float64(total-available) / float64(total) * 100
	}
	return inv
}

// Reserved returns how many rooms are currently held by bookings.
func (i Inventory) Reserved() int { return i.TotalRooms - i.AvailableRooms }

// Location describes where a hotel is.  Coordinates are optional.
type Location struct {
	City    string   `json:"city"`          // hotels.city
	Address string   `json:"address"`       // hotels.address
	Lat     *float64 `json:"lat,omitempty"` // hotels.lat (nullable)
	Lng     *float64 `json:"lng,omitempty"` // hotels.lng (nullable)
}

// Hotel represents a bookable property.  Price is the nightly rate per room.
// The embedded Inventory is never written by handlers; capacity changes go
// through the booking coordinator.
type Hotel struct {
	ID          uint64    `json:"id"`          // hotels.id
	Name        string    `json:"name"`        // hotels.name
	Location    Location  `json:"location"`    // hotels.city/address/lat/lng
	Description string    `json:"description"` // hotels.description
	Price       float64   `json:"price"`       // hotels.price
	Amenities   []string  `json:"amenities"`   // hotels.amenities (JSON)
	Images      []string  `json:"images"`      // hotels.images (JSON)
	Rating      float64   `json:"rating"`      // hotels.rating
	Inventory             // hotels.total_rooms/available_rooms/occupancy_rate
	CreatedAt   time.Time `json:"created_at"` // hotels.created_at
	UpdatedAt   time.Time `json:"updated_at"` // hotels.updated_at
}
