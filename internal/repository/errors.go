// Package repository implements persistence on MySQL.  Hotel and booking
// lookups report misses by wrapping booking.ErrNotFound so the domain and
// HTTP layers can match them with errors.Is; user and token lookups use the
// sentinels below.
package repository

import (
	"errors"
	"fmt"

	"github.com/iliyamo/hotel-booking/internal/booking"
)

// ErrHotelNotFound is returned when no hotel has the requested ID.
var ErrHotelNotFound = fmt.Errorf("hotel %w", booking.ErrNotFound)

// ErrBookingNotFound is returned when no booking has the requested ID.
var ErrBookingNotFound = fmt.Errorf("booking %w", booking.ErrNotFound)

// ErrUserNotFound is returned when a user lookup matches nothing.
var ErrUserNotFound = errors.New("user not found")

// ErrEmailExists is returned when registering an email that is taken.
var ErrEmailExists = errors.New("email already exists")

// ErrInvalidRefresh is returned for an unknown, revoked or expired
// refresh token.
var ErrInvalidRefresh = errors.New("invalid refresh token")
