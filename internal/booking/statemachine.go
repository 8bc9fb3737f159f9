package booking

import (
	"fmt"
	"time"

	"github.com/iliyamo/hotel-booking/internal/model"
)

// transitions lists the allowed next states for every non-terminal state.
var transitions = map[model.BookingStatus][]model.BookingStatus{
	model.BookingPending:   {model.BookingConfirmed, model.BookingCancelled},
	model.BookingConfirmed: {model.BookingCancelled, model.BookingCompleted},
}

// CanTransition reports whether a booking may move from one status to another.
func CanTransition(from, to model.BookingStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StateMachine owns the booking lifecycle.  Its methods only mutate the
// booking they are given; inventory is the Coordinator's concern.
type StateMachine struct {
	Now func() time.Time
}

func (m StateMachine) now() time.Time {
	if m.Now != nil {
		return m.Now().UTC()
	}
	return time.Now().UTC()
}

// Create builds a pending booking for req priced at nightlyPrice per room.
func (m StateMachine) Create(req PlaceRequest, nightlyPrice float64) (*model.Booking, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if nightlyPrice < 0 {
		return nil, NewValidationError("price", "hotel price must not be negative")
	}
	nights := model.NightsBetween(req.CheckIn, req.CheckOut)
	now := m.now()
	return &model.Booking{
		UserID:          req.UserID,
		HotelID:         req.HotelID,
		CheckIn:         req.CheckIn,
		CheckOut:        req.CheckOut,
		Guests:          req.Guests,
		Rooms:           req.Rooms,
		TotalPrice:      nightlyPrice * float64(req.Rooms) * float64(nights),
		Status:          model.BookingPending,
		PaymentStatus:   model.PaymentPending,
		SpecialRequests: req.SpecialRequests,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Confirm moves a pending booking to confirmed and records the payment.
// Only an elevated requester may confirm.
func (m StateMachine) Confirm(b *model.Booking, who Requester) error {
	if !who.Elevated {
		return ErrForbidden
	}
	if err := m.move(b, model.BookingConfirmed); err != nil {
		return err
	}
	b.PaymentStatus = model.PaymentPaid
	return nil
}

// Cancel moves a booking to cancelled.  The requester must own the booking
// or be elevated.  A paid booking is marked refunded.
func (m StateMachine) Cancel(b *model.Booking, who Requester) error {
	if b.UserID != who.UserID && !who.Elevated {
		return ErrForbidden
	}
	if err := m.move(b, model.BookingCancelled); err != nil {
		return err
	}
	if b.PaymentStatus == model.PaymentPaid {
		b.PaymentStatus = model.PaymentRefunded
	}
	return nil
}

// Complete moves a confirmed booking to completed.  It is driven by the
// system once the stay is over, never by a user.
func (m StateMachine) Complete(b *model.Booking) error {
	return m.move(b, model.BookingCompleted)
}

func (m StateMachine) move(b *model.Booking, to model.BookingStatus) error {
	if !CanTransition(b.Status, to) {
		return fmt.Errorf("booking %d: %s -> %s: %w", b.ID, b.Status, to, ErrInvalidTransition)
	}
	b.Status = to
	b.UpdatedAt = m.now()
	return nil
}
