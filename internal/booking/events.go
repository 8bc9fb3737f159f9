package booking

import (
	"context"
	"time"

	"github.com/iliyamo/hotel-booking/internal/model"
)

// EventKind names a booking lifecycle event.
type EventKind string

const (
	EventCreated   EventKind = "booking.created"
	EventConfirmed EventKind = "booking.confirmed"
	EventCancelled EventKind = "booking.cancelled"
	EventCompleted EventKind = "booking.completed"
)

// Event is emitted after a lifecycle change has been committed.  Inventory
// is the hotel's snapshot right after the change.
type Event struct {
	Kind      EventKind
	Booking   model.Booking
	Inventory model.Inventory
	At        time.Time
}

// Notifier receives committed events.  Implementations must not block for
// long and report their own failures; a failed notification never undoes a
// committed change.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// Notifiers fans an event out to several notifiers in order.
type Notifiers []Notifier

// Notify implements Notifier.
func (ns Notifiers) Notify(ctx context.Context, ev Event) {
	for _, n := range ns {
		if n != nil {
			n.Notify(ctx, ev)
		}
	}
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev Event)

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, ev Event) { f(ctx, ev) }
