package booking

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when a hotel or booking does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientInventory is returned when a hotel has fewer available
	// rooms than requested.
	ErrInsufficientInventory = errors.New("not enough rooms available")
	// ErrInvalidTransition is returned for a status change the booking
	// lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid booking status transition")
	// ErrForbidden is returned when the requester neither owns the booking
	// nor holds an elevated role.
	ErrForbidden = errors.New("forbidden")
	// ErrBusy is returned when exclusive access to a hotel's inventory could
	// not be obtained in time.
	ErrBusy = errors.New("hotel inventory is busy, retry later")
	// ErrHotelInUse is returned when a hotel with pending or confirmed
	// bookings is about to be removed.
	ErrHotelInUse = errors.New("hotel has active bookings")
	// ErrValidation matches every *ValidationError via errors.Is.
	ErrValidation = errors.New("validation failed")
)

// ValidationError collects per-field messages for a malformed request.
type ValidationError struct {
	fields map[string][]string
}

func newValidationError() *ValidationError {
	return &ValidationError{fields: make(map[string][]string)}
}

// NewValidationError returns an error carrying a single field message.
func NewValidationError(field, msg string) *ValidationError {
	ve := newValidationError()
	ve.Add(field, msg)
	return ve
}

// Add records msg for field.
func (e *ValidationError) Add(field, msg string) {
	if e.fields == nil {
		e.fields = make(map[string][]string)
	}
	e.fields[field] = append(e.fields[field], msg)
}

// Empty reports whether no field has been recorded.
func (e *ValidationError) Empty() bool { return len(e.fields) == 0 }

// orNil returns nil when no field failed so callers can `return ve.orNil()`.
func (e *ValidationError) orNil() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.fields))
	for k := range e.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.fields[k], ", ")))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is lets errors.Is(err, ErrValidation) match any validation error.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Fields returns the failing fields and their messages.
func (e *ValidationError) Fields() map[string][]string { return e.fields }

// AsValidationError returns the validation error wrapped in err, if any.
func AsValidationError(err error) *ValidationError {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve
	}
	return nil
}
