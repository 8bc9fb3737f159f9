package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jinzhu/now"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/hotel-booking/internal/booking"
	"github.com/iliyamo/hotel-booking/internal/model"
)

// BookingHandler serves guest booking endpoints and the admin booking and
// occupancy views.  Every state change is delegated to the coordinator.
type BookingHandler struct {
	Bookings    BookingReader
	Hotels      HotelReader
	Coordinator *booking.Coordinator
	Log         *zap.Logger
	Timeout     time.Duration
}

// NewBookingHandler constructs a BookingHandler and panics if a required
// dependency is nil.
func NewBookingHandler(bookings BookingReader, hotels HotelReader, coord *booking.Coordinator, log *zap.Logger, timeout time.Duration) *BookingHandler {
	if bookings == nil || hotels == nil || coord == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &BookingHandler{Bookings: bookings, Hotels: hotels, Coordinator: coord, Log: log, Timeout: timeout}
}

type guestsReq struct {
	Adults   int `json:"adults"`
	Children int `json:"children"`
}

// createBookingReq dates accept RFC 3339 as well as the shorter layouts
// understood by jinzhu/now ("2025-01-15", "2025-01-15 14:00").
type createBookingReq struct {
	HotelID         uint64    `json:"hotel_id" validate:"required"`
	CheckIn         string    `json:"check_in" validate:"required"`
	CheckOut        string    `json:"check_out" validate:"required"`
	Guests          guestsReq `json:"guests"`
	Rooms           int       `json:"rooms"`
	SpecialRequests string    `json:"special_requests"`
}

// parseDate reads a date or timestamp; values without a zone are UTC.
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := now.ParseInLocation(time.UTC, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// Create places a booking for the caller.
func (h *BookingHandler) Create(c echo.Context) error {
	who, err := requester(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var req createBookingReq
	if err := bind(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}

	ve := &booking.ValidationError{}
	checkIn, err := parseDate(req.CheckIn)
	if err != nil {
		ve.Add("check_in", "must be a date like 2025-01-15")
	}
	checkOut, err := parseDate(req.CheckOut)
	if err != nil {
		ve.Add("check_out", "must be a date like 2025-01-15")
	}
	if !ve.Empty() {
		return writeError(c, h.Log, ve)
	}

	place, err := booking.NewPlaceRequest(who.UserID, req.HotelID, checkIn, checkOut,
		model.Guests{Adults: req.Guests.Adults, Children: req.Guests.Children}, req.Rooms, req.SpecialRequests)
	if err != nil {
		return writeError(c, h.Log, err)
	}

	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	b, err := h.Coordinator.PlaceBooking(ctx, place)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// Mine lists the caller's bookings, newest first.
func (h *BookingHandler) Mine(c echo.Context) error {
	who, err := requester(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	items, err := h.Bookings.ListByUser(ctx, who.UserID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if items == nil {
		items = []model.Booking{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get returns one booking to its owner or an admin.
func (h *BookingHandler) Get(c echo.Context) error {
	who, err := requester(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	b, err := h.Bookings.GetByID(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if b.UserID != who.UserID && !who.Elevated {
		return writeError(c, h.Log, booking.ErrForbidden)
	}
	return c.JSON(http.StatusOK, b)
}

// Cancel cancels a pending or confirmed booking and returns its rooms.
func (h *BookingHandler) Cancel(c echo.Context) error {
	return h.change(c, func(ctx context.Context, id uint64, who booking.Requester) (*model.Booking, error) {
		return h.Coordinator.CancelBooking(ctx, id, who)
	})
}

// Confirm marks a pending booking confirmed and paid.  Admin only.
func (h *BookingHandler) Confirm(c echo.Context) error {
	return h.change(c, func(ctx context.Context, id uint64, who booking.Requester) (*model.Booking, error) {
		return h.Coordinator.ConfirmBooking(ctx, id, who)
	})
}

// Complete closes a confirmed booking ahead of the sweeper.  Admin only.
func (h *BookingHandler) Complete(c echo.Context) error {
	return h.change(c, func(ctx context.Context, id uint64, _ booking.Requester) (*model.Booking, error) {
		return h.Coordinator.CompleteBooking(ctx, id)
	})
}

// change runs a coordinator transition under the request timeout.
func (h *BookingHandler) change(c echo.Context, fn func(context.Context, uint64, booking.Requester) (*model.Booking, error)) error {
	who, err := requester(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	b, err := fn(ctx, id, who)
	if err != nil {
		if errors.Is(err, booking.ErrInvalidTransition) {
			h.Log.Info("booking transition refused", zap.Uint64("booking_id", id), zap.Error(err))
		}
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// ListAll pages through every booking, newest first.  Admin only.
func (h *BookingHandler) ListAll(c echo.Context) error {
	ve := &booking.ValidationError{}
	q := model.HotelQuery{Page: queryInt(c, "page", ve), PageSize: queryInt(c, "page_size", ve)}
	if !ve.Empty() {
		return writeError(c, h.Log, ve)
	}
	q.Normalize()

	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	items, total, err := h.Bookings.ListAll(ctx, q.Page, q.PageSize)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if items == nil {
		items = []model.Booking{}
	}
	return c.JSON(http.StatusOK, listPage[model.Booking]{Items: items, Page: q.Page, PageSize: q.PageSize, Total: total})
}

// Occupancy lists each hotel's inventory as stored.  Admin only.
func (h *BookingHandler) Occupancy(c echo.Context) error {
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	items, err := h.Hotels.ListOccupancy(ctx)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if items == nil {
		items = []model.HotelOccupancy{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
