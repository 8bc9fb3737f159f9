// Package memory is an in-process implementation of every store the service
// needs.  It backs tests and STORAGE_DRIVER=memory runs.  Writes made inside
// a transaction are applied immediately and undone on rollback, so other
// readers may observe uncommitted state; writers of the same hotel are kept
// apart by the booking coordinator's lock.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/hotel-booking/internal/booking"
	"github.com/iliyamo/hotel-booking/internal/model"
	"github.com/iliyamo/hotel-booking/internal/repository"
)

// DB holds all tables behind one mutex.
type DB struct {
	mu           sync.RWMutex
	now          func() time.Time
	hotels       map[uint64]*model.Hotel
	bookings     map[uint64]*model.Booking
	users        map[uint64]*model.User
	usersByEmail map[string]uint64
	tokens       map[string]*model.RefreshToken
	nextHotel    uint64
	nextBooking  uint64
	nextUser     uint64
	nextToken    uint64

	// FailBookingInsert, when set, is returned by InsertBooking.  Tests use
	// it to exercise rollback of a reservation.
	FailBookingInsert error
	// FailHotelUpdate, when set, is returned by UpdateHotelDetails.
	FailHotelUpdate error
}

// New returns an empty DB.  now may be nil.
func New(now func() time.Time) *DB {
	if now == nil {
		now = time.Now
	}
	return &DB{
		now:          func() time.Time { return now().UTC() },
		hotels:       make(map[uint64]*model.Hotel),
		bookings:     make(map[uint64]*model.Booking),
		users:        make(map[uint64]*model.User),
		usersByEmail: make(map[string]uint64),
		tokens:       make(map[string]*model.RefreshToken),
	}
}

// tx records undo actions for everything it changed.
type tx struct {
	db   *DB
	undo []func()
}

// WithinTx implements booking.Store.
func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context, tx booking.Tx) error) (err error) {
	t := &tx{db: db}
	defer func() {
		if p := recover(); p != nil {
			t.rollback()
			panic(p)
		}
		if err != nil {
			t.rollback()
		}
	}()
	return fn(ctx, t)
}

func (t *tx) rollback() {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func hotelNotFound(id uint64) error {
	return fmt.Errorf("hotel %d: %w", id, repository.ErrHotelNotFound)
}

func bookingNotFound(id uint64) error {
	return fmt.Errorf("booking %d: %w", id, repository.ErrBookingNotFound)
}

func copyHotel(h *model.Hotel) *model.Hotel {
	c := *h
	c.Amenities = append([]string(nil), h.Amenities...)
	c.Images = append([]string(nil), h.Images...)
	return &c
}

func copyBooking(b *model.Booking) *model.Booking {
	c := *b
	return &c
}

// ---- booking.Tx ----

func (t *tx) HotelForUpdate(_ context.Context, hotelID uint64) (*model.Hotel, error) {
	t.db.mu.RLock()
	defer t.db.mu.RUnlock()
	h, ok := t.db.hotels[hotelID]
	if !ok {
		return nil, hotelNotFound(hotelID)
	}
	return copyHotel(h), nil
}

func (t *tx) changeInventory(hotelID uint64, change func(model.Inventory) (model.Inventory, error)) (model.Inventory, error) {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	h, ok := t.db.hotels[hotelID]
	if !ok {
		return model.Inventory{}, hotelNotFound(hotelID)
	}
	next, err := change(h.Inventory)
	if err != nil {
		return model.Inventory{}, err
	}
	prev, prevUpdated := h.Inventory, h.UpdatedAt
	h.Inventory = next
	h.UpdatedAt = t.db.now()
	t.undo = append(t.undo, func() {
		if cur, ok := t.db.hotels[hotelID]; ok {
			cur.Inventory = prev
			cur.UpdatedAt = prevUpdated
		}
	})
	return next, nil
}

func (t *tx) DecrementRooms(_ context.Context, hotelID uint64, n int) (model.Inventory, error) {
	return t.changeInventory(hotelID, func(inv model.Inventory) (model.Inventory, error) {
		return booking.TakeRooms(inv, n)
	})
}

func (t *tx) IncrementRooms(_ context.Context, hotelID uint64, n int) (model.Inventory, error) {
	return t.changeInventory(hotelID, func(inv model.Inventory) (model.Inventory, error) {
		return booking.ReturnRooms(inv, n)
	})
}

func (t *tx) SetInventory(_ context.Context, hotelID uint64, inv model.Inventory) error {
	_, err := t.changeInventory(hotelID, func(model.Inventory) (model.Inventory, error) {
		return model.NewInventory(inv.TotalRooms, inv.AvailableRooms), nil
	})
	return err
}

func (t *tx) UpdateHotelDetails(_ context.Context, h *model.Hotel) error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	if t.db.FailHotelUpdate != nil {
		return t.db.FailHotelUpdate
	}
	cur, ok := t.db.hotels[h.ID]
	if !ok {
		return hotelNotFound(h.ID)
	}
	prev := copyHotel(cur)
	cur.Name = h.Name
	cur.Location = h.Location
	cur.Description = h.Description
	cur.Price = h.Price
	cur.Amenities = append([]string(nil), h.Amenities...)
	cur.Images = append([]string(nil), h.Images...)
	cur.Rating = h.Rating
	cur.UpdatedAt = t.db.now()
	h.UpdatedAt = cur.UpdatedAt
	t.undo = append(t.undo, func() {
		if c, ok := t.db.hotels[prev.ID]; ok {
			inv := c.Inventory
			*c = *prev
			c.Inventory = inv
		}
	})
	return nil
}

func (t *tx) InsertHotel(_ context.Context, h *model.Hotel) error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	t.db.nextHotel++
	h.ID = t.db.nextHotel
	h.CreatedAt = t.db.now()
	h.UpdatedAt = h.CreatedAt
	h.Inventory = model.NewInventory(h.TotalRooms, h.AvailableRooms)
	t.db.hotels[h.ID] = copyHotel(h)
	id := h.ID
	t.undo = append(t.undo, func() { delete(t.db.hotels, id) })
	return nil
}

func (t *tx) DeleteHotel(_ context.Context, hotelID uint64) error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	h, ok := t.db.hotels[hotelID]
	if !ok {
		return hotelNotFound(hotelID)
	}
	var removed []*model.Booking
	for _, b := range t.db.bookings {
		if b.HotelID != hotelID {
			continue
		}
		if !b.Status.Terminal() {
			return fmt.Errorf("hotel %d: %w", hotelID, booking.ErrHotelInUse)
		}
		removed = append(removed, b)
	}
	delete(t.db.hotels, hotelID)
	for _, b := range removed {
		delete(t.db.bookings, b.ID)
	}
	t.undo = append(t.undo, func() {
		t.db.hotels[hotelID] = h
		for _, b := range removed {
			t.db.bookings[b.ID] = b
		}
	})
	return nil
}

func (t *tx) InsertBooking(_ context.Context, b *model.Booking) error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	if t.db.FailBookingInsert != nil {
		return t.db.FailBookingInsert
	}
	if _, ok := t.db.hotels[b.HotelID]; !ok {
		return hotelNotFound(b.HotelID)
	}
	t.db.nextBooking++
	b.ID = t.db.nextBooking
	b.CreatedAt = t.db.now()
	b.UpdatedAt = b.CreatedAt
	t.db.bookings[b.ID] = copyBooking(b)
	id := b.ID
	t.undo = append(t.undo, func() { delete(t.db.bookings, id) })
	return nil
}

func (t *tx) BookingForUpdate(ctx context.Context, id uint64) (*model.Booking, error) {
	return t.db.Booking(ctx, id)
}

func (t *tx) UpdateBookingStatus(_ context.Context, b *model.Booking) error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	cur, ok := t.db.bookings[b.ID]
	if !ok {
		return bookingNotFound(b.ID)
	}
	prev := *cur
	cur.Status = b.Status
	cur.PaymentStatus = b.PaymentStatus
	cur.UpdatedAt = t.db.now()
	b.UpdatedAt = cur.UpdatedAt
	t.undo = append(t.undo, func() {
		if c, ok := t.db.bookings[prev.ID]; ok {
			*c = prev
		}
	})
	return nil
}

// ---- booking.Store ----

// Booking implements booking.Store.
func (db *DB) Booking(_ context.Context, id uint64) (*model.Booking, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	b, ok := db.bookings[id]
	if !ok {
		return nil, bookingNotFound(id)
	}
	return copyBooking(b), nil
}

// ---- hotel catalog ----

// Hotels returns the hotel repository view of db.
func (db *DB) Hotels() *Hotels { return &Hotels{db: db} }

// Hotels serves hotel reads and descriptive updates.
type Hotels struct{ db *DB }

// GetByID returns a single hotel.
func (r *Hotels) GetByID(_ context.Context, id uint64) (*model.Hotel, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	h, ok := r.db.hotels[id]
	if !ok {
		return nil, hotelNotFound(id)
	}
	return copyHotel(h), nil
}

// Search filters hotels by city and price, newest first.
func (r *Hotels) Search(_ context.Context, q model.HotelQuery) ([]model.Hotel, int64, error) {
	offset := q.Normalize()
	r.db.mu.RLock()
	var matched []model.Hotel
	for _, h := range r.db.hotels {
		if q.City != "" && !strings.EqualFold(h.Location.City, strings.TrimSpace(q.City)) {
			continue
		}
		if q.MinPrice != nil && h.Price < *q.MinPrice {
			continue
		}
		if q.MaxPrice != nil && h.Price > *q.MaxPrice {
			continue
		}
		matched = append(matched, *copyHotel(h))
	}
	r.db.mu.RUnlock()
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	total := int64(len(matched))
	if offset >= len(matched) {
		return []model.Hotel{}, total, nil
	}
	end := offset + q.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

// Recommended returns the best rated hotels, newest first among equals.
func (r *Hotels) Recommended(_ context.Context, limit int) ([]model.Hotel, error) {
	r.db.mu.RLock()
	all := make([]model.Hotel, 0, len(r.db.hotels))
	for _, h := range r.db.hotels {
		all = append(all, *copyHotel(h))
	}
	r.db.mu.RUnlock()
	sort.Slice(all, func(i, j int) bool {
		if all[i].Rating != all[j].Rating {
			return all[i].Rating > all[j].Rating
		}
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// ListOccupancy returns every hotel's inventory ordered by name.
func (r *Hotels) ListOccupancy(_ context.Context) ([]model.HotelOccupancy, error) {
	r.db.mu.RLock()
	out := make([]model.HotelOccupancy, 0, len(r.db.hotels))
	for _, h := range r.db.hotels {
		out = append(out, model.HotelOccupancy{ID: h.ID, Name: h.Name, Inventory: h.Inventory})
	}
	r.db.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ---- bookings ----

// Bookings returns the booking repository view of db.
func (db *DB) Bookings() *Bookings { return &Bookings{db: db} }

// Bookings serves booking reads.
type Bookings struct{ db *DB }

// GetByID returns a single booking.
func (r *Bookings) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	return r.db.Booking(ctx, id)
}

func (r *Bookings) collect(keep func(*model.Booking) bool) []model.Booking {
	r.db.mu.RLock()
	out := make([]model.Booking, 0)
	for _, b := range r.db.bookings {
		if keep(b) {
			out = append(out, *b)
		}
	}
	r.db.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// ListByUser returns a user's bookings, newest first.
func (r *Bookings) ListByUser(_ context.Context, userID uint64) ([]model.Booking, error) {
	return r.collect(func(b *model.Booking) bool { return b.UserID == userID }), nil
}

// ListAll returns one page of all bookings, newest first.
func (r *Bookings) ListAll(_ context.Context, page, pageSize int) ([]model.Booking, int64, error) {
	q := model.HotelQuery{Page: page, PageSize: pageSize}
	offset := q.Normalize()
	all := r.collect(func(*model.Booking) bool { return true })
	total := int64(len(all))
	if offset >= len(all) {
		return []model.Booking{}, total, nil
	}
	end := offset + q.PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

// DueForCompletion returns confirmed bookings whose check-out is not after
// before, earliest check-out first.
func (r *Bookings) DueForCompletion(_ context.Context, before time.Time, limit int) ([]uint64, error) {
	r.db.mu.RLock()
	var due []*model.Booking
	for _, b := range r.db.bookings {
		if b.Status == model.BookingConfirmed && !b.CheckOut.After(before) {
			due = append(due, b)
		}
	}
	r.db.mu.RUnlock()
	sort.Slice(due, func(i, j int) bool {
		if !due[i].CheckOut.Equal(due[j].CheckOut) {
			return due[i].CheckOut.Before(due[j].CheckOut)
		}
		return due[i].ID < due[j].ID
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	ids := make([]uint64, 0, len(due))
	for _, b := range due {
		ids = append(ids, b.ID)
	}
	return ids, nil
}
