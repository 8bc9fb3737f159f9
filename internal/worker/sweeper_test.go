package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/hotel-booking/internal/booking"
	"github.com/iliyamo/hotel-booking/internal/lock"
	"github.com/iliyamo/hotel-booking/internal/model"
	"github.com/iliyamo/hotel-booking/internal/storage/memory"
)

type fixture struct {
	db    *memory.DB
	coord *booking.Coordinator
	hotel *model.Hotel
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return f.now }
	f.db = memory.New(clock)
	f.coord = booking.NewCoordinator(booking.CoordinatorConfig{Store: f.db, Locker: lock.NewLocal(), Now: clock})
	f.hotel = &model.Hotel{Name: "Sea View", Price: 100}
	require.NoError(t, f.coord.CreateHotel(context.Background(), f.hotel, 10))
	return f
}

func (f *fixture) book(t *testing.T, checkIn time.Time, nights int, confirm bool) *model.Booking {
	t.Helper()
	req, err := booking.NewPlaceRequest(1, f.hotel.ID, checkIn, checkIn.AddDate(0, 0, nights), model.Guests{Adults: 1}, 1, "")
	require.NoError(t, err)
	b, err := f.coord.PlaceBooking(context.Background(), req)
	require.NoError(t, err)
	if confirm {
		b, err = f.coord.ConfirmBooking(context.Background(), b.ID, booking.Requester{Elevated: true})
		require.NoError(t, err)
	}
	return b
}

func TestSweepOnce_CompletesFinishedStays(t *testing.T) {
	f := newFixture(t)
	ended := f.book(t, f.now.AddDate(0, 0, -3), 2, true)    // checked out yesterday
	ongoing := f.book(t, f.now.AddDate(0, 0, -1), 3, true)  // still staying
	unpaid := f.book(t, f.now.AddDate(0, 0, -5), 1, false) // never confirmed

	s := &Sweeper{Due: f.db.Bookings(), Completer: f.coord, Batch: 1, Log: zap.NewNop(), Now: func() time.Time { return f.now }}
	n, err := s.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.db.Booking(context.Background(), ended.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCompleted, got.Status)
	got, _ = f.db.Booking(context.Background(), ongoing.ID)
	assert.Equal(t, model.BookingConfirmed, got.Status)
	got, _ = f.db.Booking(context.Background(), unpaid.ID)
	assert.Equal(t, model.BookingPending, got.Status)

	h, err := f.db.Hotels().GetByID(context.Background(), f.hotel.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, h.AvailableRooms, "completed stay returned its room")

	n, err = s.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSweepOnce_DrainsInBatches(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		f.book(t, f.now.AddDate(0, 0, -4), 2, true)
	}
	s := &Sweeper{Due: f.db.Bookings(), Completer: f.coord, Batch: 2, Now: func() time.Time { return f.now }}
	n, err := s.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

type stuckCompleter struct{ calls int }

func (s *stuckCompleter) CompleteBooking(context.Context, uint64) (*model.Booking, error) {
	s.calls++
	return nil, errors.New("db down")
}

type staticDue []uint64

func (d staticDue) DueForCompletion(_ context.Context, _ time.Time, limit int) ([]uint64, error) {
	if limit < len(d) {
		return d[:limit], nil
	}
	return d, nil
}

func TestSweepOnce_FailingBookingDoesNotLoop(t *testing.T) {
	c := &stuckCompleter{}
	s := &Sweeper{Due: staticDue{1, 2, 3}, Completer: c, Batch: 2}
	n, err := s.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 2, c.calls)
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := newFixture(t)
	f.book(t, f.now.AddDate(0, 0, -4), 2, true)
	s := &Sweeper{Due: f.db.Bookings(), Completer: f.coord, Interval: time.Hour, Now: func() time.Time { return f.now }}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { s.Run(ctx); close(done) }()

	require.Eventually(t, func() bool {
		items, _, _ := f.db.Bookings().ListAll(context.Background(), 1, 10)
		return len(items) == 1 && items[0].Status == model.BookingCompleted
	}, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestPurgeTokens_DropsDeadTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tokens := f.db.Tokens()
	require.NoError(t, tokens.StoreRefresh(ctx, 1, "old", f.now.Add(-time.Hour)))
	require.NoError(t, tokens.StoreRefresh(ctx, 1, "live", f.now.Add(time.Hour)))
	require.NoError(t, tokens.StoreRefresh(ctx, 1, "revoked", f.now.Add(time.Hour)))
	require.NoError(t, tokens.RevokeByHash(ctx, "revoked"))

	f.now = f.now.Add(time.Minute)
	s := &Sweeper{Due: f.db.Bookings(), Completer: f.coord, Tokens: tokens, Now: func() time.Time { return f.now }}
	require.NoError(t, s.PurgeTokens(ctx))

	uid, err := tokens.ValidateRefresh(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), uid)
	n, err := tokens.PurgeExpired(ctx, f.now)
	require.NoError(t, err)
	assert.Zero(t, n, "old and revoked tokens were already gone")
}
