// Package worker runs background jobs next to the HTTP server.
package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/hotel-booking/internal/booking"
	"github.com/iliyamo/hotel-booking/internal/model"
)

// DueLister finds confirmed bookings whose check-out is at or before a time.
type DueLister interface {
	DueForCompletion(ctx context.Context, before time.Time, limit int) ([]uint64, error)
}

// Completer completes one booking and returns its rooms to inventory.
type Completer interface {
	CompleteBooking(ctx context.Context, bookingID uint64) (*model.Booking, error)
}

// TokenPurger deletes refresh tokens that can no longer be used.
type TokenPurger interface {
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper periodically completes bookings whose stay has ended.
type Sweeper struct {
	Due       DueLister
	Completer Completer
	Tokens    TokenPurger // optional
	Interval  time.Duration
	Batch     int
	Log       *zap.Logger
	Now       func() time.Time
}

// Run sweeps once immediately and then every Interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
			s.log().Error("completion sweep failed", zap.Error(err))
		}
		if err := s.PurgeTokens(ctx); err != nil && ctx.Err() == nil {
			s.log().Warn("refresh token purge failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// SweepOnce completes every due booking in batches and returns how many it
// completed.  A booking changed concurrently (cancelled, or completed by an
// admin) is skipped.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	batch := s.Batch
	if batch <= 0 {
		batch = 100
	}
	now := s.now()

	done := 0
	skipped := map[uint64]bool{}
	for {
		limit := batch + len(skipped)
		ids, err := s.Due.DueForCompletion(ctx, now, limit)
		if err != nil {
			return done, err
		}
		progressed := false
		for _, id := range ids {
			if skipped[id] {
				continue
			}
			if _, err := s.Completer.CompleteBooking(ctx, id); err != nil {
				if ctx.Err() != nil {
					return done, ctx.Err()
				}
				if !errors.Is(err, booking.ErrInvalidTransition) && !errors.Is(err, booking.ErrNotFound) {
					s.log().Warn("complete booking failed", zap.Uint64("booking_id", id), zap.Error(err))
				}
				skipped[id] = true
				continue
			}
			done++
			progressed = true
		}
		if !progressed || len(ids) < limit {
			break
		}
	}
	if done > 0 {
		s.log().Info("completed finished stays", zap.Int("count", done))
	}
	return done, nil
}

// PurgeTokens removes refresh tokens that expired or were revoked before now.
func (s *Sweeper) PurgeTokens(ctx context.Context) error {
	if s.Tokens == nil {
		return nil
	}
	n, err := s.Tokens.PurgeExpired(ctx, s.now())
	if err != nil {
		return err
	}
	if n > 0 {
		s.log().Debug("purged refresh tokens", zap.Int64("count", n))
	}
	return nil
}

func (s *Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Sweeper) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}
