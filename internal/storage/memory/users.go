package memory

import (
	"context"
	"strings"
	"time"

	"github.com/iliyamo/hotel-booking/internal/model"
	"github.com/iliyamo/hotel-booking/internal/repository"
)

// Users returns the user repository view of db.
func (db *DB) Users() *Users { return &Users{db: db} }

// Users stores accounts keyed by lower-cased email.
type Users struct{ db *DB }

// Create inserts u and fills its ID and timestamps.
func (r *Users) Create(_ context.Context, u *model.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if _, taken := r.db.usersByEmail[u.Email]; taken {
		return repository.ErrEmailExists
	}
	r.db.nextUser++
	u.ID = r.db.nextUser
	u.CreatedAt = r.db.now()
	u.UpdatedAt = u.CreatedAt
	c := *u
	r.db.users[u.ID] = &c
	r.db.usersByEmail[u.Email] = u.ID
	return nil
}

// GetByEmail fetches a user by normalized email.
func (r *Users) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	id, ok := r.db.usersByEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	c := *r.db.users[id]
	return &c, nil
}

// GetByID fetches a user by id.
func (r *Users) GetByID(_ context.Context, id uint64) (*model.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	u, ok := r.db.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

// Tokens returns the refresh token view of db.
func (db *DB) Tokens() *Tokens { return &Tokens{db: db} }

// Tokens stores refresh token hashes.
type Tokens struct{ db *DB }

// StoreRefresh records a refresh token hash.
func (r *Tokens) StoreRefresh(_ context.Context, userID uint64, tokenHash string, exp time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.nextToken++
	r.db.tokens[tokenHash] = &model.RefreshToken{
		ID:        r.db.nextToken,
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: exp.UTC(),
		CreatedAt: r.db.now(),
	}
	return nil
}

// ValidateRefresh returns the owner of a live token.
func (r *Tokens) ValidateRefresh(_ context.Context, tokenHash string) (uint64, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	t, ok := r.db.tokens[tokenHash]
	if !ok || t.RevokedAt != nil || r.db.now().After(t.ExpiresAt) {
		return 0, repository.ErrInvalidRefresh
	}
	return t.UserID, nil
}

// RevokeByHash marks one live token as revoked.  An unknown or already
// revoked token is ErrInvalidRefresh.
func (r *Tokens) RevokeByHash(_ context.Context, tokenHash string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	t, ok := r.db.tokens[tokenHash]
	if !ok || t.RevokedAt != nil {
		return repository.ErrInvalidRefresh
	}
	now := r.db.now()
	t.RevokedAt = &now
	return nil
}

// RevokeAllForUser revokes every live token of a user.
func (r *Tokens) RevokeAllForUser(_ context.Context, userID uint64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	now := r.db.now()
	for _, t := range r.db.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
		}
	}
	return nil
}

// PurgeExpired drops tokens that expired or were revoked before cutoff.
func (r *Tokens) PurgeExpired(_ context.Context, cutoff time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for hash, t := range r.db.tokens {
		if t.ExpiresAt.Before(cutoff) || (t.RevokedAt != nil && t.RevokedAt.Before(cutoff)) {
			delete(r.db.tokens, hash)
			n++
		}
	}
	return n, nil
}
