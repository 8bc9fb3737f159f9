package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hotel-booking/internal/booking"
	"github.com/iliyamo/hotel-booking/internal/model"
)

func TestHotelRepo_GetByID_DecodesJSONColumns(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewHotelRepo(db)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM hotels WHERE id = ?")).
		WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows(hotelCols).AddRow(
			1, "Sea View", "Lisbon", "Rua 1", 38.7, nil, "by the sea", 120.5,
			[]byte(`["wifi","pool"]`), []byte(`[]`), 4.5, 20, 15, now, now))

	h, err := repo.GetByID(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, "Sea View", h.Name)
	assert.Equal(t, []string{"wifi", "pool"}, h.Amenities)
	assert.Empty(t, h.Images)
	require.NotNil(t, h.Location.Lat)
	assert.Equal(t, 38.7, *h.Location.Lat)
	assert.Nil(t, h.Location.Lng)
	assert.InDelta(t, 25.0, h.OccupancyRate, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHotelRepo_GetByID_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewHotelRepo(db)

	mock.ExpectQuery("FROM hotels WHERE id").WillReturnRows(sqlmock.NewRows(hotelCols))

	_, err := repo.GetByID(context.Background(), 9)
	assert.ErrorIs(t, err, booking.ErrNotFound)
}

func TestHotelRepo_Search_FiltersAndPaginates(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewHotelRepo(db)
	minPrice := 50.0
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM hotels WHERE LOWER(city) = ? AND price >= ?")).
		WithArgs("lisbon", minPrice).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(21))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?")).
		WithArgs("lisbon", minPrice, 10, 10).
		WillReturnRows(sqlmock.NewRows(hotelCols).AddRow(
			3, "Alfama", "Lisbon", "", nil, nil, "", 80.0, []byte(`[]`), []byte(`[]`), 4.0, 5, 5, now, now))

	hotels, total, err := repo.Search(context.Background(), model.HotelQuery{
		City: " Lisbon ", MinPrice: &minPrice, Page: 2, PageSize: 10,
	})

	require.NoError(t, err)
	assert.Equal(t, int64(21), total)
	require.Len(t, hotels, 1)
	assert.Equal(t, uint64(3), hotels[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHotelRepo_ListOccupancy(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewHotelRepo(db)

	mock.ExpectQuery("SELECT id, name, total_rooms, available_rooms FROM hotels").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "total_rooms", "available_rooms"}).
			AddRow(1, "A", 10, 7).
			AddRow(2, "B", 0, 0))

	out, err := repo.ListOccupancy(context.Background())

	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.InDelta(t, 30.0, out[0].OccupancyRate, 1e-9)
	assert.Zero(t, out[1].OccupancyRate)
}

func TestBookingRepo_DueForCompletion(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewBookingRepo(db)
	cutoff := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = 'confirmed' AND check_out <= ?")).
		WithArgs(cutoff, 50).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(4).AddRow(9))

	ids, err := repo.DueForCompletion(context.Background(), cutoff, 50)

	require.NoError(t, err)
	assert.Equal(t, []uint64{4, 9}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_Create_DuplicateEmail(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	err := repo.Create(context.Background(), &model.User{Email: "A@B.com", PasswordHash: "x", Role: model.RoleUser})
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestUserRepo_GetByEmail_NormalizesAndMapsMiss(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectQuery("FROM users WHERE email=").
		WithArgs("a@b.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "password_hash", "role", "is_active", "created_at", "updated_at"}))

	_, err := repo.GetByEmail(context.Background(), "  A@B.com ")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepo_ValidateRefresh(t *testing.T) {
	cols := []string{"user_id", "expires_at", "revoked_at"}
	future := time.Now().UTC().Add(time.Hour)

	t.Run("live token", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery("FROM refresh_tokens").WithArgs("h").
			WillReturnRows(sqlmock.NewRows(cols).AddRow(5, future, nil))
		uid, err := NewTokenRepo(db).ValidateRefresh(context.Background(), "h")
		require.NoError(t, err)
		assert.Equal(t, uint64(5), uid)
	})
	t.Run("revoked", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery("FROM refresh_tokens").
			WillReturnRows(sqlmock.NewRows(cols).AddRow(5, future, time.Now().UTC()))
		_, err := NewTokenRepo(db).ValidateRefresh(context.Background(), "h")
		assert.ErrorIs(t, err, ErrInvalidRefresh)
	})
	t.Run("expired", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery("FROM refresh_tokens").
			WillReturnRows(sqlmock.NewRows(cols).AddRow(5, time.Now().UTC().Add(-time.Minute), nil))
		_, err := NewTokenRepo(db).ValidateRefresh(context.Background(), "h")
		assert.ErrorIs(t, err, ErrInvalidRefresh)
	})
	t.Run("unknown", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery("FROM refresh_tokens").WillReturnRows(sqlmock.NewRows(cols))
		_, err := NewTokenRepo(db).ValidateRefresh(context.Background(), "h")
		assert.ErrorIs(t, err, ErrInvalidRefresh)
	})
}

func TestTokenRepo_PurgeExpired(t *testing.T) {
	db, mock := setupMockDB(t)
	cutoff := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("DELETE FROM refresh_tokens").
		WithArgs(cutoff, cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := NewTokenRepo(db).PurgeExpired(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepo_RevokeByHash(t *testing.T) {
	t.Run("live token", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectExec("UPDATE refresh_tokens SET revoked_at").
			WithArgs(sqlmock.AnyArg(), "h").
			WillReturnResult(sqlmock.NewResult(0, 1))
		require.NoError(t, NewTokenRepo(db).RevokeByHash(context.Background(), "h"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("already revoked", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectExec("UPDATE refresh_tokens SET revoked_at").
			WithArgs(sqlmock.AnyArg(), "h").
			WillReturnResult(sqlmock.NewResult(0, 0))
		err := NewTokenRepo(db).RevokeByHash(context.Background(), "h")
		assert.ErrorIs(t, err, ErrInvalidRefresh)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
