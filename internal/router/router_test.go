package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/hotel-booking/internal/booking"
	"github.com/iliyamo/hotel-booking/internal/config"
	"github.com/iliyamo/hotel-booking/internal/handler"
	"github.com/iliyamo/hotel-booking/internal/lock"
	"github.com/iliyamo/hotel-booking/internal/model"
	"github.com/iliyamo/hotel-booking/internal/storage/memory"
)

type testEnv struct {
	e      *echo.Echo
	db     *memory.DB
	locker *lock.Local
	admin  string
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	return setupWithTimeout(t, 0)
}

// setupWithTimeout builds the app with the given handler request timeout
// (0 means the handler default).
func setupWithTimeout(t *testing.T, requestTimeout time.Duration) *testEnv {
	t.Helper()
	clock := func() time.Time { return time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC) }
	db := memory.New(clock)
	locker := lock.NewLocal()
	coord := booking.NewCoordinator(booking.CoordinatorConfig{
		Store: db, Locker: locker, LockWait: 100 * time.Millisecond, Now: clock,
	})
	cfg := config.Config{
		JWTSecret: "test-secret", AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: bcrypt.MinCost,
		AdminEmail: "admin@example.com", AdminPassword: "admin123",
	}
	auth := handler.NewAuthHandler(cfg, db.Users(), db.Tokens(), nil)
	require.NoError(t, auth.EnsureAdmin(context.Background()))

	e := New(Deps{
		Auth:      auth,
		Hotels:    handler.NewHotelHandler(db.Hotels(), coord, nil, nil, requestTimeout),
		Bookings:  handler.NewBookingHandler(db.Bookings(), db.Hotels(), coord, nil, requestTimeout),
		JWTSecret: cfg.JWTSecret,
	})
	env := &testEnv{e: e, db: db, locker: locker}
	env.admin = env.login(t, "admin@example.com", "admin123")
	return env
}

func (env *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

type tokens struct {
	Access  struct{ Token string } `json:"access"`
	Refresh struct{ Token string } `json:"refresh"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (env *testEnv) login(t *testing.T, email, password string) string {
	t.Helper()
	rec := env.do(http.MethodPost, "/v1/auth/login", "", echo.Map{"email": email, "password": password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[tokens](t, rec).Access.Token
}

func (env *testEnv) register(t *testing.T, name, email string) string {
	t.Helper()
	rec := env.do(http.MethodPost, "/v1/auth/register", "", echo.Map{"name": name, "email": email, "password": "secret12"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[tokens](t, rec).Access.Token
}

func (env *testEnv) createHotel(t *testing.T, name string, rooms int, price float64) model.Hotel {
	t.Helper()
	rec := env.do(http.MethodPost, "/v1/hotels", env.admin, echo.Map{
		"name": name, "city": "Lisbon", "address": "Rua Augusta 1", "price": price,
		"rating": 4.5, "amenities": []string{"wifi"}, "images": []string{"https://img.example.com/1.jpg"},
		"total_rooms": rooms,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[model.Hotel](t, rec)
}

func (env *testEnv) book(t *testing.T, token string, hotelID uint64, rooms int) *httptest.ResponseRecorder {
	t.Helper()
	return env.do(http.MethodPost, "/v1/bookings", token, echo.Map{
		"hotel_id": hotelID, "check_in": "2025-02-01", "check_out": "2025-02-04",
		"guests": echo.Map{"adults": 2}, "rooms": rooms,
	})
}

func TestHealth(t *testing.T) {
	env := setup(t)
	rec := env.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAuthFlow(t *testing.T) {
	env := setup(t)

	rec := env.do(http.MethodPost, "/v1/auth/register", "", echo.Map{"name": "Ana", "email": "Ana@Example.com", "password": "secret12"})
	require.Equal(t, http.StatusCreated, rec.Code)
	pair := decode[tokens](t, rec)

	rec = env.do(http.MethodPost, "/v1/auth/register", "", echo.Map{"name": "Ana", "email": "ana@example.com", "password": "secret12"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(http.MethodPost, "/v1/auth/register", "", echo.Map{"email": "bad", "password": "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email"`)

	rec = env.do(http.MethodPost, "/v1/auth/login", "", echo.Map{"email": "ana@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodGet, "/v1/me", pair.Access.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email":"ana@example.com"`)
	assert.Contains(t, rec.Body.String(), `"role":"USER"`)

	rec = env.do(http.MethodPost, "/v1/auth/refresh", "", echo.Map{"refresh_token": pair.Refresh.Token})
	require.Equal(t, http.StatusOK, rec.Code)
	rotated := decode[tokens](t, rec)
	assert.NotEqual(t, pair.Refresh.Token, rotated.Refresh.Token)

	rec = env.do(http.MethodPost, "/v1/auth/refresh", "", echo.Map{"refresh_token": pair.Refresh.Token})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "old refresh token is revoked")

	rec = env.do(http.MethodPost, "/v1/auth/refresh-access", "", echo.Map{"refresh_token": rotated.Refresh.Token})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodPost, "/v1/auth/logout", "", echo.Map{"refresh_token": rotated.Refresh.Token})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(http.MethodPost, "/v1/auth/refresh-access", "", echo.Map{"refresh_token": rotated.Refresh.Token})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodPost, "/v1/auth/logout", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHotelAdmin(t *testing.T) {
	env := setup(t)
	user := env.register(t, "Ana", "ana@example.com")

	body := echo.Map{"name": "X", "city": "Porto", "address": "A", "price": 50, "total_rooms": 3}
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodPost, "/v1/hotels", "", body).Code)
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodPost, "/v1/hotels", user, body).Code)

	rec := env.do(http.MethodPost, "/v1/hotels", env.admin, echo.Map{
		"name": "X", "city": "Porto", "address": "A", "price": 50, "rating": 7,
		"images": []string{"ftp:/broken"}, "total_rooms": -1,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	for _, field := range []string{"rating", "images[0]", "total_rooms"} {
		assert.Contains(t, rec.Body.String(), `"`+field+`"`)
	}

	h := env.createHotel(t, "Sea View", 10, 120)
	assert.Equal(t, 10, h.TotalRooms)
	assert.Equal(t, 10, h.AvailableRooms)

	rec = env.do(http.MethodPatch, "/v1/hotels/"+itoa(h.ID), env.admin, echo.Map{"price": 99.5, "total_rooms": 12})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[model.Hotel](t, rec)
	assert.Equal(t, 99.5, got.Price)
	assert.Equal(t, "Sea View", got.Name)
	assert.Equal(t, 12, got.TotalRooms)
	assert.Equal(t, 12, got.AvailableRooms)

	rec = env.do(http.MethodGet, "/v1/hotels?city=lisbon&max_price=100", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Items []model.Hotel `json:"items"`
		Total int64         `json:"total"`
	}](t, rec)
	require.Len(t, list.Items, 1)
	assert.Equal(t, int64(1), list.Total)

	rec = env.do(http.MethodGet, "/v1/hotels?min_price=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/v1/hotels/recommended", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/v1/hotels/999", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/v1/hotels/abc", "", nil).Code)

	assert.Equal(t, http.StatusNoContent, env.do(http.MethodDelete, "/v1/hotels/"+itoa(h.ID), env.admin, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/v1/hotels/"+itoa(h.ID), "", nil).Code)
}

func TestBookingLifecycle(t *testing.T) {
	env := setup(t)
	ana := env.register(t, "Ana", "ana@example.com")
	bob := env.register(t, "Bob", "bob@example.com")
	h := env.createHotel(t, "Sea View", 5, 100)

	rec := env.book(t, ana, h.ID, 2)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	b := decode[model.Booking](t, rec)
	assert.Equal(t, model.BookingPending, b.Status)
	assert.Equal(t, 600.0, b.TotalPrice)

	hotel := decode[model.Hotel](t, env.do(http.MethodGet, "/v1/hotels/"+itoa(h.ID), "", nil))
	assert.Equal(t, 3, hotel.AvailableRooms)
	assert.InDelta(t, 40.0, hotel.OccupancyRate, 1e-9)

	path := "/v1/bookings/" + itoa(b.ID)
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, path, bob, nil).Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, path, ana, nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodPut, path+"/cancel", bob, nil).Code)

	assert.Equal(t, http.StatusForbidden, env.do(http.MethodPut, "/v1/admin/bookings/"+itoa(b.ID)+"/confirm", ana, nil).Code)
	rec = env.do(http.MethodPut, "/v1/admin/bookings/"+itoa(b.ID)+"/confirm", env.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	b = decode[model.Booking](t, rec)
	assert.Equal(t, model.BookingConfirmed, b.Status)
	assert.Equal(t, model.PaymentPaid, b.PaymentStatus)

	rec = env.do(http.MethodPut, path+"/cancel", ana, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	b = decode[model.Booking](t, rec)
	assert.Equal(t, model.BookingCancelled, b.Status)
	assert.Equal(t, model.PaymentRefunded, b.PaymentStatus)

	rec = env.do(http.MethodPut, path+"/cancel", ana, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "second cancel is an invalid transition")

	hotel = decode[model.Hotel](t, env.do(http.MethodGet, "/v1/hotels/"+itoa(h.ID), "", nil))
	assert.Equal(t, 5, hotel.AvailableRooms)

	mine := decode[struct {
		Items []model.Booking `json:"items"`
	}](t, env.do(http.MethodGet, "/v1/bookings", ana, nil))
	assert.Len(t, mine.Items, 1)
	mine = decode[struct {
		Items []model.Booking `json:"items"`
	}](t, env.do(http.MethodGet, "/v1/bookings", bob, nil))
	assert.Empty(t, mine.Items)
}

func TestBookingRejections(t *testing.T) {
	env := setup(t)
	ana := env.register(t, "Ana", "ana@example.com")
	h := env.createHotel(t, "Tiny", 1, 80)

	rec := env.book(t, ana, h.ID, 2)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "not enough rooms")

	rec = env.book(t, ana, 999, 1)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodPost, "/v1/bookings", ana, echo.Map{
		"hotel_id": h.ID, "check_in": "someday", "check_out": "2025-02-01", "guests": echo.Map{"adults": 1}, "rooms": 1,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"check_in"`)

	rec = env.do(http.MethodPost, "/v1/bookings", ana, echo.Map{
		"hotel_id": h.ID, "check_in": "2025-02-03", "check_out": "2025-02-01", "guests": echo.Map{"adults": 0}, "rooms": 1,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"check_out"`)
	assert.Contains(t, rec.Body.String(), `"guests.adults"`)

	assert.Equal(t, http.StatusUnauthorized, env.book(t, "", h.ID, 1).Code)

	hotel := decode[model.Hotel](t, env.do(http.MethodGet, "/v1/hotels/"+itoa(h.ID), "", nil))
	assert.Equal(t, 1, hotel.AvailableRooms)
}

func TestBusyHotelReturns503(t *testing.T) {
	env := setup(t)
	ana := env.register(t, "Ana", "ana@example.com")
	h := env.createHotel(t, "Sea View", 5, 100)

	unlock, err := env.locker.Lock(context.Background(), "hotel:"+itoa(h.ID))
	require.NoError(t, err)
	rec := env.book(t, ana, h.ID, 1)
	unlock()

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get(echo.HeaderRetryAfter))
	assert.Equal(t, http.StatusCreated, env.book(t, ana, h.ID, 1).Code)
}

func TestBusyHotel_RequestTimeoutEqualsLockWait(t *testing.T) {
	env := setupWithTimeout(t, 100*time.Millisecond)
	ana := env.register(t, "Ana", "ana@example.com")
	h := env.createHotel(t, "Sea View", 5, 100)

	unlock, err := env.locker.Lock(context.Background(), "hotel:"+itoa(h.ID))
	require.NoError(t, err)
	rec := env.book(t, ana, h.ID, 1)
	unlock()

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, rec.Body.String())
	assert.Equal(t, "1", rec.Header().Get(echo.HeaderRetryAfter))
}

func TestAdminViewsAndHotelInUse(t *testing.T) {
	env := setup(t)
	ana := env.register(t, "Ana", "ana@example.com")
	h := env.createHotel(t, "Sea View", 4, 100)

	rec := env.book(t, ana, h.ID, 1)
	require.Equal(t, http.StatusCreated, rec.Code)
	b := decode[model.Booking](t, rec)

	assert.Equal(t, http.StatusConflict, env.do(http.MethodDelete, "/v1/hotels/"+itoa(h.ID), env.admin, nil).Code)

	rec = env.do(http.MethodPatch, "/v1/hotels/"+itoa(h.ID), env.admin, echo.Map{"name": "Renamed", "total_rooms": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "cannot shrink below reserved rooms")
	same := decode[model.Hotel](t, env.do(http.MethodGet, "/v1/hotels/"+itoa(h.ID), "", nil))
	assert.Equal(t, "Sea View", same.Name, "a refused resize keeps the old details")
	assert.Equal(t, 4, same.TotalRooms)

	assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/v1/admin/occupancy", ana, nil).Code)
	occ := decode[struct {
		Items []model.HotelOccupancy `json:"items"`
	}](t, env.do(http.MethodGet, "/v1/admin/occupancy", env.admin, nil))
	require.Len(t, occ.Items, 1)
	assert.Equal(t, 3, occ.Items[0].AvailableRooms)
	assert.InDelta(t, 25.0, occ.Items[0].OccupancyRate, 1e-9)

	all := decode[struct {
		Items []model.Booking `json:"items"`
		Total int64           `json:"total"`
	}](t, env.do(http.MethodGet, "/v1/admin/bookings?page=1&page_size=10", env.admin, nil))
	assert.Equal(t, int64(1), all.Total)

	// pending bookings cannot be completed
	rec = env.do(http.MethodPut, "/v1/admin/bookings/"+itoa(b.ID)+"/complete", env.admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	require.Equal(t, http.StatusOK, env.do(http.MethodPut, "/v1/admin/bookings/"+itoa(b.ID)+"/confirm", env.admin, nil).Code)
	rec = env.do(http.MethodPut, "/v1/admin/bookings/"+itoa(b.ID)+"/complete", env.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.BookingCompleted, decode[model.Booking](t, rec).Status)

	assert.Equal(t, http.StatusNoContent, env.do(http.MethodDelete, "/v1/hotels/"+itoa(h.ID), env.admin, nil).Code)
}

func itoa(id uint64) string { return strconv.FormatUint(id, 10) }

func TestRefresh_ConcurrentRotationHasOneWinner(t *testing.T) {
	env := setup(t)
	env.register(t, "Ana", "ana@example.com")
	rec := env.do(http.MethodPost, "/v1/auth/login", "", echo.Map{"email": "ana@example.com", "password": "secret12"})
	require.Equal(t, http.StatusOK, rec.Code)
	raw := decode[tokens](t, rec).Refresh.Token

	const callers = 8
	codes := make([]int, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = env.do(http.MethodPost, "/v1/auth/refresh", "", echo.Map{"refresh_token": raw}).Code
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, code := range codes {
		if code == http.StatusOK {
			ok++
		} else {
			assert.Equal(t, http.StatusUnauthorized, code)
		}
	}
	assert.Equal(t, 1, ok)
}
