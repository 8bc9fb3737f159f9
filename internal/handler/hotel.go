package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/hotel-booking/internal/booking"
	"github.com/iliyamo/hotel-booking/internal/model"
)

// recommendedLimit is how many hotels the recommended listing returns.
const recommendedLimit = 6

// HotelHandler serves the public catalog and the admin hotel endpoints.
// Capacity changes always go through the coordinator.
type HotelHandler struct {
	Hotels      HotelReader
	Coordinator *booking.Coordinator
	Purger      CatalogPurger // optional
	Log         *zap.Logger
	Timeout     time.Duration
}

// NewHotelHandler constructs a HotelHandler and panics if a required
// dependency is nil.
func NewHotelHandler(hotels HotelReader, coord *booking.Coordinator, purger CatalogPurger, log *zap.Logger, timeout time.Duration) *HotelHandler {
	if hotels == nil || coord == nil {
		panic("nil dependency passed to NewHotelHandler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &HotelHandler{Hotels: hotels, Coordinator: coord, Purger: purger, Log: log, Timeout: timeout}
}

// hotelReq is the full hotel document accepted by POST and PUT.
type hotelReq struct {
	Name        string   `json:"name" validate:"required,max=255"`
	City        string   `json:"city" validate:"required,max=100"`
	Address     string   `json:"address" validate:"required,max=255"`
	Lat         *float64 `json:"lat" validate:"omitempty,gte=-90,lte=90"`
	Lng         *float64 `json:"lng" validate:"omitempty,gte=-180,lte=180"`
	Description string   `json:"description" validate:"max=5000"`
	Price       float64  `json:"price" validate:"gt=0"`
	Amenities   []string `json:"amenities" validate:"max=50,dive,required,max=100"`
	Images      []string `json:"images" validate:"max=20,dive,http_url"`
	Rating      float64  `json:"rating" validate:"gte=0,lte=5"`
	TotalRooms  *int     `json:"total_rooms" validate:"omitempty,gte=0"`
}

// hotelPatch carries the fields a PATCH may change.
type hotelPatch struct {
	Name        *string   `json:"name" validate:"omitempty,min=1,max=255"`
	City        *string   `json:"city" validate:"omitempty,min=1,max=100"`
	Address     *string   `json:"address" validate:"omitempty,min=1,max=255"`
	Lat         *float64  `json:"lat" validate:"omitempty,gte=-90,lte=90"`
	Lng         *float64  `json:"lng" validate:"omitempty,gte=-180,lte=180"`
	Description *string   `json:"description" validate:"omitempty,max=5000"`
	Price       *float64  `json:"price" validate:"omitempty,gt=0"`
	Amenities   *[]string `json:"amenities" validate:"omitempty,max=50,dive,required,max=100"`
	Images      *[]string `json:"images" validate:"omitempty,max=20,dive,http_url"`
	Rating      *float64  `json:"rating" validate:"omitempty,gte=0,lte=5"`
	TotalRooms  *int      `json:"total_rooms" validate:"omitempty,gte=0"`
}

func (r hotelReq) patch() hotelPatch {
	return hotelPatch{
		Name: &r.Name, City: &r.City, Address: &r.Address, Lat: r.Lat, Lng: r.Lng,
		Description: &r.Description, Price: &r.Price, Amenities: &r.Amenities, Images: &r.Images,
		Rating: &r.Rating, TotalRooms: r.TotalRooms,
	}
}

// apply copies the set descriptive fields onto h.  For PUT every field is
// set, so absent coordinates are cleared.
func (p hotelPatch) apply(h *model.Hotel, replace bool) {
	if p.Name != nil {
		h.Name = strings.TrimSpace(*p.Name)
	}
	if p.City != nil {
		h.Location.City = strings.TrimSpace(*p.City)
	}
	if p.Address != nil {
		h.Location.Address = strings.TrimSpace(*p.Address)
	}
	if p.Lat != nil || replace {
		h.Location.Lat = p.Lat
	}
	if p.Lng != nil || replace {
		h.Location.Lng = p.Lng
	}
	if p.Description != nil {
		h.Description = *p.Description
	}
	if p.Price != nil {
		h.Price = *p.Price
	}
	if p.Amenities != nil {
		h.Amenities = *p.Amenities
	}
	if p.Images != nil {
		h.Images = *p.Images
	}
	if p.Rating != nil {
		h.Rating = *p.Rating
	}
}

func (h *HotelHandler) purge(ctx context.Context) {
	if h.Purger == nil {
		return
	}
	if _, err := h.Purger.Purge(ctx); err != nil {
		h.Log.Warn("catalog cache purge failed", zap.Error(err))
	}
}

// List searches hotels by city and price range, newest first.
// Query: city, min_price, max_price, page, page_size.
func (h *HotelHandler) List(c echo.Context) error {
	ve := &booking.ValidationError{}
	q := model.HotelQuery{
		City:     strings.TrimSpace(c.QueryParam("city")),
		MinPrice: queryFloat(c, "min_price", ve),
		MaxPrice: queryFloat(c, "max_price", ve),
		Page:     queryInt(c, "page", ve),
		PageSize: queryInt(c, "page_size", ve),
	}
	if q.MinPrice != nil && q.MaxPrice != nil && *q.MinPrice > *q.MaxPrice {
		ve.Add("min_price", "must not exceed max_price")
	}
	if !ve.Empty() {
		return writeError(c, h.Log, ve)
	}
	q.Normalize()

	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	items, total, err := h.Hotels.Search(ctx, q)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if items == nil {
		items = []model.Hotel{}
	}
	return c.JSON(http.StatusOK, listPage[model.Hotel]{Items: items, Page: q.Page, PageSize: q.PageSize, Total: total})
}

// Recommended lists the best rated hotels.
func (h *HotelHandler) Recommended(c echo.Context) error {
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	items, err := h.Hotels.Recommended(ctx, recommendedLimit)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if items == nil {
		items = []model.Hotel{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get returns one hotel with its current inventory.
func (h *HotelHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	hotel, err := h.Hotels.GetByID(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, hotel)
}

// Create adds a hotel with all of total_rooms available.
func (h *HotelHandler) Create(c echo.Context) error {
	var req hotelReq
	if err := bind(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	if req.TotalRooms == nil {
		return writeError(c, h.Log, booking.NewValidationError("total_rooms", "is required"))
	}
	hotel := &model.Hotel{}
	req.patch().apply(hotel, true)

	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	if err := h.Coordinator.CreateHotel(ctx, hotel, *req.TotalRooms); err != nil {
		return writeError(c, h.Log, err)
	}
	h.purge(ctx)
	return c.JSON(http.StatusCreated, hotel)
}

// Replace handles PUT: every descriptive field is overwritten.
func (h *HotelHandler) Replace(c echo.Context) error {
	var req hotelReq
	if err := bind(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	return h.update(c, req.patch(), true)
}

// Patch handles PATCH: only the fields present are changed.
func (h *HotelHandler) Patch(c echo.Context) error {
	var req hotelPatch
	if err := bind(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	return h.update(c, req, false)
}

// update applies p and any capacity change in one coordinator transaction.
func (h *HotelHandler) update(c echo.Context, p hotelPatch, replace bool) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	hotel, err := h.Coordinator.UpdateHotel(ctx, id, func(hotel *model.Hotel) { p.apply(hotel, replace) }, p.TotalRooms)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	h.purge(ctx)
	return c.JSON(http.StatusOK, hotel)
}

// Delete removes a hotel without active bookings.
func (h *HotelHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	if err := h.Coordinator.DeleteHotel(ctx, id); err != nil {
		return writeError(c, h.Log, err)
	}
	h.purge(ctx)
	return c.NoContent(http.StatusNoContent)
}
