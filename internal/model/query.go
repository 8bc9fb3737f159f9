package model

// HotelQuery filters the public hotel catalog.  Nil bounds are open.
// Page is 1-based; PageSize is clamped by the repository.
type HotelQuery struct {
	City     string
	MinPrice *float64
	MaxPrice *float64
	Page     int
	PageSize int
}

// Normalize clamps paging values to sane bounds and returns the offset.
func (q *HotelQuery) Normalize() (offset int) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = 20
	}
	if q.PageSize > 100 {
		q.PageSize = 100
	}
	return (q.Page - 1) * q.PageSize
}

// HotelOccupancy is the admin view of one hotel's inventory.
type HotelOccupancy struct {
	ID        uint64 `json:"id"`
	Name      string `json:"name"`
	Inventory        // flattened total/available/occupancy
}
