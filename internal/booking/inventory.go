package booking

import (
	"context"
	"fmt"

	"github.com/iliyamo/hotel-booking/internal/model"
)

// TakeRooms returns inv with n rooms reserved.  It fails with
// ErrInsufficientInventory when fewer than n rooms are available.
func TakeRooms(inv model.Inventory, n int) (model.Inventory, error) {
	if n < 1 {
		return inv, NewValidationError("rooms", "must be at least 1")
	}
	if inv.AvailableRooms < n {
		return inv, ErrInsufficientInventory
	}
	return model.NewInventory(inv.TotalRooms, inv.AvailableRooms-n), nil
}

// ReturnRooms returns inv with n rooms released.  The result never exceeds
// TotalRooms, so releasing twice cannot create rooms.
func ReturnRooms(inv model.Inventory, n int) (model.Inventory, error) {
	if n < 1 {
		return inv, NewValidationError("rooms", "must be at least 1")
	}
	available := inv.AvailableRooms + n
	if available > inv.TotalRooms {
		available = inv.TotalRooms
	}
	return model.NewInventory(inv.TotalRooms, available), nil
}

// Resize changes a hotel's capacity while keeping the reserved rooms
// reserved.  It fails when total would drop below the rooms in use.
func Resize(inv model.Inventory, total int) (model.Inventory, error) {
	if total < 0 {
		return inv, NewValidationError("total_rooms", "must not be negative")
	}
	reserved := inv.Reserved()
	if total < reserved {
		return inv, NewValidationError("total_rooms",
			fmt.Sprintf("must be at least %d, the number of rooms currently booked", reserved))
	}
	return model.NewInventory(total, total-reserved), nil
}

// Ledger validates and applies room-count changes for one hotel at a time.
// It relies on the transaction's atomic primitives and never reads then
// writes the counters itself.
type Ledger struct{}

// Reserve takes count rooms from the hotel.
func (Ledger) Reserve(ctx context.Context, tx InventoryTx, hotelID uint64, count int) (model.Inventory, error) {
	if count < 1 {
		return model.Inventory{}, NewValidationError("rooms", "must be at least 1")
	}
	inv, err := tx.DecrementRooms(ctx, hotelID, count)
	if err != nil {
		return model.Inventory{}, fmt.Errorf("reserve %d rooms in hotel %d: %w", count, hotelID, err)
	}
	return inv, nil
}

// Release gives count rooms back to the hotel, clamped to its capacity.
func (Ledger) Release(ctx context.Context, tx InventoryTx, hotelID uint64, count int) (model.Inventory, error) {
	if count < 1 {
		return model.Inventory{}, NewValidationError("rooms", "must be at least 1")
	}
	inv, err := tx.IncrementRooms(ctx, hotelID, count)
	if err != nil {
		return model.Inventory{}, fmt.Errorf("release %d rooms in hotel %d: %w", count, hotelID, err)
	}
	return inv, nil
}
