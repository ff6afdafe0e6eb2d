package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/staynest/hostel-booking-backend/internal/models"
)

// InventoryRepository handles room inventory operations.
// Every mutation is a single conditional statement, so concurrent callers
// cannot drive available_rooms outside [0, total_rooms].
type InventoryRepository struct {
	db sqlx.ExtContext
}

// NewInventoryRepository creates a new inventory repository
func NewInventoryRepository(db sqlx.ExtContext) *InventoryRepository {
	return &InventoryRepository{db: db}
}

const inventoryColumns = `hostel_id, room_type, total_rooms, available_rooms, version, updated_at`

// Reserve takes n rooms out of availability.
// Returns models.ErrInsufficientInventory when fewer than n rooms are available.
func (r *InventoryRepository) Reserve(ctx context.Context, hostelID uuid.UUID, roomType models.RoomType, n int) error {
	if n < 1 {
		return models.NewValidationError("reserve count must be at least 1, got %d", n)
	}

	query := `
		UPDATE room_inventory
		SET available_rooms = available_rooms - $3,
		    version = version + 1,
		    updated_at = NOW()
		WHERE hostel_id = $1 AND room_type = $2 AND available_rooms >= $3`

	result, err := r.db.ExecContext(ctx, query, hostelID, roomType, n)
	if err != nil {
		return fmt.Errorf("failed to reserve inventory: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read reserve result: %w", err)
	}
	if rows == 0 {
		return models.ErrInsufficientInventory
	}
	return nil
}

// Release returns n rooms to availability.
// Returns models.ErrInvalidRelease when that would exceed total_rooms.
func (r *InventoryRepository) Release(ctx context.Context, hostelID uuid.UUID, roomType models.RoomType, n int) error {
	if n < 1 {
		return models.NewValidationError("release count must be at least 1, got %d", n)
	}

	query := `
		UPDATE room_inventory
		SET available_rooms = available_rooms + $3,
		    version = version + 1,
		    updated_at = NOW()
		WHERE hostel_id = $1 AND room_type = $2 AND available_rooms + $3 <= total_rooms`

	result, err := r.db.ExecContext(ctx, query, hostelID, roomType, n)
	if err != nil {
		return fmt.Errorf("failed to release inventory: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read release result: %w", err)
	}
	if rows == 0 {
		return models.ErrInvalidRelease
	}
	return nil
}

// Get returns the inventory record of one room type
func (r *InventoryRepository) Get(ctx context.Context, hostelID uuid.UUID, roomType models.RoomType) (*models.RoomInventory, error) {
	query := `SELECT ` + inventoryColumns + ` FROM room_inventory WHERE hostel_id = $1 AND room_type = $2`

	var inv models.RoomInventory
	err := sqlx.GetContext(ctx, r.db, &inv, query, hostelID, roomType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound.WithMessage("no inventory for room type %s", roomType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get inventory: %w", err)
	}
	return &inv, nil
}

// ListByHostel returns every room type's inventory for a hostel
func (r *InventoryRepository) ListByHostel(ctx context.Context, hostelID uuid.UUID) ([]models.RoomInventory, error) {
	query := `SELECT ` + inventoryColumns + ` FROM room_inventory WHERE hostel_id = $1 ORDER BY room_type`

	var items []models.RoomInventory
	if err := sqlx.SelectContext(ctx, r.db, &items, query, hostelID); err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}
	return items, nil
}

// SetTotal creates or resizes the inventory of a room type while keeping the
// number of held rooms constant. Shrinking below the held count is rejected.
func (r *InventoryRepository) SetTotal(ctx context.Context, hostelID uuid.UUID, roomType models.RoomType, totalRooms int) (*models.RoomInventory, error) {
	if totalRooms < 0 {
		return nil, models.NewValidationError("total_rooms must not be negative")
	}

	query := `
		INSERT INTO room_inventory (hostel_id, room_type, total_rooms, available_rooms, version, updated_at)
		VALUES ($1, $2, $3, $3, 1, NOW())
		ON CONFLICT (hostel_id, room_type) DO UPDATE
		SET available_rooms = room_inventory.available_rooms + (EXCLUDED.total_rooms - room_inventory.total_rooms),
		    total_rooms = EXCLUDED.total_rooms,
		    version = room_inventory.version + 1,
		    updated_at = NOW()
		WHERE room_inventory.total_rooms - room_inventory.available_rooms <= EXCLUDED.total_rooms
		RETURNING ` + inventoryColumns

	var inv models.RoomInventory
	err := sqlx.GetContext(ctx, r.db, &inv, query, hostelID, roomType, totalRooms)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewValidationError("total_rooms %d is below the number of rooms currently held", totalRooms)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set inventory: %w", err)
	}
	return &inv, nil
}
