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

// HostelRepository reads hostel listings owned by the listing service
type HostelRepository struct {
	db sqlx.ExtContext
}

// NewHostelRepository creates a new hostel repository
func NewHostelRepository(db sqlx.ExtContext) *HostelRepository {
	return &HostelRepository{db: db}
}

// GetHostel retrieves a hostel by id
func (r *HostelRepository) GetHostel(ctx context.Context, hostelID uuid.UUID) (*models.Hostel, error) {
	query := `
		SELECT id, owner_id, name, city, is_active, is_verified, created_at, updated_at
		FROM hostels
		WHERE id = $1`

	var h models.Hostel
	err := sqlx.GetContext(ctx, r.db, &h, query, hostelID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound.WithMessage("hostel not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get hostel: %w", err)
	}
	return &h, nil
}

// GetTariff retrieves the charges of one room type
func (r *HostelRepository) GetTariff(ctx context.Context, hostelID uuid.UUID, roomType models.RoomType) (*models.RoomTariff, error) {
	query := `
		SELECT hostel_id, room_type, monthly_rent, security_deposit, maintenance_charges, food_monthly_cost
		FROM room_tariffs
		WHERE hostel_id = $1 AND room_type = $2`

	var t models.RoomTariff
	err := sqlx.GetContext(ctx, r.db, &t, query, hostelID, roomType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound.WithMessage("hostel does not offer room type %s", roomType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tariff: %w", err)
	}
	return &t, nil
}

// ListActiveHostelIDs returns the ids of hostels that accept bookings
func (r *HostelRepository) ListActiveHostelIDs(ctx context.Context) ([]uuid.UUID, error) {
	query := `SELECT id FROM hostels WHERE is_active = TRUE AND is_verified = TRUE ORDER BY id`

	var ids []uuid.UUID
	if err := sqlx.SelectContext(ctx, r.db, &ids, query); err != nil {
		return nil, fmt.Errorf("failed to list hostels: %w", err)
	}
	return ids, nil
}
