package models

import (
	"time"

	"github.com/google/uuid"
)

// RoomType identifies a class of room within a hostel
// Matches PostgreSQL ENUM: room_type
type RoomType string

const (
	RoomTypeSingle    RoomType = "single"
	RoomTypeDouble    RoomType = "double"
	RoomTypeTriple    RoomType = "triple"
	RoomTypeDormitory RoomType = "dormitory"
)

// IsValid reports whether r is a known room type
func (r RoomType) IsValid() bool {
	switch r {
	case RoomTypeSingle, RoomTypeDouble, RoomTypeTriple, RoomTypeDormitory:
		return true
	}
	return false
}

// Hostel is the subset of a hostel listing the booking engine needs
type Hostel struct {
	ID         uuid.UUID `json:"id" db:"id"`
	OwnerID    uuid.UUID `json:"owner_id" db:"owner_id"`
	Name       string    `json:"name" db:"name"`
	City       string    `json:"city" db:"city"`
	IsActive   bool      `json:"is_active" db:"is_active"`
	IsVerified bool      `json:"is_verified" db:"is_verified"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// AcceptsBookings reports whether students can currently book this hostel
func (h *Hostel) AcceptsBookings() bool {
	return h.IsActive && h.IsVerified
}

// RoomTariff holds the per-room-type charges of a hostel, in paise
type RoomTariff struct {
	HostelID           uuid.UUID `json:"hostel_id" db:"hostel_id"`
	RoomType           RoomType  `json:"room_type" db:"room_type"`
	MonthlyRent        int64     `json:"monthly_rent" db:"monthly_rent"`
	SecurityDeposit    int64     `json:"security_deposit" db:"security_deposit"`
	MaintenanceCharges int64     `json:"maintenance_charges" db:"maintenance_charges"`
	FoodMonthlyCost    int64     `json:"food_monthly_cost" db:"food_monthly_cost"` // 0 when no food plan is offered
}

// OffersFood reports whether a food plan can be selected for this room type
func (t *RoomTariff) OffersFood() bool {
	return t.FoodMonthlyCost > 0
}
