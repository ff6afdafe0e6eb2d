package models

import (
	"time"

	"github.com/google/uuid"
)

// RoomInventory is the authoritative room count for one hostel and room type
type RoomInventory struct {
	HostelID       uuid.UUID `json:"hostel_id" db:"hostel_id"`
	RoomType       RoomType  `json:"room_type" db:"room_type"`
	TotalRooms     int       `json:"total_rooms" db:"total_rooms"`
	AvailableRooms int       `json:"available_rooms" db:"available_rooms"`
	Version        int64     `json:"version" db:"version"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// HeldRooms is the number of rooms currently reserved by bookings
func (i *RoomInventory) HeldRooms() int {
	return i.TotalRooms - i.AvailableRooms
}

// SetInventoryRequest is the owner request to set the total rooms of a room type
type SetInventoryRequest struct {
	TotalRooms int `json:"total_rooms" binding:"min=0" validate:"min=0,max=10000"`
}

// InventoryResponse lists the inventory of a hostel
type InventoryResponse struct {
	HostelID  uuid.UUID       `json:"hostel_id"`
	RoomTypes []RoomInventory `json:"room_types"`
}
