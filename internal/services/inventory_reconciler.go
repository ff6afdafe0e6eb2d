package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/staynest/hostel-booking-backend/internal/database"
	"github.com/staynest/hostel-booking-backend/internal/models"
)

// InventoryDrift is a room type whose held rooms disagree with its reserving bookings
type InventoryDrift struct {
	HostelID          uuid.UUID       `json:"hostel_id"`
	RoomType          models.RoomType `json:"room_type"`
	TotalRooms        int             `json:"total_rooms"`
	AvailableRooms    int             `json:"available_rooms"`
	HeldRooms         int             `json:"held_rooms"`
	ReservingBookings int             `json:"reserving_bookings"`
}

// Delta is held rooms minus reserving bookings. Positive means leaked rooms.
func (d InventoryDrift) Delta() int {
	return d.HeldRooms - d.ReservingBookings
}

// ReconciliationReport is the result of one reconciliation pass
type ReconciliationReport struct {
	HostelsChecked   int              `json:"hostels_checked"`
	RoomTypesChecked int              `json:"room_types_checked"`
	Drifts           []InventoryDrift `json:"drifts"`
}

// InventoryReconciler checks that total - available equals the number of
// bookings in a reserving status for every hostel and room type
type InventoryReconciler struct {
	store  database.Store
	logger *logrus.Logger
}

// NewInventoryReconciler creates a new reconciler
func NewInventoryReconciler(store database.Store, logger *logrus.Logger) *InventoryReconciler {
	return &InventoryReconciler{store: store, logger: logger}
}

// Reconcile checks every active hostel. It only reports drift; fixing it is an operator decision.
func (r *InventoryReconciler) Reconcile(ctx context.Context) (*ReconciliationReport, error) {
	repos := r.store.Repos()

	hostelIDs, err := repos.Hostels.ListActiveHostelIDs(ctx)
	if err != nil {
		return nil, err
	}

	report := &ReconciliationReport{Drifts: []InventoryDrift{}}
	for _, hostelID := range hostelIDs {
		drifts, checked, err := r.ReconcileHostel(ctx, hostelID)
		if err != nil {
			r.logger.WithError(err).WithField("hostel_id", hostelID).Error("Failed to reconcile hostel inventory")
			continue
		}
		report.HostelsChecked++
		report.RoomTypesChecked += checked
		report.Drifts = append(report.Drifts, drifts...)
	}

	if len(report.Drifts) > 0 {
		r.logger.WithField("drifts", len(report.Drifts)).Warn("Inventory drift detected")
	}
	return report, nil
}

// ReconcileHostel checks every room type of one hostel and returns the drifts and the number of room types checked.
// Inventory and bookings are read from one snapshot, so a booking created
// between the two reads cannot show up as drift.
func (r *InventoryReconciler) ReconcileHostel(ctx context.Context, hostelID uuid.UUID) ([]InventoryDrift, int, error) {
	var (
		items  []models.RoomInventory
		counts []int
	)
	err := r.store.InSnapshot(ctx, func(repos database.Repositories) error {
		var err error
		items, err = repos.Inventory.ListByHostel(ctx, hostelID)
		if err != nil {
			return err
		}
		counts = make([]int, len(items))
		for i, inv := range items {
			if counts[i], err = repos.Bookings.CountReserving(ctx, hostelID, inv.RoomType); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	var drifts []InventoryDrift
	for i, inv := range items {
		count := counts[i]
		if count == inv.HeldRooms() {
			continue
		}

		d := InventoryDrift{
			HostelID:          hostelID,
			RoomType:          inv.RoomType,
			TotalRooms:        inv.TotalRooms,
			AvailableRooms:    inv.AvailableRooms,
			HeldRooms:         inv.HeldRooms(),
			ReservingBookings: count,
		}
		r.logger.WithFields(logrus.Fields{
			"hostel_id":          hostelID,
			"room_type":          inv.RoomType,
			"held_rooms":         d.HeldRooms,
			"reserving_bookings": count,
			"delta":              d.Delta(),
		}).Warn("Inventory does not match reserving bookings")
		drifts = append(drifts, d)
	}
	return drifts, len(items), nil
}
