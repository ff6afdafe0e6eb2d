package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/staynest/hostel-booking-backend/internal/models"
)

// InventoryStore is the ledger of rooms per hostel and room type
type InventoryStore interface {
	Reserve(ctx context.Context, hostelID uuid.UUID, roomType models.RoomType, n int) error
	Release(ctx context.Context, hostelID uuid.UUID, roomType models.RoomType, n int) error
	Get(ctx context.Context, hostelID uuid.UUID, roomType models.RoomType) (*models.RoomInventory, error)
	ListByHostel(ctx context.Context, hostelID uuid.UUID) ([]models.RoomInventory, error)
	SetTotal(ctx context.Context, hostelID uuid.UUID, roomType models.RoomType, totalRooms int) (*models.RoomInventory, error)
}

// ExpiryCutoffs are the instants before which a booking in each status is stale
type ExpiryCutoffs struct {
	PendingCreatedBefore time.Time
	ConfirmedBefore      time.Time
	PaidCheckInBefore    time.Time
}

// BookingStore persists bookings
type BookingStore interface {
	Insert(ctx context.Context, booking *models.Booking) (bool, error)
	GetByBookingID(ctx context.Context, bookingID string) (*models.Booking, error)
	GetByOrderID(ctx context.Context, orderID string) (*models.Booking, error)
	HasActiveForStudent(ctx context.Context, studentID uuid.UUID) (bool, error)
	Update(ctx context.Context, booking *models.Booking, expected models.BookingStatus) error
	ListByStudent(ctx context.Context, studentID uuid.UUID, q models.ListBookingsQuery) ([]models.Booking, int, error)
	ListByHostel(ctx context.Context, hostelID uuid.UUID, q models.ListBookingsQuery) ([]models.Booking, int, error)
	ListExpirable(ctx context.Context, cutoffs ExpiryCutoffs, limit int) ([]models.Booking, error)
	ListPendingRefunds(ctx context.Context, limit int) ([]models.Booking, error)
	CountReserving(ctx context.Context, hostelID uuid.UUID, roomType models.RoomType) (int, error)
}

// HostelStore reads hostel listings and their tariffs
type HostelStore interface {
	GetHostel(ctx context.Context, hostelID uuid.UUID) (*models.Hostel, error)
	GetTariff(ctx context.Context, hostelID uuid.UUID, roomType models.RoomType) (*models.RoomTariff, error)
	ListActiveHostelIDs(ctx context.Context) ([]uuid.UUID, error)
}

// PaymentAuditStore appends payment audit rows
type PaymentAuditStore interface {
	Log(ctx context.Context, audit *models.PaymentAudit) error
	ListByBooking(ctx context.Context, bookingID string) ([]models.PaymentAudit, error)
}

// Repositories groups the repositories bound to one connection or transaction
type Repositories struct {
	Bookings  BookingStore
	Inventory InventoryStore
	Hostels   HostelStore
	Audits    PaymentAuditStore
}

// Store hands out repositories and runs units of work in a transaction
type Store interface {
	Repos() Repositories
	InTx(ctx context.Context, fn func(Repositories) error) error
	// InSnapshot runs read-only fn against one consistent snapshot of the database
	InSnapshot(ctx context.Context, fn func(Repositories) error) error
}

// PostgresStore implements Store on top of sqlx
type PostgresStore struct {
	db     DB
	logger *logrus.Logger
}

// NewPostgresStore creates a new transactional store
func NewPostgresStore(db DB, logger *logrus.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

func newRepositories(ext sqlx.ExtContext) Repositories {
	return Repositories{
		Bookings:  NewBookingRepository(ext),
		Inventory: NewInventoryRepository(ext),
		Hostels:   NewHostelRepository(ext),
		Audits:    NewPaymentAuditRepository(ext),
	}
}

// Repos returns repositories that run each statement on its own
func (s *PostgresStore) Repos() Repositories {
	return newRepositories(s.db)
}

// InTx runs fn inside one transaction. The transaction commits only when fn returns nil.
func (s *PostgresStore) InTx(ctx context.Context, fn func(Repositories) error) error {
	return s.runTx(ctx, nil, fn)
}

// InSnapshot runs fn in a read-only REPEATABLE READ transaction so every
// statement sees the same committed state
func (s *PostgresStore) InSnapshot(ctx context.Context, fn func(Repositories) error) error {
	return s.runTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}, fn)
}

func (s *PostgresStore) runTx(ctx context.Context, opts *sql.TxOptions, fn func(Repositories) error) error {
	tx, err := s.db.BeginTxx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(newRepositories(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		s.logger.WithError(err).Error("Failed to commit transaction")
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
