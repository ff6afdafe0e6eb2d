package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/staynest/hostel-booking-backend/internal/models"
)

// Unique index that allows one non-terminal booking per student
const activeStudentIndex = "idx_bookings_one_active_per_student"

const pgUniqueViolation = "23505"

// BookingRepository handles booking database operations
type BookingRepository struct {
	db sqlx.ExtContext
}

// NewBookingRepository creates a new booking repository
func NewBookingRepository(db sqlx.ExtContext) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `
	id, booking_id, student_id, hostel_id, owner_id, room_type, status,
	check_in_date, check_out_date, duration_months, food_plan,
	monthly_rent, security_deposit, maintenance_charges, food_monthly_cost,
	total_amount, paid_amount, pending_amount, currency,
	payment_order_id, payment_id, payment_signature,
	cancellation_reason, cancelled_by, cancelled_by_role,
	refund_amount, refund_status, refund_id,
	emergency_contact_name, emergency_contact_phone, emergency_contact_relation,
	created_at, confirmed_at, rejected_at, paid_at, checked_in_at, activated_at,
	checked_out_at, completed_at, cancelled_at, expired_at,
	version, updated_at`

// Insert stores a new booking. It returns false without error when the
// booking_id is already taken so the caller can generate a new one.
// Returns models.ErrDuplicateActiveBooking when the student already has an open booking.
func (r *BookingRepository) Insert(ctx context.Context, b *models.Booking) (bool, error) {
	b.RecalculatePending()

	query := `
		INSERT INTO bookings (
			id, booking_id, student_id, hostel_id, owner_id, room_type, status,
			check_in_date, check_out_date, duration_months, food_plan,
			monthly_rent, security_deposit, maintenance_charges, food_monthly_cost,
			total_amount, paid_amount, pending_amount, currency,
			refund_amount, refund_status,
			emergency_contact_name, emergency_contact_phone, emergency_contact_relation,
			created_at, version, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11,
			$12, $13, $14, $15,
			$16, $17, $18, $19,
			$20, $21,
			$22, $23, $24,
			$25, $26, $25
		)
		ON CONFLICT (booking_id) DO NOTHING`

	result, err := r.db.ExecContext(ctx, query,
		b.ID, b.BookingID, b.StudentID, b.HostelID, b.OwnerID, b.RoomType, b.Status,
		b.CheckInDate, b.CheckOutDate, b.DurationMonths, b.FoodPlan,
		b.MonthlyRent, b.SecurityDeposit, b.MaintenanceCharges, b.FoodMonthlyCost,
		b.TotalAmount, b.PaidAmount, b.PendingAmount, b.Currency,
		b.RefundAmount, b.RefundStatus,
		b.EmergencyContactName, b.EmergencyContactPhone, b.EmergencyContactRelation,
		b.CreatedAt, b.Version,
	)
	if err != nil {
		if isUniqueViolation(err, activeStudentIndex) {
			return false, models.ErrDuplicateActiveBooking
		}
		return false, fmt.Errorf("failed to insert booking: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	b.UpdatedAt = b.CreatedAt
	return rows == 1, nil
}

// GetByBookingID retrieves a booking by its human-readable id
func (r *BookingRepository) GetByBookingID(ctx context.Context, bookingID string) (*models.Booking, error) {
	return r.getOne(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE booking_id = $1`, bookingID)
}

// GetByOrderID retrieves a booking by its payment gateway order id
func (r *BookingRepository) GetByOrderID(ctx context.Context, orderID string) (*models.Booking, error) {
	return r.getOne(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE payment_order_id = $1`, orderID)
}

func (r *BookingRepository) getOne(ctx context.Context, query string, arg interface{}) (*models.Booking, error) {
	var b models.Booking
	err := sqlx.GetContext(ctx, r.db, &b, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound.WithMessage("booking not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &b, nil
}

// HasActiveForStudent reports whether the student holds a booking in a non-terminal status
func (r *BookingRepository) HasActiveForStudent(ctx context.Context, studentID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM bookings WHERE student_id = $1 AND status <> ALL($2))`

	var exists bool
	if err := sqlx.GetContext(ctx, r.db, &exists, query, studentID, statusArray(models.TerminalStatuses)); err != nil {
		return false, fmt.Errorf("failed to check active bookings: %w", err)
	}
	return exists, nil
}

// Update persists the mutable fields of a booking, but only while the stored
// row still has the expected status and the booking's version.
// Returns models.ErrInvalidTransition when another writer got there first.
func (r *BookingRepository) Update(ctx context.Context, b *models.Booking, expected models.BookingStatus) error {
	b.RecalculatePending()

	query := `
		UPDATE bookings SET
			status = $3,
			paid_amount = $4,
			pending_amount = $5,
			payment_order_id = $6,
			payment_id = $7,
			payment_signature = $8,
			cancellation_reason = $9,
			cancelled_by = $10,
			cancelled_by_role = $11,
			refund_amount = $12,
			refund_status = $13,
			refund_id = $14,
			confirmed_at = $15,
			rejected_at = $16,
			paid_at = $17,
			checked_in_at = $18,
			activated_at = $19,
			checked_out_at = $20,
			completed_at = $21,
			cancelled_at = $22,
			expired_at = $23,
			version = version + 1,
			updated_at = NOW()
		WHERE booking_id = $1 AND status = $2 AND version = $24
		RETURNING version, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		b.BookingID, expected,
		b.Status, b.PaidAmount, b.PendingAmount,
		b.PaymentOrderID, b.PaymentID, b.PaymentSignature,
		b.CancellationReason, b.CancelledBy, b.CancelledByRole,
		b.RefundAmount, b.RefundStatus, b.RefundID,
		b.ConfirmedAt, b.RejectedAt, b.PaidAt, b.CheckedInAt, b.ActivatedAt,
		b.CheckedOutAt, b.CompletedAt, b.CancelledAt, b.ExpiredAt,
		b.Version,
	).Scan(&b.Version, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrInvalidTransition.WithMessage("booking %s is no longer %s", b.BookingID, expected)
	}
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	return nil
}

// ListByStudent returns a page of a student's bookings, newest first
func (r *BookingRepository) ListByStudent(ctx context.Context, studentID uuid.UUID, q models.ListBookingsQuery) ([]models.Booking, int, error) {
	return r.list(ctx, "student_id", studentID, q)
}

// ListByHostel returns a page of a hostel's bookings, newest first
func (r *BookingRepository) ListByHostel(ctx context.Context, hostelID uuid.UUID, q models.ListBookingsQuery) ([]models.Booking, int, error) {
	return r.list(ctx, "hostel_id", hostelID, q)
}

func (r *BookingRepository) list(ctx context.Context, column string, id uuid.UUID, q models.ListBookingsQuery) ([]models.Booking, int, error) {
	q.Normalize()

	where := column + ` = $1 AND ($2 = '' OR status::text = $2)`

	var total int
	countQuery := `SELECT COUNT(*) FROM bookings WHERE ` + where
	if err := sqlx.GetContext(ctx, r.db, &total, countQuery, id, string(q.Status)); err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE ` + where + `
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`

	bookings := []models.Booking{}
	if err := sqlx.SelectContext(ctx, r.db, &bookings, query, id, string(q.Status), q.Limit, q.Offset); err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, total, nil
}

// ListExpirable returns bookings that have outlived their status window, oldest first
func (r *BookingRepository) ListExpirable(ctx context.Context, cutoffs ExpiryCutoffs, limit int) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE (status = 'pending' AND created_at < $1)
		   OR (status = 'confirmed' AND confirmed_at < $2)
		   OR (status = 'paid' AND check_in_date < $3)
		ORDER BY created_at
		LIMIT $4`

	var bookings []models.Booking
	err := sqlx.SelectContext(ctx, r.db, &bookings, query,
		cutoffs.PendingCreatedBefore, cutoffs.ConfirmedBefore, cutoffs.PaidCheckInBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expirable bookings: %w", err)
	}
	return bookings, nil
}

// ListPendingRefunds returns cancelled or expired bookings whose refund has not
// been sent to the gateway
func (r *BookingRepository) ListPendingRefunds(ctx context.Context, limit int) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE status IN ('cancelled', 'expired') AND refund_status = 'pending' AND payment_id IS NOT NULL
		ORDER BY updated_at
		LIMIT $1`

	var bookings []models.Booking
	if err := sqlx.SelectContext(ctx, r.db, &bookings, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list pending refunds: %w", err)
	}
	return bookings, nil
}

// CountReserving counts bookings of a room type that currently hold a room
func (r *BookingRepository) CountReserving(ctx context.Context, hostelID uuid.UUID, roomType models.RoomType) (int, error) {
	query := `SELECT COUNT(*) FROM bookings WHERE hostel_id = $1 AND room_type = $2 AND status = ANY($3)`

	var count int
	if err := sqlx.GetContext(ctx, r.db, &count, query, hostelID, roomType, statusArray(models.ReservingStatuses)); err != nil {
		return 0, fmt.Errorf("failed to count reserving bookings: %w", err)
	}
	return count, nil
}

func statusArray(statuses []models.BookingStatus) interface{} {
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}
	return pq.Array(values)
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == pgUniqueViolation && (constraint == "" || pqErr.Constraint == constraint)
}
