package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/staynest/hostel-booking-backend/internal/models"
)

// PaymentAuditRepository handles payment audit operations
type PaymentAuditRepository struct {
	db sqlx.ExtContext
}

// NewPaymentAuditRepository creates a new payment audit repository
func NewPaymentAuditRepository(db sqlx.ExtContext) *PaymentAuditRepository {
	return &PaymentAuditRepository{db: db}
}

// Log appends a payment audit entry. Rows are never updated.
func (r *PaymentAuditRepository) Log(ctx context.Context, audit *models.PaymentAudit) error {
	if audit == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}

	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO payment_audits (
			id, booking_id, order_id, payment_id, refund_id,
			event_type, event_source,
			expected_amount, received_amount, currency, amounts_match,
			payment_status, request_payload,
			error_message, error_code,
			processing_time_ms, is_duplicate, idempotency_key,
			ip_address, user_agent, created_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7,
			$8, $9, $10, $11,
			$12, $13,
			$14, $15,
			$16, $17, $18,
			$19, $20, $21
		)`

	_, err := r.db.ExecContext(ctx, query,
		audit.ID, audit.BookingID, audit.OrderID, audit.PaymentID, audit.RefundID,
		audit.EventType, audit.EventSource,
		audit.ExpectedAmount, audit.ReceivedAmount, audit.Currency, audit.AmountsMatch,
		audit.PaymentStatus, audit.RequestPayload,
		audit.ErrorMessage, audit.ErrorCode,
		audit.ProcessingTimeMs, audit.IsDuplicate, audit.IdempotencyKey,
		audit.IPAddress, audit.UserAgent, audit.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment audit: %w", err)
	}
	return nil
}

// ListByBooking returns the audit trail of a booking, oldest first
func (r *PaymentAuditRepository) ListByBooking(ctx context.Context, bookingID string) ([]models.PaymentAudit, error) {
	query := `
		SELECT id, booking_id, order_id, payment_id, refund_id,
		       event_type, event_source,
		       expected_amount, received_amount, currency, amounts_match,
		       payment_status, request_payload,
		       error_message, error_code,
		       processing_time_ms, is_duplicate, idempotency_key,
		       ip_address, user_agent, created_at
		FROM payment_audits
		WHERE booking_id = $1
		ORDER BY created_at`

	audits := []models.PaymentAudit{}
	if err := sqlx.SelectContext(ctx, r.db, &audits, query, bookingID); err != nil {
		return nil, fmt.Errorf("failed to list payment audits: %w", err)
	}
	return audits, nil
}
