package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/staynest/hostel-booking-backend/internal/database"
	"github.com/staynest/hostel-booking-backend/internal/models"
	"github.com/staynest/hostel-booking-backend/pkg/payment"
)

// RefundRunResult summarises one refund processing run
type RefundRunResult struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// RefundProcessor sends the refunds owed on cancelled bookings to the gateway
type RefundProcessor struct {
	store     database.Store
	gateway   PaymentGateway
	notifier  *NotificationEmitter
	logger    *logrus.Logger
	batchSize int
}

// NewRefundProcessor creates a new refund processor
func NewRefundProcessor(store database.Store, gateway PaymentGateway, notifier *NotificationEmitter, batchSize int, logger *logrus.Logger) *RefundProcessor {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &RefundProcessor{
		store:     store,
		gateway:   gateway,
		notifier:  notifier,
		logger:    logger,
		batchSize: batchSize,
	}
}

// ProcessPendingRefunds refunds one batch of cancelled or expired bookings with refund_status pending
func (p *RefundProcessor) ProcessPendingRefunds(ctx context.Context) (RefundRunResult, error) {
	var result RefundRunResult

	bookings, err := p.store.Repos().Bookings.ListPendingRefunds(ctx, p.batchSize)
	if err != nil {
		return result, err
	}
	if len(bookings) == 0 {
		return result, nil
	}

	p.logger.WithField("count", len(bookings)).Info("Processing pending refunds")

	for i := range bookings {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		status, err := p.refund(ctx, bookings[i].BookingID)
		if err != nil {
			p.logger.WithError(err).WithField("booking_id", bookings[i].BookingID).Error("Failed to settle refund")
		}
		switch status {
		case models.RefundStatusProcessed:
			result.Processed++
		case models.RefundStatusFailed:
			result.Failed++
		default:
			result.Skipped++
		}
	}
	return result, nil
}

// RetryFailedRefund puts a failed refund back to pending and tries it again
func (p *RefundProcessor) RetryFailedRefund(ctx context.Context, bookingID string) (*models.Booking, error) {
	err := p.store.InTx(ctx, func(tx database.Repositories) error {
		b, err := tx.Bookings.GetByBookingID(ctx, bookingID)
		if err != nil {
			return err
		}
		if !b.Status.CarriesRefund() || b.RefundStatus != models.RefundStatusFailed {
			return models.ErrInvalidTransition.WithMessage("refund of booking %s is %s, only failed refunds can be retried", bookingID, b.RefundStatus)
		}
		b.RefundStatus = models.RefundStatusPending
		return tx.Bookings.Update(ctx, b, b.Status)
	})
	if err != nil {
		return nil, err
	}

	if _, err := p.refund(ctx, bookingID); err != nil {
		return nil, err
	}
	return p.store.Repos().Bookings.GetByBookingID(ctx, bookingID)
}

// claim moves a pending refund to processing. Only the run whose conditional
// update wins may call the gateway; the others get ErrInvalidTransition.
func (p *RefundProcessor) claim(ctx context.Context, bookingID string) (*models.Booking, error) {
	var claimed *models.Booking
	err := p.store.InTx(ctx, func(tx database.Repositories) error {
		b, err := tx.Bookings.GetByBookingID(ctx, bookingID)
		if err != nil {
			return err
		}
		if !b.Status.CarriesRefund() || b.RefundStatus != models.RefundStatusPending {
			return models.ErrInvalidTransition.WithMessage("refund of booking %s is %s", bookingID, b.RefundStatus)
		}
		if b.PaymentID == nil || b.RefundAmount <= 0 {
			return models.ErrInvalidTransition.WithMessage("booking %s has no refundable payment", bookingID)
		}
		b.RefundStatus = models.RefundStatusProcessing
		if err := tx.Bookings.Update(ctx, b, b.Status); err != nil {
			return err
		}
		claimed = b
		return nil
	})
	return claimed, err
}

// refund claims the booking, calls the gateway outside any transaction, then
// records the outcome. A run interrupted during the gateway call leaves the
// booking in processing, since the gateway may already have paid it out.
func (p *RefundProcessor) refund(ctx context.Context, bookingID string) (models.RefundStatus, error) {
	b, err := p.claim(ctx, bookingID)
	if errors.Is(err, models.ErrInvalidTransition) {
		p.logger.WithField("booking_id", bookingID).Debug("Refund already claimed or settled, skipping")
		return "", nil
	}
	if err != nil {
		return "", err
	}

	started := time.Now()
	reason := "booking_cancelled"
	if b.Status == models.BookingStatusExpired {
		reason = "payment_after_expiry"
	}
	refund, gwErr := p.gateway.Refund(ctx, *b.PaymentID, payment.RefundRequest{
		Amount:  b.RefundAmount,
		Receipt: b.BookingID,
		Notes: map[string]string{
			"booking_id": b.BookingID,
			"reason":     reason,
		},
	})
	if gwErr != nil && ctx.Err() != nil {
		p.logger.WithError(gwErr).WithField("booking_id", b.BookingID).
			Warn("Refund interrupted, booking left in processing for manual review")
		return "", gwErr
	}

	outcome := models.RefundStatusProcessed
	eventType := models.PaymentEventRefundProcessed
	if gwErr != nil {
		outcome = models.RefundStatusFailed
		eventType = models.PaymentEventRefundFailed
	}

	// The gateway has answered; record it even if the run is being cancelled.
	settleCtx := context.WithoutCancel(ctx)
	var updated *models.Booking
	err = p.store.InTx(settleCtx, func(tx database.Repositories) error {
		current, err := tx.Bookings.GetByBookingID(settleCtx, b.BookingID)
		if err != nil {
			return err
		}
		if current.RefundStatus != models.RefundStatusProcessing {
			return models.ErrInvalidTransition.WithMessage("refund of booking %s is %s, expected processing", b.BookingID, current.RefundStatus)
		}
		current.RefundStatus = outcome
		if refund != nil {
			current.RefundID = &refund.ID
		}
		if err := tx.Bookings.Update(settleCtx, current, current.Status); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		p.logger.WithError(err).WithFields(logrus.Fields{
			"booking_id": b.BookingID,
			"outcome":    outcome,
		}).Error("Failed to record refund outcome, booking left in processing")
		return "", err
	}

	a := models.NewPaymentAudit(eventType, models.PaymentSourceGatewayAPI).
		SetBooking(updated.BookingID).
		SetPaymentID(*updated.PaymentID).
		SetProcessingTime(started)
	a.SetAmounts(updated.RefundAmount, updated.RefundAmount, updated.Currency)
	if refund != nil {
		a.SetRefundID(refund.ID).SetPaymentStatus(refund.Status)
	}
	if gwErr != nil {
		a.SetError(gwErr.Error(), nil)
	}
	if err := p.store.Repos().Audits.Log(settleCtx, a); err != nil {
		p.logger.WithError(err).WithField("booking_id", updated.BookingID).Error("Failed to write payment audit")
	}

	event := EventRefundProcessed
	if outcome == models.RefundStatusFailed {
		event = EventRefundFailed
		p.logger.WithError(gwErr).WithFields(logrus.Fields{
			"booking_id":    updated.BookingID,
			"refund_amount": updated.RefundAmount,
		}).Error("Refund failed")
	} else {
		p.logger.WithFields(logrus.Fields{
			"booking_id":    updated.BookingID,
			"refund_id":     refund.ID,
			"refund_amount": updated.RefundAmount,
		}).Info("Refund processed")
	}

	n := NewBookingNotification(event, updated)
	n.Data["refund_amount"] = updated.RefundAmount
	p.notifier.Emit(n)
	return outcome, nil
}
