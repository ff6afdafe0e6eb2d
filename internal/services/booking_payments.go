package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/staynest/hostel-booking-backend/internal/database"
	"github.com/staynest/hostel-booking-backend/internal/models"
	"github.com/staynest/hostel-booking-backend/pkg/payment"
)

// paymentOrigin describes who reported a payment, for the audit trail
type paymentOrigin struct {
	source    models.PaymentEventSource
	clientIP  string
	userAgent string
	eventID   string
	started   time.Time
}

// ============================================================================
// INITIATE PAYMENT
// ============================================================================

// InitiatePayment creates a gateway order for a Confirmed booking.
// Calling it again returns the order already stored on the booking.
func (s *BookingLifecycleService) InitiatePayment(ctx context.Context, bookingID string, studentID uuid.UUID) (*models.PaymentOrderResponse, error) {
	b, err := s.store.Repos().Bookings.GetByBookingID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.StudentID != studentID {
		return nil, models.ErrForbidden.WithMessage("only the booking's student can pay for it")
	}
	if b.Status != models.BookingStatusConfirmed {
		return nil, models.ErrInvalidTransition.WithMessage("booking is %s, payment requires confirmed", b.Status)
	}
	if b.PaymentOrderID != nil {
		return s.orderResponse(b), nil
	}

	started := time.Now()
	amount := b.TotalAmount - b.PaidAmount
	order, err := s.gateway.CreateOrder(ctx, payment.OrderRequest{
		Amount:   amount,
		Currency: b.Currency,
		Receipt:  b.BookingID,
		Notes: map[string]string{
			"booking_id": b.BookingID,
			"hostel_id":  b.HostelID.String(),
		},
	})
	if err != nil {
		s.audit(ctx, models.NewPaymentAudit(models.PaymentEventError, models.PaymentSourceGatewayAPI).
			SetBooking(b.BookingID).
			SetError(err.Error(), nil).
			SetProcessingTime(started))
		return nil, err
	}

	s.audit(ctx, models.NewPaymentAudit(models.PaymentEventOrderCreated, models.PaymentSourceGatewayAPI).
		SetBooking(b.BookingID).
		SetOrderID(order.ID).
		SetPaymentStatus(order.Status).
		SetProcessingTime(started))

	var stored *models.Booking
	err = s.store.InTx(ctx, func(tx database.Repositories) error {
		current, err := tx.Bookings.GetByBookingID(ctx, bookingID)
		if err != nil {
			return err
		}
		if current.Status != models.BookingStatusConfirmed {
			return models.ErrInvalidTransition.WithMessage("booking is %s, payment requires confirmed", current.Status)
		}
		if current.PaymentOrderID != nil {
			stored = current
			return nil
		}
		current.PaymentOrderID = &order.ID
		if err := tx.Bookings.Update(ctx, current, models.BookingStatusConfirmed); err != nil {
			return err
		}
		stored = current
		return nil
	})
	if errors.Is(err, models.ErrInvalidTransition) {
		// Another request stored an order first.
		current, getErr := s.store.Repos().Bookings.GetByBookingID(ctx, bookingID)
		if getErr == nil && current.Status == models.BookingStatusConfirmed && current.PaymentOrderID != nil {
			stored, err = current, nil
		}
	}
	if err != nil {
		return nil, err
	}

	if *stored.PaymentOrderID != order.ID {
		s.logger.WithFields(logrus.Fields{
			"booking_id":   bookingID,
			"orphan_order": order.ID,
			"stored_order": *stored.PaymentOrderID,
		}).Warn("Concurrent order creation, returning the stored order")
	} else {
		s.logger.WithFields(logrus.Fields{
			"booking_id": bookingID,
			"order_id":   order.ID,
			"amount":     amount,
		}).Info("Payment order created")
	}
	return s.orderResponse(stored), nil
}

func (s *BookingLifecycleService) orderResponse(b *models.Booking) *models.PaymentOrderResponse {
	return &models.PaymentOrderResponse{
		BookingID: b.BookingID,
		OrderID:   deref(b.PaymentOrderID),
		Amount:    b.TotalAmount - b.PaidAmount,
		Currency:  b.Currency,
		KeyID:     s.config.PaymentKeyID,
	}
}

// ============================================================================
// RECORD PAYMENT
// ============================================================================

// RecordPayment marks a Confirmed booking as Paid. Recording the same payment
// again is a no-op; a different payment on a paid booking is ErrAlreadyPaid.
func (s *BookingLifecycleService) RecordPayment(ctx context.Context, bookingID string, vp VerifiedPayment) (*models.Booking, error) {
	return s.recordPayment(ctx, bookingID, vp, paymentOrigin{source: models.PaymentSourceBackend, started: time.Now()})
}

func (s *BookingLifecycleService) recordPayment(ctx context.Context, bookingID string, vp VerifiedPayment, origin paymentOrigin) (*models.Booking, error) {
	if !vp.IsVerified() {
		return nil, models.ErrInvalidSignature.WithMessage("payment has not been verified")
	}

	booking, outcome, err := s.applyPayment(ctx, bookingID, vp)
	if errors.Is(err, models.ErrInvalidTransition) {
		// Lost a race with another writer; the idempotency rules decide on a fresh read.
		booking, outcome, err = s.applyPayment(ctx, bookingID, vp)
	}
	if err != nil {
		return nil, err
	}

	eventType := models.PaymentEventRecorded
	switch outcome {
	case paymentReplayed:
		eventType = models.PaymentEventReplayed
	case paymentRefundQueued:
		eventType = models.PaymentEventRefundInitiated
	}
	a := models.NewPaymentAudit(eventType, origin.source).
		SetBooking(booking.BookingID).
		SetOrderID(vp.OrderID()).
		SetPaymentID(vp.PaymentID()).
		SetMetadata(origin.clientIP, origin.userAgent)
	if !origin.started.IsZero() {
		a.SetProcessingTime(origin.started)
	}
	if origin.eventID != "" {
		a.SetIdempotencyKey(origin.eventID)
	}
	if outcome == paymentReplayed {
		a.MarkAsDuplicate()
	}
	a.SetAmounts(booking.TotalAmount, booking.PaidAmount, booking.Currency)
	s.audit(ctx, a)

	switch {
	case outcome == paymentRefundQueued:
		s.logger.WithFields(logrus.Fields{
			"booking_id":    booking.BookingID,
			"status":        booking.Status,
			"payment_id":    vp.PaymentID(),
			"refund_amount": booking.RefundAmount,
		}).Warn("Payment captured on a closed booking, full refund queued")
		return booking, lateCaptureError(booking)
	case outcome == paymentReplayed && booking.HasLateCapture():
		return booking, lateCaptureError(booking)
	case outcome == paymentReplayed:
		s.logger.WithFields(logrus.Fields{
			"booking_id": booking.BookingID,
			"payment_id": vp.PaymentID(),
		}).Info("Payment already recorded, ignoring replay")
		return booking, nil
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":  booking.BookingID,
		"payment_id":  vp.PaymentID(),
		"paid_amount": booking.PaidAmount,
		"source":      origin.source,
	}).Info("Payment recorded")

	n := NewBookingNotification(EventBookingPaid, booking)
	n.Data["paid_amount"] = booking.PaidAmount
	s.notifier.Emit(n)
	return booking, nil
}

type paymentOutcome int

const (
	paymentApplied paymentOutcome = iota
	paymentReplayed
	// paymentRefundQueued: the gateway captured money for a booking that had
	// already expired or been cancelled, so all of it is owed back
	paymentRefundQueued
)

func lateCaptureError(b *models.Booking) error {
	return models.ErrInvalidTransition.WithMessage("booking is %s, the captured payment of %d will be refunded", b.Status, b.RefundAmount)
}

func (s *BookingLifecycleService) applyPayment(ctx context.Context, bookingID string, vp VerifiedPayment) (*models.Booking, paymentOutcome, error) {
	var (
		booking *models.Booking
		outcome paymentOutcome
	)
	err := s.store.InTx(ctx, func(tx database.Repositories) error {
		b, err := tx.Bookings.GetByBookingID(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.HasPaymentID(vp.PaymentID()) {
			booking, outcome = b, paymentReplayed
			return nil
		}
		if b.Status.IsPaidOrLater() || b.PaymentID != nil {
			return models.ErrAlreadyPaid
		}
		if b.Status == models.BookingStatusCancelled || b.Status == models.BookingStatusExpired {
			if b.PaymentOrderID == nil || *b.PaymentOrderID != vp.OrderID() {
				return models.ErrInvalidSignature.WithMessage("payment order does not belong to this booking")
			}
			b.RefundAmount = b.AttachPayment(vp.OrderID(), vp.PaymentID(), vp.Signature())
			b.RefundStatus = models.RefundStatusPending
			if err := tx.Bookings.Update(ctx, b, b.Status); err != nil {
				return err
			}
			booking, outcome = b, paymentRefundQueued
			return nil
		}
		if b.Status != models.BookingStatusConfirmed {
			return models.ErrInvalidTransition.WithMessage("booking is %s, payment requires confirmed", b.Status)
		}
		if b.PaymentOrderID != nil && *b.PaymentOrderID != vp.OrderID() {
			return models.ErrInvalidSignature.WithMessage("payment order does not belong to this booking")
		}

		b.AttachPayment(vp.OrderID(), vp.PaymentID(), vp.Signature())
		b.Status = models.BookingStatusPaid
		b.StampTransition(models.BookingStatusPaid, s.now())

		if err := tx.Bookings.Update(ctx, b, models.BookingStatusConfirmed); err != nil {
			return err
		}
		booking, outcome = b, paymentApplied
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return booking, outcome, nil
}

// ============================================================================
// CONFIRM PAYMENT (checkout callback)
// ============================================================================

// ConfirmPayment verifies a checkout callback and records the payment.
// A bad signature leaves the booking untouched.
func (s *BookingLifecycleService) ConfirmPayment(ctx context.Context, cmd models.ConfirmPaymentCommand) (*models.Booking, error) {
	if err := models.ValidateCommand(cmd); err != nil {
		return nil, err
	}
	origin := paymentOrigin{
		source:    models.PaymentSourceUser,
		clientIP:  cmd.ClientIP,
		userAgent: cmd.UserAgent,
		started:   time.Now(),
	}

	b, err := s.store.Repos().Bookings.GetByBookingID(ctx, cmd.BookingID)
	if err != nil {
		return nil, err
	}
	if b.StudentID != cmd.StudentID {
		return nil, models.ErrForbidden.WithMessage("only the booking's student can confirm its payment")
	}

	vp, err := s.verifier.VerifySignature(cmd.OrderID, cmd.PaymentID, cmd.Signature)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"booking_id": cmd.BookingID,
			"order_id":   cmd.OrderID,
			"client_ip":  cmd.ClientIP,
		}).Warn("Payment signature rejected")
		s.audit(ctx, models.NewPaymentAudit(models.PaymentEventSignatureRejected, origin.source).
			SetBooking(cmd.BookingID).
			SetOrderID(cmd.OrderID).
			SetPaymentID(cmd.PaymentID).
			SetMetadata(cmd.ClientIP, cmd.UserAgent).
			SetError(err.Error(), nil))
		return nil, err
	}

	s.audit(ctx, models.NewPaymentAudit(models.PaymentEventSignatureVerified, origin.source).
		SetBooking(cmd.BookingID).
		SetOrderID(cmd.OrderID).
		SetPaymentID(cmd.PaymentID).
		SetMetadata(cmd.ClientIP, cmd.UserAgent))

	if s.config.VerifyWithFetch && !b.HasPaymentID(cmd.PaymentID) {
		if err := s.checkGatewayPayment(ctx, b, vp); err != nil {
			return nil, err
		}
	}

	return s.recordPayment(ctx, cmd.BookingID, vp, origin)
}

// checkGatewayPayment asks the gateway whether the payment really settled the booking's amount
func (s *BookingLifecycleService) checkGatewayPayment(ctx context.Context, b *models.Booking, vp VerifiedPayment) error {
	started := time.Now()
	p, err := s.gateway.FetchPayment(ctx, vp.PaymentID())
	if err != nil {
		return err
	}

	a := models.NewPaymentAudit(models.PaymentEventAmountMismatch, models.PaymentSourceGatewayAPI).
		SetBooking(b.BookingID).
		SetOrderID(vp.OrderID()).
		SetPaymentID(vp.PaymentID()).
		SetPaymentStatus(p.Status).
		SetProcessingTime(started)
	match := a.SetAmounts(b.TotalAmount-b.PaidAmount, p.Amount, p.Currency)

	switch {
	case !match:
		s.audit(ctx, a)
		return models.ErrInvalidSignature.WithMessage("paid amount %d does not match booking amount %d", p.Amount, b.TotalAmount-b.PaidAmount)
	case p.OrderID != "" && p.OrderID != vp.OrderID():
		s.audit(ctx, a.SetError("order mismatch", nil))
		return models.ErrInvalidSignature.WithMessage("payment belongs to a different order")
	case p.Status != payment.StatusCaptured && p.Status != payment.StatusAuthorized:
		s.audit(ctx, a.SetError("payment not settled", nil))
		return models.ErrInvalidSignature.WithMessage("payment is %s", p.Status)
	}
	return nil
}

// ============================================================================
// WEBHOOK
// ============================================================================

// HandleWebhook processes a gateway webhook delivery. Deliveries that can never
// succeed (unknown order, already paid, amount mismatch) are acknowledged and
// only logged so the gateway stops redelivering them. A capture on an expired
// or cancelled booking is acknowledged after its full refund has been queued.
func (s *BookingLifecycleService) HandleWebhook(ctx context.Context, wh models.PaymentWebhook) error {
	started := time.Now()

	if err := s.verifier.VerifyWebhook(wh.Body, wh.Signature); err != nil {
		s.logger.WithField("client_ip", wh.ClientIP).Warn("Webhook signature rejected")
		s.audit(ctx, models.NewPaymentAudit(models.PaymentEventSignatureRejected, models.PaymentSourceGatewayWebhook).
			SetMetadata(wh.ClientIP, "").
			SetError(err.Error(), nil))
		return err
	}

	ev, err := payment.ParseWebhookEvent(wh.Body, wh.EventID)
	if err != nil {
		return models.NewValidationError("%v", err)
	}

	if s.dedupe != nil && ev.ID != "" {
		first, err := s.dedupe.MarkSeen(ctx, ev.ID)
		if err != nil {
			// Payment recording is idempotent, so a dedupe outage only costs extra work.
			s.logger.WithError(err).WithField("event_id", ev.ID).Warn("Webhook dedupe unavailable")
		} else if !first {
			s.logger.WithFields(logrus.Fields{
				"event_id": ev.ID,
				"event":    ev.Event,
			}).Info("Duplicate webhook delivery ignored")
			return nil
		}
	}

	entity := ev.Payload.Payment.Entity
	s.audit(ctx, models.NewPaymentAudit(models.PaymentEventWebhookReceived, models.PaymentSourceGatewayWebhook).
		SetOrderID(entity.OrderID).
		SetPaymentID(entity.ID).
		SetPaymentStatus(ev.Event).
		SetIdempotencyKey(ev.ID).
		SetMetadata(wh.ClientIP, ""))

	switch ev.Event {
	case payment.EventPaymentCaptured:
		err = s.applyCapturedWebhook(ctx, wh, ev, started)
	default:
		s.logger.WithFields(logrus.Fields{
			"event_id": ev.ID,
			"event":    ev.Event,
		}).Debug("Ignoring webhook event")
		return nil
	}

	if err == nil {
		return nil
	}
	if kind := models.KindOf(err); kind != "" && kind != models.KindExternalService {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"event_id": ev.ID,
			"order_id": entity.OrderID,
		}).Warn("Webhook acknowledged without applying")
		return nil
	}

	if s.dedupe != nil && ev.ID != "" {
		if ferr := s.dedupe.Forget(ctx, ev.ID); ferr != nil {
			s.logger.WithError(ferr).WithField("event_id", ev.ID).Warn("Failed to clear webhook dedupe key")
		}
	}
	return err
}

func (s *BookingLifecycleService) applyCapturedWebhook(ctx context.Context, wh models.PaymentWebhook, ev *payment.WebhookEvent, started time.Time) error {
	entity := ev.Payload.Payment.Entity
	if entity.OrderID == "" || entity.ID == "" {
		return models.NewValidationError("captured webhook has no order or payment id")
	}

	b, err := s.store.Repos().Bookings.GetByOrderID(ctx, entity.OrderID)
	if err != nil {
		return err
	}

	if !b.HasPaymentID(entity.ID) {
		a := models.NewPaymentAudit(models.PaymentEventAmountMismatch, models.PaymentSourceGatewayWebhook).
			SetBooking(b.BookingID).
			SetOrderID(entity.OrderID).
			SetPaymentID(entity.ID).
			SetIdempotencyKey(ev.ID)
		if !a.SetAmounts(b.TotalAmount-b.PaidAmount, entity.Amount, entity.Currency) {
			s.audit(ctx, a)
			return models.ErrInvalidSignature.WithMessage("captured amount %d does not match booking amount %d", entity.Amount, b.TotalAmount-b.PaidAmount)
		}
	}

	vp, err := s.verifier.VerifyWebhookPayment(wh.Body, wh.Signature, entity.OrderID, entity.ID)
	if err != nil {
		return err
	}

	_, err = s.recordPayment(ctx, b.BookingID, vp, paymentOrigin{
		source:   models.PaymentSourceGatewayWebhook,
		clientIP: wh.ClientIP,
		eventID:  ev.ID,
		started:  started,
	})
	return err
}
