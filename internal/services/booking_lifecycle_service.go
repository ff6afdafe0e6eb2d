package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/staynest/hostel-booking-backend/internal/database"
	"github.com/staynest/hostel-booking-backend/internal/models"
	"github.com/staynest/hostel-booking-backend/pkg/validator"
)

// BookingLifecycleConfig holds policy for the booking lifecycle
type BookingLifecycleConfig struct {
	ConfirmationWindow time.Duration // Pending bookings expire after this (default 48h)
	PaymentWindow      time.Duration // Confirmed bookings expire this long after confirmation (default 24h)
	NoShowGrace        time.Duration // Paid bookings expire this long after the check-in date (default 72h)
	Currency           string        // Default currency (default INR)
	MaxIDAttempts      int           // Booking id generation attempts (default 5)
	PaymentKeyID       string        // Public gateway key handed to checkout clients
	VerifyWithFetch    bool          // Cross-check amount with the gateway before recording a payment
}

// DefaultBookingLifecycleConfig returns default configuration
func DefaultBookingLifecycleConfig() BookingLifecycleConfig {
	return BookingLifecycleConfig{
		ConfirmationWindow: 48 * time.Hour,
		PaymentWindow:      24 * time.Hour,
		NoShowGrace:        72 * time.Hour,
		Currency:           models.DefaultCurrency,
		MaxIDAttempts:      5,
		VerifyWithFetch:    true,
	}
}

// BookingLifecycleService owns the booking state machine and keeps room
// inventory in step with it
type BookingLifecycleService struct {
	store    database.Store
	pricing  *PricingCalculator
	refunds  *RefundPolicy
	verifier *PaymentVerifier
	gateway  PaymentGateway
	notifier *NotificationEmitter
	dedupe   EventDeduplicator
	phones   *validator.PhoneValidator
	config   BookingLifecycleConfig
	logger   *logrus.Logger

	now          func() time.Time
	newBookingID func(time.Time) (string, error)
}

// NewBookingLifecycleService creates a new lifecycle service.
// dedupe may be nil, in which case webhook deliveries are not de-duplicated.
func NewBookingLifecycleService(
	store database.Store,
	pricing *PricingCalculator,
	refunds *RefundPolicy,
	verifier *PaymentVerifier,
	gateway PaymentGateway,
	notifier *NotificationEmitter,
	dedupe EventDeduplicator,
	config BookingLifecycleConfig,
	logger *logrus.Logger,
) *BookingLifecycleService {
	if config.MaxIDAttempts <= 0 {
		config.MaxIDAttempts = 5
	}
	if config.Currency == "" {
		config.Currency = models.DefaultCurrency
	}
	return &BookingLifecycleService{
		store:        store,
		pricing:      pricing,
		refunds:      refunds,
		verifier:     verifier,
		gateway:      gateway,
		notifier:     notifier,
		dedupe:       dedupe,
		phones:       validator.NewPhoneValidator(),
		config:       config,
		logger:       logger,
		now:          time.Now,
		newBookingID: GenerateBookingID,
	}
}

// SetClock replaces the time source
func (s *BookingLifecycleService) SetClock(now func() time.Time) {
	s.now = now
}

// GenerateBookingID returns an id of the form BK-YYYYMMDD-XXXXXX
func GenerateBookingID(at time.Time) (string, error) {
	randomBytes := make([]byte, 3)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return fmt.Sprintf("BK-%s-%s", at.UTC().Format("20060102"), strings.ToUpper(hex.EncodeToString(randomBytes))), nil
}

// ============================================================================
// CREATE
// ============================================================================

// CreateBooking reserves a room and records a Pending booking in one transaction
func (s *BookingLifecycleService) CreateBooking(ctx context.Context, cmd models.CreateBookingCommand) (*models.Booking, error) {
	if err := models.ValidateCommand(cmd); err != nil {
		return nil, err
	}

	now := s.now()
	if DaysUntil(cmd.CheckInDate, now) < 0 {
		return nil, models.NewValidationError("check_in_date must not be in the past")
	}
	phone, err := s.phones.Validate(cmd.EmergencyContactPhone)
	if err != nil {
		return nil, models.NewValidationError("emergency_contact_phone: %v", err)
	}

	repos := s.store.Repos()

	hostel, err := repos.Hostels.GetHostel(ctx, cmd.HostelID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrHostelUnavailable.WithMessage("hostel not found")
	}
	if err != nil {
		return nil, err
	}
	if !hostel.AcceptsBookings() {
		return nil, models.ErrHostelUnavailable
	}

	tariff, err := repos.Hostels.GetTariff(ctx, cmd.HostelID, cmd.RoomType)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrRoomUnavailable.WithMessage("hostel does not offer %s rooms", cmd.RoomType)
	}
	if err != nil {
		return nil, err
	}

	price, err := s.pricing.ComputeForTariff(tariff, cmd.DurationMonths, cmd.FoodPlan)
	if err != nil {
		return nil, err
	}

	active, err := repos.Bookings.HasActiveForStudent(ctx, cmd.StudentID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, models.ErrDuplicateActiveBooking
	}

	currency := cmd.Currency
	if currency == "" {
		currency = s.config.Currency
	}

	var food int64
	if cmd.FoodPlan {
		food = tariff.FoodMonthlyCost
	}

	booking := &models.Booking{
		ID:                       uuid.New(),
		StudentID:                cmd.StudentID,
		HostelID:                 hostel.ID,
		OwnerID:                  hostel.OwnerID,
		RoomType:                 cmd.RoomType,
		Status:                   models.BookingStatusPending,
		CheckInDate:              cmd.CheckInDate,
		CheckOutDate:             cmd.CheckOutDate,
		DurationMonths:           cmd.DurationMonths,
		FoodPlan:                 cmd.FoodPlan,
		MonthlyRent:              tariff.MonthlyRent,
		SecurityDeposit:          tariff.SecurityDeposit,
		MaintenanceCharges:       tariff.MaintenanceCharges,
		FoodMonthlyCost:          food,
		TotalAmount:              price.Total,
		Currency:                 currency,
		RefundStatus:             models.RefundStatusNotApplicable,
		EmergencyContactName:     strings.TrimSpace(cmd.EmergencyContactName),
		EmergencyContactPhone:    phone,
		EmergencyContactRelation: strings.TrimSpace(cmd.EmergencyContactRelation),
		CreatedAt:                now,
		Version:                  1,
	}
	booking.RecalculatePending()

	err = s.store.InTx(ctx, func(tx database.Repositories) error {
		if err := tx.Inventory.Reserve(ctx, booking.HostelID, booking.RoomType, 1); err != nil {
			if errors.Is(err, models.ErrInsufficientInventory) {
				return models.ErrRoomUnavailable
			}
			return err
		}

		for attempt := 1; attempt <= s.config.MaxIDAttempts; attempt++ {
			id, err := s.newBookingID(now)
			if err != nil {
				return err
			}
			booking.BookingID = id

			inserted, err := tx.Bookings.Insert(ctx, booking)
			if err != nil {
				return err
			}
			if inserted {
				return nil
			}
			s.logger.WithFields(logrus.Fields{
				"booking_id": id,
				"attempt":    attempt,
			}).Warn("Booking id collision, regenerating")
		}
		return fmt.Errorf("failed to allocate a unique booking id after %d attempts", s.config.MaxIDAttempts)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.BookingID,
		"student_id": booking.StudentID,
		"hostel_id":  booking.HostelID,
		"room_type":  booking.RoomType,
		"total":      booking.TotalAmount,
	}).Info("Booking created")

	s.notifier.Emit(NewBookingNotification(EventBookingCreated, booking))
	return booking, nil
}

// ============================================================================
// OWNER DECISIONS
// ============================================================================

// Confirm accepts a Pending booking on behalf of the hostel owner
func (s *BookingLifecycleService) Confirm(ctx context.Context, bookingID string, ownerID uuid.UUID) (*models.Booking, error) {
	actor := models.Actor{ID: ownerID, Role: models.ActorRoleOwner}
	return s.transition(ctx, transitionRule{
		bookingID: bookingID,
		from:      models.BookingStatusPending,
		to:        models.BookingStatusConfirmed,
		authorize: func(b *models.Booking) error { return requireHostelOwner(b, actor, false) },
		event:     EventBookingConfirmed,
	})
}

// Reject declines a Pending booking and returns its room to inventory
func (s *BookingLifecycleService) Reject(ctx context.Context, cmd models.RejectBookingCommand) (*models.Booking, error) {
	if err := models.ValidateCommand(cmd); err != nil {
		return nil, err
	}
	actor := models.Actor{ID: cmd.OwnerID, Role: models.ActorRoleOwner}
	reason := strings.TrimSpace(cmd.Reason)

	return s.transition(ctx, transitionRule{
		bookingID: cmd.BookingID,
		from:      models.BookingStatusPending,
		to:        models.BookingStatusRejected,
		authorize: func(b *models.Booking) error { return requireHostelOwner(b, actor, false) },
		mutate: func(b *models.Booking) {
			role := models.ActorRoleOwner
			b.CancellationReason = &reason
			b.CancelledBy = &actor.ID
			b.CancelledByRole = &role
			b.RefundAmount = 0
			b.RefundStatus = models.RefundStatusNotApplicable
		},
		release: true,
		event:   EventBookingRejected,
	})
}

// ============================================================================
// OCCUPANCY
// ============================================================================

// CheckIn records the student's arrival at a Paid booking
func (s *BookingLifecycleService) CheckIn(ctx context.Context, bookingID string, actor models.Actor) (*models.Booking, error) {
	return s.operational(ctx, bookingID, actor, models.BookingStatusPaid, models.BookingStatusCheckedIn, false, EventBookingCheckedIn)
}

// Activate marks a checked-in stay as running
func (s *BookingLifecycleService) Activate(ctx context.Context, bookingID string, actor models.Actor) (*models.Booking, error) {
	return s.operational(ctx, bookingID, actor, models.BookingStatusCheckedIn, models.BookingStatusActive, false, EventBookingActivated)
}

// CheckOut records the student's departure and frees the room
func (s *BookingLifecycleService) CheckOut(ctx context.Context, bookingID string, actor models.Actor) (*models.Booking, error) {
	return s.operational(ctx, bookingID, actor, models.BookingStatusActive, models.BookingStatusCheckedOut, true, EventBookingCheckedOut)
}

// Complete closes a checked-out booking
func (s *BookingLifecycleService) Complete(ctx context.Context, bookingID string, actor models.Actor) (*models.Booking, error) {
	return s.operational(ctx, bookingID, actor, models.BookingStatusCheckedOut, models.BookingStatusCompleted, false, EventBookingCompleted)
}

func (s *BookingLifecycleService) operational(
	ctx context.Context,
	bookingID string,
	actor models.Actor,
	from, to models.BookingStatus,
	release bool,
	event NotificationEvent,
) (*models.Booking, error) {
	return s.transition(ctx, transitionRule{
		bookingID: bookingID,
		from:      from,
		to:        to,
		authorize: func(b *models.Booking) error { return requireHostelOwner(b, actor, true) },
		release:   release,
		event:     event,
	})
}

// ============================================================================
// CANCEL
// ============================================================================

// Cancel cancels a Pending, Confirmed or Paid booking, computes the refund
// from a snapshot taken before any write, and frees the room
func (s *BookingLifecycleService) Cancel(ctx context.Context, cmd models.CancelBookingCommand) (*models.Booking, error) {
	if err := models.ValidateCommand(cmd); err != nil {
		return nil, err
	}
	actor := models.Actor{ID: cmd.ActorID, Role: cmd.ActorRole}
	reason := strings.TrimSpace(cmd.Reason)

	var booking *models.Booking
	err := s.store.InTx(ctx, func(tx database.Repositories) error {
		b, err := tx.Bookings.GetByBookingID(ctx, cmd.BookingID)
		if err != nil {
			return err
		}
		if err := authorizeCancel(b, actor); err != nil {
			return err
		}

		from := b.Status
		if !from.CanTransitionTo(models.BookingStatusCancelled) {
			return models.ErrInvalidTransition.WithMessage("cannot cancel a %s booking", from)
		}

		now := s.now()
		refund, err := s.refunds.RefundFor(b.Snapshot(now))
		if err != nil {
			return err
		}

		role := actor.Role
		b.Status = models.BookingStatusCancelled
		b.StampTransition(models.BookingStatusCancelled, now)
		if reason != "" {
			b.CancellationReason = &reason
		}
		b.CancelledBy = &actor.ID
		b.CancelledByRole = &role
		b.RefundAmount = refund
		if refund > 0 {
			b.RefundStatus = models.RefundStatusPending
		} else {
			b.RefundStatus = models.RefundStatusNotApplicable
		}

		if err := tx.Bookings.Update(ctx, b, from); err != nil {
			return err
		}
		if err := s.release(ctx, tx, b); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":    booking.BookingID,
		"actor_id":      actor.ID,
		"actor_role":    actor.Role,
		"refund_amount": booking.RefundAmount,
	}).Info("Booking cancelled")

	if booking.RefundAmount > 0 {
		s.audit(ctx, models.NewPaymentAudit(models.PaymentEventRefundInitiated, models.PaymentSourceBackend).
			SetBooking(booking.BookingID).
			SetPaymentID(deref(booking.PaymentID)))
	}

	n := NewBookingNotification(EventBookingCancelled, booking)
	n.Data["refund_amount"] = booking.RefundAmount
	s.notifier.Emit(n)
	return booking, nil
}

// QuoteRefund reports what cancelling with daysUntilCheckIn days notice would refund
func (s *BookingLifecycleService) QuoteRefund(req models.RefundQuoteRequest) (*models.RefundQuoteResponse, error) {
	amount, err := s.refunds.ComputeRefund(req.PaidAmount, req.DaysUntilCheckIn)
	if err != nil {
		return nil, err
	}
	return &models.RefundQuoteResponse{
		PaidAmount:       req.PaidAmount,
		DaysUntilCheckIn: req.DaysUntilCheckIn,
		RefundPercent:    s.refunds.Percent(req.DaysUntilCheckIn),
		RefundAmount:     amount,
	}, nil
}

// ============================================================================
// EXPIRY
// ============================================================================

// ExpireStale expires up to limit bookings that outlived their window as of now.
// Returns the number of bookings expired.
func (s *BookingLifecycleService) ExpireStale(ctx context.Context, now time.Time, limit int) (int, error) {
	cutoffs := database.ExpiryCutoffs{
		PendingCreatedBefore: now.Add(-s.config.ConfirmationWindow),
		ConfirmedBefore:      now.Add(-s.config.PaymentWindow),
		PaidCheckInBefore:    now.Add(-s.config.NoShowGrace),
	}

	candidates, err := s.store.Repos().Bookings.ListExpirable(ctx, cutoffs, limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, c := range candidates {
		b, err := s.expireOne(ctx, c.BookingID, now)
		if err != nil {
			if errors.Is(err, models.ErrInvalidTransition) {
				continue
			}
			s.logger.WithError(err).WithField("booking_id", c.BookingID).Error("Failed to expire booking")
			continue
		}
		if b != nil {
			expired++
		}
	}

	if expired > 0 {
		s.logger.WithField("count", expired).Info("Expired stale bookings")
	}
	return expired, nil
}

// IsExpired reports whether b has outlived its status window at now
func (s *BookingLifecycleService) IsExpired(b *models.Booking, now time.Time) bool {
	switch b.Status {
	case models.BookingStatusPending:
		return now.Sub(b.CreatedAt) > s.config.ConfirmationWindow
	case models.BookingStatusConfirmed:
		return b.ConfirmedAt != nil && now.Sub(*b.ConfirmedAt) > s.config.PaymentWindow
	case models.BookingStatusPaid:
		return now.After(b.CheckInDate.Add(s.config.NoShowGrace))
	}
	return false
}

// expireOne re-checks the booking inside a transaction and expires it.
// Returns nil booking when it is no longer expirable.
func (s *BookingLifecycleService) expireOne(ctx context.Context, bookingID string, now time.Time) (*models.Booking, error) {
	var booking *models.Booking
	err := s.store.InTx(ctx, func(tx database.Repositories) error {
		b, err := tx.Bookings.GetByBookingID(ctx, bookingID)
		if err != nil {
			return err
		}
		if !s.IsExpired(b, now) {
			return nil
		}

		from := b.Status
		b.Status = models.BookingStatusExpired
		b.StampTransition(models.BookingStatusExpired, now)

		if err := tx.Bookings.Update(ctx, b, from); err != nil {
			return err
		}
		if err := s.release(ctx, tx, b); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil || booking == nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.BookingID,
		"status":     booking.Status,
	}).Info("Booking expired")
	s.notifier.Emit(NewBookingNotification(EventBookingExpired, booking))
	return booking, nil
}

// ============================================================================
// READS
// ============================================================================

// GetBooking returns a booking visible to actor, expiring it first when its window has passed
func (s *BookingLifecycleService) GetBooking(ctx context.Context, bookingID string, actor models.Actor) (*models.Booking, error) {
	b, err := s.store.Repos().Bookings.GetByBookingID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := authorizeRead(b, actor); err != nil {
		return nil, err
	}

	now := s.now()
	if s.IsExpired(b, now) {
		expired, err := s.expireOne(ctx, bookingID, now)
		if err != nil && !errors.Is(err, models.ErrInvalidTransition) {
			return nil, err
		}
		if expired != nil {
			return expired, nil
		}
		return s.store.Repos().Bookings.GetByBookingID(ctx, bookingID)
	}
	return b, nil
}

// ListStudentBookings pages through a student's bookings
func (s *BookingLifecycleService) ListStudentBookings(ctx context.Context, studentID uuid.UUID, q models.ListBookingsQuery) (*models.BookingListResponse, error) {
	if err := models.ValidateCommand(q); err != nil {
		return nil, err
	}
	q.Normalize()
	bookings, total, err := s.store.Repos().Bookings.ListByStudent(ctx, studentID, q)
	if err != nil {
		return nil, err
	}
	return &models.BookingListResponse{Bookings: bookings, Total: total, Limit: q.Limit, Offset: q.Offset}, nil
}

// ListHostelBookings pages through a hostel's bookings for its owner
func (s *BookingLifecycleService) ListHostelBookings(ctx context.Context, hostelID uuid.UUID, actor models.Actor, q models.ListBookingsQuery) (*models.BookingListResponse, error) {
	if err := models.ValidateCommand(q); err != nil {
		return nil, err
	}
	if err := s.requireHostelAccess(ctx, hostelID, actor); err != nil {
		return nil, err
	}
	q.Normalize()
	bookings, total, err := s.store.Repos().Bookings.ListByHostel(ctx, hostelID, q)
	if err != nil {
		return nil, err
	}
	return &models.BookingListResponse{Bookings: bookings, Total: total, Limit: q.Limit, Offset: q.Offset}, nil
}

// ============================================================================
// INVENTORY
// ============================================================================

// GetInventory returns the room inventory of a hostel
func (s *BookingLifecycleService) GetInventory(ctx context.Context, hostelID uuid.UUID) (*models.InventoryResponse, error) {
	items, err := s.store.Repos().Inventory.ListByHostel(ctx, hostelID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.RoomInventory{}
	}
	return &models.InventoryResponse{HostelID: hostelID, RoomTypes: items}, nil
}

// SetInventory sets the total rooms of a room type on behalf of the hostel owner
func (s *BookingLifecycleService) SetInventory(ctx context.Context, hostelID uuid.UUID, roomType models.RoomType, req models.SetInventoryRequest, actor models.Actor) (*models.RoomInventory, error) {
	if !roomType.IsValid() {
		return nil, models.NewValidationError("unknown room type %q", roomType)
	}
	if err := models.ValidateCommand(req); err != nil {
		return nil, err
	}
	if err := s.requireHostelAccess(ctx, hostelID, actor); err != nil {
		return nil, err
	}

	inv, err := s.store.Repos().Inventory.SetTotal(ctx, hostelID, roomType, req.TotalRooms)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"hostel_id":       hostelID,
		"room_type":       roomType,
		"total_rooms":     inv.TotalRooms,
		"available_rooms": inv.AvailableRooms,
	}).Info("Inventory updated")
	return inv, nil
}

// ============================================================================
// HELPERS
// ============================================================================

type transitionRule struct {
	bookingID string
	from      models.BookingStatus
	to        models.BookingStatus
	authorize func(*models.Booking) error
	mutate    func(*models.Booking)
	release   bool
	event     NotificationEvent
}

// transition moves a booking from rule.from to rule.to in one transaction
func (s *BookingLifecycleService) transition(ctx context.Context, rule transitionRule) (*models.Booking, error) {
	if !rule.from.CanTransitionTo(rule.to) {
		return nil, models.ErrInvalidTransition.WithMessage("%s -> %s is not a valid transition", rule.from, rule.to)
	}

	var booking *models.Booking
	err := s.store.InTx(ctx, func(tx database.Repositories) error {
		b, err := tx.Bookings.GetByBookingID(ctx, rule.bookingID)
		if err != nil {
			return err
		}
		if rule.authorize != nil {
			if err := rule.authorize(b); err != nil {
				return err
			}
		}
		if b.Status != rule.from {
			return models.ErrInvalidTransition.WithMessage("booking is %s, expected %s", b.Status, rule.from)
		}

		b.Status = rule.to
		b.StampTransition(rule.to, s.now())
		if rule.mutate != nil {
			rule.mutate(b)
		}

		if err := tx.Bookings.Update(ctx, b, rule.from); err != nil {
			return err
		}
		if rule.release {
			if err := s.release(ctx, tx, b); err != nil {
				return err
			}
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.BookingID,
		"from":       rule.from,
		"to":         rule.to,
	}).Info("Booking status changed")

	if rule.event != "" {
		s.notifier.Emit(NewBookingNotification(rule.event, booking))
	}
	return booking, nil
}

// release returns the booking's room to inventory. A failed release means
// the ledger and the bookings table disagree, so the transaction is aborted.
func (s *BookingLifecycleService) release(ctx context.Context, tx database.Repositories, b *models.Booking) error {
	if err := tx.Inventory.Release(ctx, b.HostelID, b.RoomType, 1); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"booking_id": b.BookingID,
			"hostel_id":  b.HostelID,
			"room_type":  b.RoomType,
		}).Error("Inventory release failed")
		return err
	}
	return nil
}

func (s *BookingLifecycleService) requireHostelAccess(ctx context.Context, hostelID uuid.UUID, actor models.Actor) error {
	if actor.Role == models.ActorRoleAdmin {
		return nil
	}
	hostel, err := s.store.Repos().Hostels.GetHostel(ctx, hostelID)
	if err != nil {
		return err
	}
	if actor.Role != models.ActorRoleOwner || hostel.OwnerID != actor.ID {
		return models.ErrForbidden.WithMessage("only the hostel owner can manage this hostel")
	}
	return nil
}

func (s *BookingLifecycleService) audit(ctx context.Context, a *models.PaymentAudit) {
	if err := s.store.Repos().Audits.Log(ctx, a); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"event_type": a.EventType,
			"booking_id": deref(a.BookingID),
		}).Error("Failed to write payment audit")
	}
}

func requireHostelOwner(b *models.Booking, actor models.Actor, allowAdmin bool) error {
	if allowAdmin && actor.Role == models.ActorRoleAdmin {
		return nil
	}
	if b.OwnerID != actor.ID {
		return models.ErrForbidden.WithMessage("only the hostel owner can perform this action")
	}
	return nil
}

func authorizeCancel(b *models.Booking, actor models.Actor) error {
	switch actor.Role {
	case models.ActorRoleAdmin, models.ActorRoleSystem:
		return nil
	case models.ActorRoleStudent:
		if b.StudentID == actor.ID {
			return nil
		}
	case models.ActorRoleOwner:
		if b.OwnerID == actor.ID {
			return nil
		}
	}
	return models.ErrForbidden.WithMessage("not allowed to cancel this booking")
}

func authorizeRead(b *models.Booking, actor models.Actor) error {
	switch actor.Role {
	case models.ActorRoleAdmin, models.ActorRoleSystem:
		return nil
	case models.ActorRoleStudent:
		if b.StudentID == actor.ID {
			return nil
		}
	case models.ActorRoleOwner:
		if b.OwnerID == actor.ID {
			return nil
		}
	}
	return models.ErrForbidden.WithMessage("not allowed to view this booking")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
