package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/staynest/hostel-booking-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKeySecret     = "test_key_secret"
	testWebhookSecret = "test_webhook_secret"
	testPhone         = "9876543210"
)

type testEnv struct {
	svc      *BookingLifecycleService
	store    *fakeStore
	gateway  *fakeGateway
	notes    *recordingNotifier
	emitter  *NotificationEmitter
	verifier *PaymentVerifier
	hostel   models.Hostel
	now      time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		store:    newFakeStore(),
		gateway:  newFakeGateway(),
		notes:    &recordingNotifier{},
		verifier: NewPaymentVerifier(testKeySecret, testWebhookSecret),
		now:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		hostel: models.Hostel{
			ID:         uuid.New(),
			OwnerID:    uuid.New(),
			Name:       "Green Leaf Hostel",
			City:       "Pune",
			IsActive:   true,
			IsVerified: true,
		},
	}

	env.store.addHostel(env.hostel,
		models.RoomTariff{RoomType: models.RoomTypeSingle, MonthlyRent: 1000, SecurityDeposit: 500, FoodMonthlyCost: 300},
		models.RoomTariff{RoomType: models.RoomTypeDouble, MonthlyRent: 8000, SecurityDeposit: 2000},
	)
	env.store.setInventory(env.hostel.ID, models.RoomTypeSingle, 3, 3)
	env.store.setInventory(env.hostel.ID, models.RoomTypeDouble, 2, 2)

	logger := quietLogger()
	env.emitter = NewNotificationEmitter(time.Second, logger, env.notes)

	cfg := DefaultBookingLifecycleConfig()
	cfg.PaymentKeyID = "key_test"
	env.svc = NewBookingLifecycleService(
		env.store,
		NewPricingCalculator(),
		NewRefundPolicy(),
		env.verifier,
		env.gateway,
		env.emitter,
		nil,
		cfg,
		logger,
	)
	env.svc.SetClock(func() time.Time { return env.now })
	return env
}

func (e *testEnv) createCommand(studentID uuid.UUID) models.CreateBookingCommand {
	checkIn := e.now.AddDate(0, 0, 40)
	return models.CreateBookingCommand{
		StudentID:                studentID,
		HostelID:                 e.hostel.ID,
		RoomType:                 models.RoomTypeSingle,
		CheckInDate:              checkIn,
		CheckOutDate:             checkIn.AddDate(0, 6, 0),
		DurationMonths:           6,
		EmergencyContactName:     "Asha Rao",
		EmergencyContactPhone:    testPhone,
		EmergencyContactRelation: "mother",
	}
}

func (e *testEnv) create(t *testing.T) *models.Booking {
	t.Helper()
	b, err := e.svc.CreateBooking(context.Background(), e.createCommand(uuid.New()))
	require.NoError(t, err)
	return b
}

func (e *testEnv) confirmed(t *testing.T) *models.Booking {
	t.Helper()
	b := e.create(t)
	b, err := e.svc.Confirm(context.Background(), b.BookingID, e.hostel.OwnerID)
	require.NoError(t, err)
	return b
}

// paid walks a booking through checkout with a valid signature
func (e *testEnv) paid(t *testing.T) *models.Booking {
	t.Helper()
	b := e.confirmed(t)
	ctx := context.Background()

	order, err := e.svc.InitiatePayment(ctx, b.BookingID, b.StudentID)
	require.NoError(t, err)

	paymentID := "pay_" + b.BookingID
	e.gateway.addPayment(capturedPayment(order.OrderID, paymentID, order.Amount))

	b, err = e.svc.ConfirmPayment(ctx, models.ConfirmPaymentCommand{
		BookingID: b.BookingID,
		StudentID: b.StudentID,
		OrderID:   order.OrderID,
		PaymentID: paymentID,
		Signature: e.verifier.Sign(order.OrderID, paymentID),
	})
	require.NoError(t, err)
	return b
}

func ownerActor(e *testEnv) models.Actor {
	return models.Actor{ID: e.hostel.OwnerID, Role: models.ActorRoleOwner}
}

// ============================================================================
// CREATE
// ============================================================================

func TestCreateBooking_ReservesRoomAndPrices(t *testing.T) {
	env := newTestEnv(t)

	b, err := env.svc.CreateBooking(context.Background(), env.createCommand(uuid.New()))
	require.NoError(t, err)

	assert.Regexp(t, `^BK-20260301-[0-9A-F]{6}$`, b.BookingID)
	assert.Equal(t, models.BookingStatusPending, b.Status)
	assert.Equal(t, int64(6500), b.TotalAmount)
	assert.Equal(t, int64(6500), b.PendingAmount)
	assert.Equal(t, int64(0), b.PaidAmount)
	assert.Equal(t, env.hostel.OwnerID, b.OwnerID)
	assert.Equal(t, "INR", b.Currency)
	assert.Equal(t, models.RefundStatusNotApplicable, b.RefundStatus)
	assert.Equal(t, 2, env.store.available(env.hostel.ID, models.RoomTypeSingle))

	stored := env.store.booking(t, b.BookingID)
	assert.Equal(t, b.TotalAmount, stored.TotalAmount)

	env.emitter.Wait()
	assert.Equal(t, []NotificationEvent{EventBookingCreated}, env.notes.Events())
}

func TestCreateBooking_FoodPlan(t *testing.T) {
	env := newTestEnv(t)

	cmd := env.createCommand(uuid.New())
	cmd.FoodPlan = true
	b, err := env.svc.CreateBooking(context.Background(), cmd)
	require.NoError(t, err)

	assert.Equal(t, int64(6500+300*6), b.TotalAmount)
	assert.Equal(t, int64(300), b.FoodMonthlyCost)
}

func TestCreateBooking_RetriesOnBookingIDCollision(t *testing.T) {
	env := newTestEnv(t)
	env.store.insertCollisions = 2

	b, err := env.svc.CreateBooking(context.Background(), env.createCommand(uuid.New()))
	require.NoError(t, err)
	assert.NotEmpty(t, b.BookingID)
	assert.Equal(t, 2, env.store.available(env.hostel.ID, models.RoomTypeSingle))
}

func TestCreateBooking_GivesUpAfterRepeatedCollisions(t *testing.T) {
	env := newTestEnv(t)
	env.store.insertCollisions = 5

	_, err := env.svc.CreateBooking(context.Background(), env.createCommand(uuid.New()))
	require.Error(t, err)

	// Reservation rolled back with the failed insert
	assert.Equal(t, 3, env.store.available(env.hostel.ID, models.RoomTypeSingle))
}

func TestCreateBooking_NoRoomsLeft(t *testing.T) {
	env := newTestEnv(t)
	env.store.setInventory(env.hostel.ID, models.RoomTypeSingle, 3, 0)

	_, err := env.svc.CreateBooking(context.Background(), env.createCommand(uuid.New()))
	assert.ErrorIs(t, err, models.ErrRoomUnavailable)
}

func TestCreateBooking_RoomTypeNotOffered(t *testing.T) {
	env := newTestEnv(t)

	cmd := env.createCommand(uuid.New())
	cmd.RoomType = models.RoomTypeTriple
	_, err := env.svc.CreateBooking(context.Background(), cmd)
	assert.ErrorIs(t, err, models.ErrRoomUnavailable)
}

func TestCreateBooking_HostelUnavailable(t *testing.T) {
	env := newTestEnv(t)

	unverified := env.hostel
	unverified.ID = uuid.New()
	unverified.IsVerified = false
	env.store.addHostel(unverified, models.RoomTariff{RoomType: models.RoomTypeSingle, MonthlyRent: 1000})

	cmd := env.createCommand(uuid.New())
	cmd.HostelID = unverified.ID
	_, err := env.svc.CreateBooking(context.Background(), cmd)
	assert.ErrorIs(t, err, models.ErrHostelUnavailable)

	cmd.HostelID = uuid.New()
	_, err = env.svc.CreateBooking(context.Background(), cmd)
	assert.ErrorIs(t, err, models.ErrHostelUnavailable)
}

func TestCreateBooking_DuplicateActiveBooking(t *testing.T) {
	env := newTestEnv(t)
	studentID := uuid.New()

	_, err := env.svc.CreateBooking(context.Background(), env.createCommand(studentID))
	require.NoError(t, err)

	_, err = env.svc.CreateBooking(context.Background(), env.createCommand(studentID))
	assert.ErrorIs(t, err, models.ErrDuplicateActiveBooking)
	assert.Equal(t, 2, env.store.available(env.hostel.ID, models.RoomTypeSingle))
}

func TestCreateBooking_StudentCanRebookAfterCancelling(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	studentID := uuid.New()

	b, err := env.svc.CreateBooking(ctx, env.createCommand(studentID))
	require.NoError(t, err)

	_, err = env.svc.Cancel(ctx, models.CancelBookingCommand{
		BookingID: b.BookingID,
		ActorID:   studentID,
		ActorRole: models.ActorRoleStudent,
	})
	require.NoError(t, err)

	_, err = env.svc.CreateBooking(ctx, env.createCommand(studentID))
	assert.NoError(t, err)
}

func TestCreateBooking_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		mutate func(*models.CreateBookingCommand)
	}{
		{"check-in in the past", func(c *models.CreateBookingCommand) {
			c.CheckInDate = env.now.AddDate(0, 0, -1)
			c.CheckOutDate = env.now.AddDate(0, 6, 0)
		}},
		{"check-out before check-in", func(c *models.CreateBookingCommand) { c.CheckOutDate = c.CheckInDate.AddDate(0, 0, -1) }},
		{"zero duration", func(c *models.CreateBookingCommand) { c.DurationMonths = 0 }},
		{"unknown room type", func(c *models.CreateBookingCommand) { c.RoomType = "suite" }},
		{"invalid phone", func(c *models.CreateBookingCommand) { c.EmergencyContactPhone = "12345" }},
		{"missing contact", func(c *models.CreateBookingCommand) { c.EmergencyContactName = "" }},
		{"food plan not offered", func(c *models.CreateBookingCommand) {
			c.RoomType = models.RoomTypeDouble
			c.FoodPlan = true
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := env.createCommand(uuid.New())
			tt.mutate(&cmd)

			_, err := env.svc.CreateBooking(context.Background(), cmd)
			require.Error(t, err)
			assert.Equal(t, models.KindValidation, models.KindOf(err))
		})
	}

	assert.Equal(t, 3, env.store.available(env.hostel.ID, models.RoomTypeSingle))
}

func TestCreateBooking_RaceForLastRoom(t *testing.T) {
	env := newTestEnv(t)
	env.store.setInventory(env.hostel.ID, models.RoomTypeSingle, 1, 1)

	const callers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.CreateBooking(context.Background(), env.createCommand(uuid.New()))

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if assert.ErrorIs(t, err, models.ErrRoomUnavailable) {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, callers-1, rejected)
	assert.Equal(t, 0, env.store.available(env.hostel.ID, models.RoomTypeSingle))
}

// ============================================================================
// OWNER DECISIONS
// ============================================================================

func TestConfirm(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.create(t)

	_, err := env.svc.Confirm(ctx, b.BookingID, uuid.New())
	assert.ErrorIs(t, err, models.ErrForbidden)

	confirmed, err := env.svc.Confirm(ctx, b.BookingID, env.hostel.OwnerID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.ConfirmedAt)
	assert.Equal(t, env.now, *confirmed.ConfirmedAt)

	_, err = env.svc.Confirm(ctx, b.BookingID, env.hostel.OwnerID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	_, err = env.svc.Confirm(ctx, "BK-00000000-000000", env.hostel.OwnerID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestConfirm_PaidBooking(t *testing.T) {
	env := newTestEnv(t)
	b := env.paid(t)

	_, err := env.svc.Confirm(context.Background(), b.BookingID, env.hostel.OwnerID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	stored := env.store.booking(t, b.BookingID)
	assert.Equal(t, models.BookingStatusPaid, stored.Status)
	assert.Equal(t, b.Version, stored.Version)
}

func TestConfirm_ConcurrentCallsSucceedOnce(t *testing.T) {
	env := newTestEnv(t)
	b := env.create(t)

	const callers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.Confirm(context.Background(), b.BookingID, env.hostel.OwnerID)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, models.ErrInvalidTransition)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int64(2), env.store.booking(t, b.BookingID).Version)
}

func TestReject_ReleasesInventory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.create(t)
	require.Equal(t, 2, env.store.available(env.hostel.ID, models.RoomTypeSingle))

	_, err := env.svc.Reject(ctx, models.RejectBookingCommand{BookingID: b.BookingID, OwnerID: env.hostel.OwnerID})
	assert.Equal(t, models.KindValidation, models.KindOf(err))

	rejected, err := env.svc.Reject(ctx, models.RejectBookingCommand{
		BookingID: b.BookingID,
		OwnerID:   env.hostel.OwnerID,
		Reason:    "  hostel under renovation ",
	})
	require.NoError(t, err)

	assert.Equal(t, models.BookingStatusRejected, rejected.Status)
	require.NotNil(t, rejected.RejectedAt)
	require.NotNil(t, rejected.CancellationReason)
	assert.Equal(t, "hostel under renovation", *rejected.CancellationReason)
	require.NotNil(t, rejected.CancelledByRole)
	assert.Equal(t, models.ActorRoleOwner, *rejected.CancelledByRole)
	assert.Equal(t, models.RefundStatusNotApplicable, rejected.RefundStatus)
	assert.Equal(t, 3, env.store.available(env.hostel.ID, models.RoomTypeSingle))

	_, err = env.svc.Reject(ctx, models.RejectBookingCommand{BookingID: b.BookingID, OwnerID: env.hostel.OwnerID, Reason: "again"})
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestReject_OnlyPendingBookings(t *testing.T) {
	env := newTestEnv(t)
	b := env.confirmed(t)

	_, err := env.svc.Reject(context.Background(), models.RejectBookingCommand{
		BookingID: b.BookingID,
		OwnerID:   env.hostel.OwnerID,
		Reason:    "changed my mind",
	})
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.Equal(t, 2, env.store.available(env.hostel.ID, models.RoomTypeSingle))
}

// ============================================================================
// CANCEL
// ============================================================================

func TestCancel_TwentyDaysBeforeCheckIn(t *testing.T) {
	env := newTestEnv(t)
	studentID := uuid.New()
	paymentID := "pay_20000"

	env.store.setInventory(env.hostel.ID, models.RoomTypeSingle, 3, 2)
	env.store.putBooking(models.Booking{
		BookingID:    "BK-20260301-AAAAAA",
		StudentID:    studentID,
		HostelID:     env.hostel.ID,
		OwnerID:      env.hostel.OwnerID,
		RoomType:     models.RoomTypeSingle,
		Status:       models.BookingStatusPaid,
		CheckInDate:  env.now.AddDate(0, 0, 20),
		TotalAmount:  20000,
		PaidAmount:   20000,
		PaymentID:    &paymentID,
		RefundStatus: models.RefundStatusNotApplicable,
		CreatedAt:    env.now.AddDate(0, 0, -5),
		Version:      3,
	})

	cancelled, err := env.svc.Cancel(context.Background(), models.CancelBookingCommand{
		BookingID: "BK-20260301-AAAAAA",
		ActorID:   studentID,
		ActorRole: models.ActorRoleStudent,
		Reason:    "found another place",
	})
	require.NoError(t, err)

	assert.Equal(t, models.BookingStatusCancelled, cancelled.Status)
	assert.Equal(t, int64(14000), cancelled.RefundAmount)
	assert.Equal(t, models.RefundStatusPending, cancelled.RefundStatus)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, 3, env.store.available(env.hostel.ID, models.RoomTypeSingle))
	assert.Contains(t, env.store.auditEvents(), models.PaymentEventRefundInitiated)
}

func TestCancel_RefundTiers(t *testing.T) {
	tests := []struct {
		name           string
		daysAhead      int
		paid           int64
		expectedRefund int64
		expectedStatus models.RefundStatus
	}{
		{"40 days ahead", 40, 10000, 9000, models.RefundStatusPending},
		{"10 days ahead", 10, 10000, 5000, models.RefundStatusPending},
		{"3 days ahead", 3, 10000, 2000, models.RefundStatusPending},
		{"check-in day", 0, 10000, 0, models.RefundStatusNotApplicable},
		{"unpaid booking", 40, 0, 0, models.RefundStatusNotApplicable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.store.setInventory(env.hostel.ID, models.RoomTypeSingle, 3, 2)

			status := models.BookingStatusPaid
			if tt.paid == 0 {
				status = models.BookingStatusConfirmed
			}
			b := models.Booking{
				BookingID:    "BK-20260301-BBBBBB",
				StudentID:    uuid.New(),
				HostelID:     env.hostel.ID,
				OwnerID:      env.hostel.OwnerID,
				RoomType:     models.RoomTypeSingle,
				Status:       status,
				CheckInDate:  env.now.AddDate(0, 0, tt.daysAhead),
				TotalAmount:  10000,
				PaidAmount:   tt.paid,
				RefundStatus: models.RefundStatusNotApplicable,
				CreatedAt:    env.now,
				Version:      1,
			}
			if tt.paid > 0 {
				id := "pay_x"
				b.PaymentID = &id
			} else {
				confirmedAt := env.now
				b.ConfirmedAt = &confirmedAt
			}
			env.store.putBooking(b)

			cancelled, err := env.svc.Cancel(context.Background(), models.CancelBookingCommand{
				BookingID: b.BookingID,
				ActorID:   uuid.New(),
				ActorRole: models.ActorRoleAdmin,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.expectedRefund, cancelled.RefundAmount)
			assert.Equal(t, tt.expectedStatus, cancelled.RefundStatus)
		})
	}
}

func TestCancel_Authorization(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	b := env.create(t)
	_, err := env.svc.Cancel(ctx, models.CancelBookingCommand{BookingID: b.BookingID, ActorID: uuid.New(), ActorRole: models.ActorRoleStudent})
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = env.svc.Cancel(ctx, models.CancelBookingCommand{BookingID: b.BookingID, ActorID: uuid.New(), ActorRole: models.ActorRoleOwner})
	assert.ErrorIs(t, err, models.ErrForbidden)

	cancelled, err := env.svc.Cancel(ctx, models.CancelBookingCommand{BookingID: b.BookingID, ActorID: env.hostel.OwnerID, ActorRole: models.ActorRoleOwner})
	require.NoError(t, err)
	require.NotNil(t, cancelled.CancelledByRole)
	assert.Equal(t, models.ActorRoleOwner, *cancelled.CancelledByRole)

	_, err = env.svc.Cancel(ctx, models.CancelBookingCommand{BookingID: b.BookingID, ActorID: uuid.New(), ActorRole: "guest"})
	assert.Equal(t, models.KindValidation, models.KindOf(err))
}

func TestCancel_AfterCheckInIsInvalid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.paid(t)

	_, err := env.svc.CheckIn(ctx, b.BookingID, ownerActor(env))
	require.NoError(t, err)

	_, err = env.svc.Cancel(ctx, models.CancelBookingCommand{BookingID: b.BookingID, ActorID: b.StudentID, ActorRole: models.ActorRoleStudent})
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.Equal(t, 2, env.store.available(env.hostel.ID, models.RoomTypeSingle))
}

func TestQuoteRefund(t *testing.T) {
	env := newTestEnv(t)

	quote, err := env.svc.QuoteRefund(models.RefundQuoteRequest{PaidAmount: 20000, DaysUntilCheckIn: 20})
	require.NoError(t, err)
	assert.Equal(t, 70, quote.RefundPercent)
	assert.Equal(t, int64(14000), quote.RefundAmount)

	_, err = env.svc.QuoteRefund(models.RefundQuoteRequest{PaidAmount: -1, DaysUntilCheckIn: 20})
	assert.Equal(t, models.KindValidation, models.KindOf(err))
}

// ============================================================================
// OCCUPANCY
// ============================================================================

func TestOccupancyFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := ownerActor(env)

	b := env.paid(t)
	require.Equal(t, 2, env.store.available(env.hostel.ID, models.RoomTypeSingle))

	_, err := env.svc.Activate(ctx, b.BookingID, owner)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	_, err = env.svc.CheckIn(ctx, b.BookingID, models.Actor{ID: b.StudentID, Role: models.ActorRoleStudent})
	assert.ErrorIs(t, err, models.ErrForbidden)

	b, err = env.svc.CheckIn(ctx, b.BookingID, owner)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCheckedIn, b.Status)
	assert.NotNil(t, b.CheckedInAt)

	b, err = env.svc.Activate(ctx, b.BookingID, models.Actor{ID: uuid.New(), Role: models.ActorRoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusActive, b.Status)
	assert.Equal(t, 2, env.store.available(env.hostel.ID, models.RoomTypeSingle))

	b, err = env.svc.CheckOut(ctx, b.BookingID, owner)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCheckedOut, b.Status)
	assert.Equal(t, 3, env.store.available(env.hostel.ID, models.RoomTypeSingle))

	b, err = env.svc.Complete(ctx, b.BookingID, owner)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCompleted, b.Status)
	assert.NotNil(t, b.CompletedAt)
	assert.Equal(t, int64(0), b.PendingAmount)

	_, err = env.svc.Cancel(ctx, models.CancelBookingCommand{
		BookingID: b.BookingID,
		ActorID:   b.StudentID,
		ActorRole: models.ActorRoleStudent,
	})
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.Equal(t, 3, env.store.available(env.hostel.ID, models.RoomTypeSingle))
	stored := env.store.booking(t, b.BookingID)
	assert.Equal(t, models.BookingStatusCompleted, stored.Status)
	assert.Equal(t, models.RefundStatusNotApplicable, stored.RefundStatus)

	env.emitter.Wait()
	assert.Contains(t, env.notes.Events(), EventBookingCheckedOut)
}

// ============================================================================
// EXPIRY
// ============================================================================

func TestExpireStale(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	start := env.now

	pending := env.create(t)
	confirmed := env.confirmed(t)
	paid := env.paid(t)
	require.Equal(t, 0, env.store.available(env.hostel.ID, models.RoomTypeSingle))

	// Nothing is stale yet
	expired, err := env.svc.ExpireStale(ctx, start.Add(time.Hour), 100)
	require.NoError(t, err)
	assert.Equal(t, 0, expired)

	// Pending and Confirmed windows have passed
	expired, err = env.svc.ExpireStale(ctx, start.Add(49*time.Hour), 100)
	require.NoError(t, err)
	assert.Equal(t, 2, expired)
	assert.Equal(t, models.BookingStatusExpired, env.store.booking(t, pending.BookingID).Status)
	assert.Equal(t, models.BookingStatusExpired, env.store.booking(t, confirmed.BookingID).Status)
	assert.Equal(t, models.BookingStatusPaid, env.store.booking(t, paid.BookingID).Status)
	assert.Equal(t, 2, env.store.available(env.hostel.ID, models.RoomTypeSingle))

	// Paid no-show after check-in date plus grace
	expired, err = env.svc.ExpireStale(ctx, paid.CheckInDate.Add(73*time.Hour), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	noShow := env.store.booking(t, paid.BookingID)
	assert.Equal(t, models.BookingStatusExpired, noShow.Status)
	assert.NotNil(t, noShow.ExpiredAt)
	assert.Equal(t, models.RefundStatusNotApplicable, noShow.RefundStatus)
	assert.Equal(t, 3, env.store.available(env.hostel.ID, models.RoomTypeSingle))
}

func TestGetBooking_ExpiresOnRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.create(t)
	student := models.Actor{ID: b.StudentID, Role: models.ActorRoleStudent}

	got, err := env.svc.GetBooking(ctx, b.BookingID, student)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusPending, got.Status)

	_, err = env.svc.GetBooking(ctx, b.BookingID, models.Actor{ID: uuid.New(), Role: models.ActorRoleStudent})
	assert.ErrorIs(t, err, models.ErrForbidden)

	env.now = env.now.Add(48*time.Hour + time.Minute)
	got, err = env.svc.GetBooking(ctx, b.BookingID, student)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusExpired, got.Status)
	assert.Equal(t, 3, env.store.available(env.hostel.ID, models.RoomTypeSingle))
}

// ============================================================================
// READS AND INVENTORY
// ============================================================================

func TestListBookings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := env.create(t)
	env.now = env.now.Add(time.Minute)
	env.create(t)

	page, err := env.svc.ListStudentBookings(ctx, first.StudentID, models.ListBookingsQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 20, page.Limit)

	page, err = env.svc.ListHostelBookings(ctx, env.hostel.ID, ownerActor(env), models.ListBookingsQuery{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Len(t, page.Bookings, 1)

	_, err = env.svc.ListHostelBookings(ctx, env.hostel.ID, models.Actor{ID: uuid.New(), Role: models.ActorRoleOwner}, models.ListBookingsQuery{})
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = env.svc.ListStudentBookings(ctx, first.StudentID, models.ListBookingsQuery{Limit: 500})
	assert.Equal(t, models.KindValidation, models.KindOf(err))
}

func TestSetInventory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.create(t)

	inv, err := env.svc.SetInventory(ctx, env.hostel.ID, models.RoomTypeSingle, models.SetInventoryRequest{TotalRooms: 5}, ownerActor(env))
	require.NoError(t, err)
	assert.Equal(t, 5, inv.TotalRooms)
	assert.Equal(t, 4, inv.AvailableRooms)

	_, err = env.svc.SetInventory(ctx, env.hostel.ID, models.RoomTypeSingle, models.SetInventoryRequest{TotalRooms: 0}, ownerActor(env))
	assert.Equal(t, models.KindValidation, models.KindOf(err))

	_, err = env.svc.SetInventory(ctx, env.hostel.ID, models.RoomTypeSingle, models.SetInventoryRequest{TotalRooms: 9}, models.Actor{ID: uuid.New(), Role: models.ActorRoleOwner})
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = env.svc.SetInventory(ctx, env.hostel.ID, "suite", models.SetInventoryRequest{TotalRooms: 9}, ownerActor(env))
	assert.Equal(t, models.KindValidation, models.KindOf(err))

	resp, err := env.svc.GetInventory(ctx, env.hostel.ID)
	require.NoError(t, err)
	assert.Len(t, resp.RoomTypes, 2)
}

func TestInventoryInvariantHoldsAcrossLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := ownerActor(env)
	reconciler := NewInventoryReconciler(env.store, quietLogger())

	a := env.paid(t)
	b := env.confirmed(t)
	c := env.create(t)

	_, err := env.svc.CheckIn(ctx, a.BookingID, owner)
	require.NoError(t, err)
	_, err = env.svc.Cancel(ctx, models.CancelBookingCommand{BookingID: b.BookingID, ActorID: b.StudentID, ActorRole: models.ActorRoleStudent})
	require.NoError(t, err)
	_, err = env.svc.Reject(ctx, models.RejectBookingCommand{BookingID: c.BookingID, OwnerID: env.hostel.OwnerID, Reason: "full"})
	require.NoError(t, err)
	env.create(t)

	report, err := reconciler.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.HostelsChecked)
	assert.Equal(t, 2, report.RoomTypesChecked)
	assert.Empty(t, report.Drifts)
	assert.Equal(t, 1, env.store.available(env.hostel.ID, models.RoomTypeSingle))
}

func TestGenerateBookingID(t *testing.T) {
	at := time.Date(2026, 7, 9, 23, 59, 0, 0, time.UTC)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id, err := GenerateBookingID(at)
		require.NoError(t, err)
		assert.Regexp(t, `^BK-20260709-[0-9A-F]{6}$`, id)
		seen[id] = true
	}
	assert.Greater(t, len(seen), 45)
}
