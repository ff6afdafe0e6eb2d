package services

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/staynest/hostel-booking-backend/internal/database"
	"github.com/staynest/hostel-booking-backend/internal/models"
	"github.com/staynest/hostel-booking-backend/pkg/payment"
	"github.com/stretchr/testify/require"
)

type invKey struct {
	hostelID uuid.UUID
	roomType models.RoomType
}

// fakeStore is an in-memory database.Store. Transactions are serialised and
// roll back by restoring a snapshot taken when they began.
type fakeStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	hostels   map[uuid.UUID]models.Hostel
	tariffs   map[invKey]models.RoomTariff
	inventory map[invKey]models.RoomInventory
	bookings  map[string]models.Booking
	audits    []models.PaymentAudit

	// insertCollisions makes the next n inserts report a booking id collision
	insertCollisions int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		hostels:   make(map[uuid.UUID]models.Hostel),
		tariffs:   make(map[invKey]models.RoomTariff),
		inventory: make(map[invKey]models.RoomInventory),
		bookings:  make(map[string]models.Booking),
	}
}

func (s *fakeStore) Repos() database.Repositories {
	return database.Repositories{
		Bookings:  fakeBookings{s},
		Inventory: fakeInventory{s},
		Hostels:   fakeHostels{s},
		Audits:    fakeAudits{s},
	}
}

func (s *fakeStore) InTx(ctx context.Context, fn func(database.Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(s.Repos()); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *fakeStore) InSnapshot(ctx context.Context, fn func(database.Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(s.Repos())
}

type fakeSnapshot struct {
	inventory map[invKey]models.RoomInventory
	bookings  map[string]models.Booking
}

func (s *fakeStore) snapshot() fakeSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := fakeSnapshot{
		inventory: make(map[invKey]models.RoomInventory, len(s.inventory)),
		bookings:  make(map[string]models.Booking, len(s.bookings)),
	}
	for k, v := range s.inventory {
		snap.inventory[k] = v
	}
	for k, v := range s.bookings {
		snap.bookings[k] = v
	}
	return snap
}

func (s *fakeStore) restore(snap fakeSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inventory = snap.inventory
	s.bookings = snap.bookings
}

func (s *fakeStore) addHostel(h models.Hostel, tariffs ...models.RoomTariff) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hostels[h.ID] = h
	for _, t := range tariffs {
		t.HostelID = h.ID
		s.tariffs[invKey{h.ID, t.RoomType}] = t
	}
}

func (s *fakeStore) setInventory(hostelID uuid.UUID, roomType models.RoomType, total, available int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inventory[invKey{hostelID, roomType}] = models.RoomInventory{
		HostelID:       hostelID,
		RoomType:       roomType,
		TotalRooms:     total,
		AvailableRooms: available,
		Version:        1,
	}
}

func (s *fakeStore) available(hostelID uuid.UUID, roomType models.RoomType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inventory[invKey{hostelID, roomType}].AvailableRooms
}

func (s *fakeStore) booking(t *testing.T, bookingID string) models.Booking {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	require.True(t, ok, "booking %s not stored", bookingID)
	return b
}

func (s *fakeStore) putBooking(b models.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.RecalculatePending()
	s.bookings[b.BookingID] = b
}

func (s *fakeStore) auditEvents() []models.PaymentEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := make([]models.PaymentEventType, 0, len(s.audits))
	for _, a := range s.audits {
		events = append(events, a.EventType)
	}
	return events
}

// ----------------------------------------------------------------------------

type fakeBookings struct{ s *fakeStore }

func (f fakeBookings) Insert(ctx context.Context, b *models.Booking) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()

	if f.s.insertCollisions > 0 {
		f.s.insertCollisions--
		return false, nil
	}
	if _, ok := f.s.bookings[b.BookingID]; ok {
		return false, nil
	}
	for _, existing := range f.s.bookings {
		if existing.StudentID == b.StudentID && !existing.Status.IsTerminal() {
			return false, models.ErrDuplicateActiveBooking
		}
	}
	b.RecalculatePending()
	b.UpdatedAt = b.CreatedAt
	f.s.bookings[b.BookingID] = *b
	return true, nil
}

func (f fakeBookings) GetByBookingID(ctx context.Context, bookingID string) (*models.Booking, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	b, ok := f.s.bookings[bookingID]
	if !ok {
		return nil, models.ErrNotFound.WithMessage("booking not found")
	}
	return &b, nil
}

func (f fakeBookings) GetByOrderID(ctx context.Context, orderID string) (*models.Booking, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, b := range f.s.bookings {
		if b.PaymentOrderID != nil && *b.PaymentOrderID == orderID {
			return &b, nil
		}
	}
	return nil, models.ErrNotFound.WithMessage("booking not found")
}

func (f fakeBookings) HasActiveForStudent(ctx context.Context, studentID uuid.UUID) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, b := range f.s.bookings {
		if b.StudentID == studentID && !b.Status.IsTerminal() {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeBookings) Update(ctx context.Context, b *models.Booking, expected models.BookingStatus) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	stored, ok := f.s.bookings[b.BookingID]
	if !ok || stored.Status != expected || stored.Version != b.Version {
		return models.ErrInvalidTransition.WithMessage("booking %s is no longer %s", b.BookingID, expected)
	}
	b.RecalculatePending()
	b.Version++
	b.UpdatedAt = time.Now()
	f.s.bookings[b.BookingID] = *b
	return nil
}

func (f fakeBookings) ListByStudent(ctx context.Context, studentID uuid.UUID, q models.ListBookingsQuery) ([]models.Booking, int, error) {
	return f.list(func(b models.Booking) bool { return b.StudentID == studentID }, q)
}

func (f fakeBookings) ListByHostel(ctx context.Context, hostelID uuid.UUID, q models.ListBookingsQuery) ([]models.Booking, int, error) {
	return f.list(func(b models.Booking) bool { return b.HostelID == hostelID }, q)
}

func (f fakeBookings) list(match func(models.Booking) bool, q models.ListBookingsQuery) ([]models.Booking, int, error) {
	q.Normalize()
	all := f.filter(func(b models.Booking) bool {
		return match(b) && (q.Status == "" || b.Status == q.Status)
	})
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := len(all)
	if q.Offset >= total {
		return []models.Booking{}, total, nil
	}
	end := q.Offset + q.Limit
	if end > total {
		end = total
	}
	return all[q.Offset:end], total, nil
}

func (f fakeBookings) ListExpirable(ctx context.Context, c database.ExpiryCutoffs, limit int) ([]models.Booking, error) {
	out := f.filter(func(b models.Booking) bool {
		switch b.Status {
		case models.BookingStatusPending:
			return b.CreatedAt.Before(c.PendingCreatedBefore)
		case models.BookingStatusConfirmed:
			return b.ConfirmedAt != nil && b.ConfirmedAt.Before(c.ConfirmedBefore)
		case models.BookingStatusPaid:
			return b.CheckInDate.Before(c.PaidCheckInBefore)
		}
		return false
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f fakeBookings) ListPendingRefunds(ctx context.Context, limit int) ([]models.Booking, error) {
	out := f.filter(func(b models.Booking) bool {
		return b.Status.CarriesRefund() && b.RefundStatus == models.RefundStatusPending && b.PaymentID != nil
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f fakeBookings) CountReserving(ctx context.Context, hostelID uuid.UUID, roomType models.RoomType) (int, error) {
	return len(f.filter(func(b models.Booking) bool {
		return b.HostelID == hostelID && b.RoomType == roomType && b.Status.HoldsReservation()
	})), nil
}

func (f fakeBookings) filter(match func(models.Booking) bool) []models.Booking {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []models.Booking
	for _, b := range f.s.bookings {
		if match(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// ----------------------------------------------------------------------------

type fakeInventory struct{ s *fakeStore }

func (f fakeInventory) Reserve(ctx context.Context, hostelID uuid.UUID, roomType models.RoomType, n int) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	k := invKey{hostelID, roomType}
	inv, ok := f.s.inventory[k]
	if !ok || inv.AvailableRooms < n {
		return models.ErrInsufficientInventory
	}
	inv.AvailableRooms -= n
	inv.Version++
	f.s.inventory[k] = inv
	return nil
}

func (f fakeInventory) Release(ctx context.Context, hostelID uuid.UUID, roomType models.RoomType, n int) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	k := invKey{hostelID, roomType}
	inv, ok := f.s.inventory[k]
	if !ok || inv.AvailableRooms+n > inv.TotalRooms {
		return models.ErrInvalidRelease
	}
	inv.AvailableRooms += n
	inv.Version++
	f.s.inventory[k] = inv
	return nil
}

func (f fakeInventory) Get(ctx context.Context, hostelID uuid.UUID, roomType models.RoomType) (*models.RoomInventory, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	inv, ok := f.s.inventory[invKey{hostelID, roomType}]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &inv, nil
}

func (f fakeInventory) ListByHostel(ctx context.Context, hostelID uuid.UUID) ([]models.RoomInventory, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []models.RoomInventory
	for k, inv := range f.s.inventory {
		if k.hostelID == hostelID {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomType < out[j].RoomType })
	return out, nil
}

func (f fakeInventory) SetTotal(ctx context.Context, hostelID uuid.UUID, roomType models.RoomType, total int) (*models.RoomInventory, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	k := invKey{hostelID, roomType}
	inv, ok := f.s.inventory[k]
	if !ok {
		inv = models.RoomInventory{HostelID: hostelID, RoomType: roomType, TotalRooms: total, AvailableRooms: total, Version: 1}
		f.s.inventory[k] = inv
		return &inv, nil
	}
	if inv.HeldRooms() > total {
		return nil, models.NewValidationError("total_rooms %d is below the number of rooms currently held", total)
	}
	inv.AvailableRooms += total - inv.TotalRooms
	inv.TotalRooms = total
	inv.Version++
	f.s.inventory[k] = inv
	return &inv, nil
}

// ----------------------------------------------------------------------------

type fakeHostels struct{ s *fakeStore }

func (f fakeHostels) GetHostel(ctx context.Context, hostelID uuid.UUID) (*models.Hostel, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	h, ok := f.s.hostels[hostelID]
	if !ok {
		return nil, models.ErrNotFound.WithMessage("hostel not found")
	}
	return &h, nil
}

func (f fakeHostels) GetTariff(ctx context.Context, hostelID uuid.UUID, roomType models.RoomType) (*models.RoomTariff, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	t, ok := f.s.tariffs[invKey{hostelID, roomType}]
	if !ok {
		return nil, models.ErrNotFound.WithMessage("tariff not found")
	}
	return &t, nil
}

func (f fakeHostels) ListActiveHostelIDs(ctx context.Context) ([]uuid.UUID, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var ids []uuid.UUID
	for id, h := range f.s.hostels {
		if h.IsActive {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// ----------------------------------------------------------------------------

type fakeAudits struct{ s *fakeStore }

func (f fakeAudits) Log(ctx context.Context, a *models.PaymentAudit) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.audits = append(f.s.audits, *a)
	return nil
}

func (f fakeAudits) ListByBooking(ctx context.Context, bookingID string) ([]models.PaymentAudit, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []models.PaymentAudit
	for _, a := range f.s.audits {
		if a.BookingID != nil && *a.BookingID == bookingID {
			out = append(out, a)
		}
	}
	return out, nil
}

// ----------------------------------------------------------------------------

// fakeGateway is a scripted PaymentGateway
type fakeGateway struct {
	mu sync.Mutex

	orders    int
	payments  map[string]*payment.Payment
	refunds   []payment.RefundRequest
	orderErr  error
	fetchErr  error
	refundErr error

	// refundDelay holds every Refund call open before it is recorded
	refundDelay time.Duration
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{payments: make(map[string]*payment.Payment)}
}

func (g *fakeGateway) addPayment(p *payment.Payment) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments[p.ID] = p
}

func capturedPayment(orderID, paymentID string, amount int64) *payment.Payment {
	return &payment.Payment{
		ID:       paymentID,
		OrderID:  orderID,
		Amount:   amount,
		Currency: "INR",
		Status:   payment.StatusCaptured,
		Method:   "upi",
	}
}

func (g *fakeGateway) CreateOrder(ctx context.Context, req payment.OrderRequest) (*payment.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.orderErr != nil {
		return nil, g.orderErr
	}
	g.orders++
	return &payment.Order{
		ID:       fmt.Sprintf("order_%d", g.orders),
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   payment.StatusCreated,
	}, nil
}

func (g *fakeGateway) FetchPayment(ctx context.Context, paymentID string) (*payment.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	p, ok := g.payments[paymentID]
	if !ok {
		return nil, &payment.APIError{StatusCode: 404, Code: "BAD_REQUEST_ERROR", Description: "payment not found"}
	}
	return p, nil
}

func (g *fakeGateway) Refund(ctx context.Context, paymentID string, req payment.RefundRequest) (*payment.Refund, error) {
	if g.refundDelay > 0 {
		time.Sleep(g.refundDelay)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	g.refunds = append(g.refunds, req)
	return &payment.Refund{
		ID:        fmt.Sprintf("rfnd_%d", len(g.refunds)),
		PaymentID: paymentID,
		Amount:    req.Amount,
		Status:    "processed",
	}, nil
}

// recordingNotifier collects notifications
type recordingNotifier struct {
	mu     sync.Mutex
	events []NotificationEvent
}

func (g *fakeGateway) refundCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.refunds)
}

func (r *recordingNotifier) Notify(ctx context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, n.Event)
	return nil
}

func (r *recordingNotifier) Events() []NotificationEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]NotificationEvent(nil), r.events...)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
