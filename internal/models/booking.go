package models

import (
	"time"

	"github.com/google/uuid"
)

// BookingStatus represents the lifecycle status of a booking
// Matches PostgreSQL ENUM: booking_status
type BookingStatus string

const (
	BookingStatusPending    BookingStatus = "pending"
	BookingStatusConfirmed  BookingStatus = "confirmed"
	BookingStatusPaid       BookingStatus = "paid"
	BookingStatusCheckedIn  BookingStatus = "checked_in"
	BookingStatusActive     BookingStatus = "active"
	BookingStatusCheckedOut BookingStatus = "checked_out"
	BookingStatusCompleted  BookingStatus = "completed"
	BookingStatusCancelled  BookingStatus = "cancelled"
	BookingStatusRejected   BookingStatus = "rejected"
	BookingStatusExpired    BookingStatus = "expired"
)

// bookingTransitions lists every legal next status for each status.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending: {
		BookingStatusConfirmed,
		BookingStatusRejected,
		BookingStatusCancelled,
		BookingStatusExpired,
	},
	BookingStatusConfirmed: {
		BookingStatusPaid,
		BookingStatusCancelled,
		BookingStatusExpired,
	},
	BookingStatusPaid: {
		BookingStatusCheckedIn,
		BookingStatusCancelled,
		BookingStatusExpired,
	},
	BookingStatusCheckedIn:  {BookingStatusActive},
	BookingStatusActive:     {BookingStatusCheckedOut},
	BookingStatusCheckedOut: {BookingStatusCompleted},
}

// TerminalStatuses are the statuses a booking never leaves
var TerminalStatuses = []BookingStatus{
	BookingStatusCompleted,
	BookingStatusCancelled,
	BookingStatusRejected,
	BookingStatusExpired,
}

// ReservingStatuses are the statuses that hold one room of inventory
var ReservingStatuses = []BookingStatus{
	BookingStatusPending,
	BookingStatusConfirmed,
	BookingStatusPaid,
	BookingStatusCheckedIn,
	BookingStatusActive,
}

// IsValid reports whether s is a known booking status
func (s BookingStatus) IsValid() bool {
	if s.IsTerminal() {
		return true
	}
	_, ok := bookingTransitions[s]
	return ok
}

// IsTerminal reports whether no further transition is possible
func (s BookingStatus) IsTerminal() bool {
	for _, t := range TerminalStatuses {
		if s == t {
			return true
		}
	}
	return false
}

// HoldsReservation reports whether a booking in this status counts against inventory
func (s BookingStatus) HoldsReservation() bool {
	for _, r := range ReservingStatuses {
		if s == r {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether next is a legal successor of s
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, n := range bookingTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// IsPaidOrLater reports whether payment has been recorded for a booking in this status
func (s BookingStatus) IsPaidOrLater() bool {
	switch s {
	case BookingStatusPaid, BookingStatusCheckedIn, BookingStatusActive,
		BookingStatusCheckedOut, BookingStatusCompleted:
		return true
	}
	return false
}

// CarriesRefund reports whether a booking in this status can owe the student a refund
func (s BookingStatus) CarriesRefund() bool {
	return s == BookingStatusCancelled || s == BookingStatusExpired
}

// RefundStatus tracks the refund owed on a cancelled or expired booking
type RefundStatus string

const (
	RefundStatusNotApplicable RefundStatus = "not_applicable"
	RefundStatusPending       RefundStatus = "pending"
	RefundStatusProcessing    RefundStatus = "processing" // claimed by a refund run, gateway call in flight
	RefundStatusProcessed     RefundStatus = "processed"
	RefundStatusFailed        RefundStatus = "failed"
)

// ActorRole is the role of the user performing a booking operation
type ActorRole string

const (
	ActorRoleStudent ActorRole = "student"
	ActorRoleOwner   ActorRole = "owner"
	ActorRoleAdmin   ActorRole = "admin"
	ActorRoleSystem  ActorRole = "system"
)

// IsValid reports whether r is a known actor role
func (r ActorRole) IsValid() bool {
	switch r {
	case ActorRoleStudent, ActorRoleOwner, ActorRoleAdmin, ActorRoleSystem:
		return true
	}
	return false
}

// Actor identifies who is performing an operation
type Actor struct {
	ID   uuid.UUID
	Role ActorRole
}

// DefaultCurrency is used when a booking does not specify one
const DefaultCurrency = "INR"

// Booking is a student's reservation of one room of a given type in a hostel.
// Money fields are in paise.
type Booking struct {
	ID        uuid.UUID     `json:"id" db:"id"`
	BookingID string        `json:"booking_id" db:"booking_id"` // BK-YYYYMMDD-XXXXXX
	StudentID uuid.UUID     `json:"student_id" db:"student_id"`
	HostelID  uuid.UUID     `json:"hostel_id" db:"hostel_id"`
	OwnerID   uuid.UUID     `json:"owner_id" db:"owner_id"`
	RoomType  RoomType      `json:"room_type" db:"room_type"`
	Status    BookingStatus `json:"status" db:"status"`

	CheckInDate    time.Time `json:"check_in_date" db:"check_in_date"`
	CheckOutDate   time.Time `json:"check_out_date" db:"check_out_date"`
	DurationMonths int       `json:"duration_months" db:"duration_months"`
	FoodPlan       bool      `json:"food_plan" db:"food_plan"`

	// Pricing
	MonthlyRent        int64  `json:"monthly_rent" db:"monthly_rent"`
	SecurityDeposit    int64  `json:"security_deposit" db:"security_deposit"`
	MaintenanceCharges int64  `json:"maintenance_charges" db:"maintenance_charges"`
	FoodMonthlyCost    int64  `json:"food_monthly_cost" db:"food_monthly_cost"`
	TotalAmount        int64  `json:"total_amount" db:"total_amount"`
	PaidAmount         int64  `json:"paid_amount" db:"paid_amount"`
	PendingAmount      int64  `json:"pending_amount" db:"pending_amount"`
	Currency           string `json:"currency" db:"currency"`

	// Payment
	PaymentOrderID   *string `json:"payment_order_id,omitempty" db:"payment_order_id"`
	PaymentID        *string `json:"payment_id,omitempty" db:"payment_id"`
	PaymentSignature *string `json:"-" db:"payment_signature"`

	// Cancellation
	CancellationReason *string      `json:"cancellation_reason,omitempty" db:"cancellation_reason"`
	CancelledBy        *uuid.UUID   `json:"cancelled_by,omitempty" db:"cancelled_by"`
	CancelledByRole    *ActorRole   `json:"cancelled_by_role,omitempty" db:"cancelled_by_role"`
	RefundAmount       int64        `json:"refund_amount" db:"refund_amount"`
	RefundStatus       RefundStatus `json:"refund_status" db:"refund_status"`
	RefundID           *string      `json:"refund_id,omitempty" db:"refund_id"`

	EmergencyContactName     string `json:"emergency_contact_name" db:"emergency_contact_name"`
	EmergencyContactPhone    string `json:"emergency_contact_phone" db:"emergency_contact_phone"`
	EmergencyContactRelation string `json:"emergency_contact_relation" db:"emergency_contact_relation"`

	// Transition timestamps
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	ConfirmedAt  *time.Time `json:"confirmed_at,omitempty" db:"confirmed_at"`
	RejectedAt   *time.Time `json:"rejected_at,omitempty" db:"rejected_at"`
	PaidAt       *time.Time `json:"paid_at,omitempty" db:"paid_at"`
	CheckedInAt  *time.Time `json:"checked_in_at,omitempty" db:"checked_in_at"`
	ActivatedAt  *time.Time `json:"activated_at,omitempty" db:"activated_at"`
	CheckedOutAt *time.Time `json:"checked_out_at,omitempty" db:"checked_out_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty" db:"cancelled_at"`
	ExpiredAt    *time.Time `json:"expired_at,omitempty" db:"expired_at"`

	Version   int64     `json:"version" db:"version"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// RecalculatePending keeps pending_amount in step with total and paid amounts
func (b *Booking) RecalculatePending() {
	b.PendingAmount = b.TotalAmount - b.PaidAmount
}

// StampTransition sets the timestamp column that belongs to status s
func (b *Booking) StampTransition(s BookingStatus, at time.Time) {
	t := at
	switch s {
	case BookingStatusConfirmed:
		b.ConfirmedAt = &t
	case BookingStatusRejected:
		b.RejectedAt = &t
	case BookingStatusPaid:
		b.PaidAt = &t
	case BookingStatusCheckedIn:
		b.CheckedInAt = &t
	case BookingStatusActive:
		b.ActivatedAt = &t
	case BookingStatusCheckedOut:
		b.CheckedOutAt = &t
	case BookingStatusCompleted:
		b.CompletedAt = &t
	case BookingStatusCancelled:
		b.CancelledAt = &t
	case BookingStatusExpired:
		b.ExpiredAt = &t
	}
}

// HasPaymentID reports whether the booking was paid with paymentID
func (b *Booking) HasPaymentID(paymentID string) bool {
	return b.PaymentID != nil && *b.PaymentID == paymentID
}

// AttachPayment stores a verified gateway payment that settles the outstanding
// amount and returns the amount it settled
func (b *Booking) AttachPayment(orderID, paymentID, signature string) int64 {
	b.PaymentOrderID = &orderID
	b.PaymentID = &paymentID
	b.PaymentSignature = &signature
	settled := b.TotalAmount - b.PaidAmount
	b.PaidAmount = b.TotalAmount
	return settled
}

// HasLateCapture reports whether the booking's payment was captured only after
// it had expired or been cancelled
func (b *Booking) HasLateCapture() bool {
	return b.PaymentID != nil && b.PaidAt == nil && b.Status.CarriesRefund()
}

// RefundSnapshot captures the inputs of a refund calculation at one instant
type RefundSnapshot struct {
	PaidAmount  int64
	CheckInDate time.Time
	TakenAt     time.Time
}

// Snapshot returns the refund inputs of the booking as of now
func (b *Booking) Snapshot(now time.Time) RefundSnapshot {
	return RefundSnapshot{
		PaidAmount:  b.PaidAmount,
		CheckInDate: b.CheckInDate,
		TakenAt:     now,
	}
}

// BookingListResponse is a page of bookings
type BookingListResponse struct {
	Bookings []Booking `json:"bookings"`
	Total    int       `json:"total"`
	Limit    int       `json:"limit"`
	Offset   int       `json:"offset"`
}
