package models

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var commandValidator = validator.New(validator.WithRequiredStructEnabled())

// ValidateCommand runs struct tag validation on cmd and reports the first
// failing field as a validation error
func ValidateCommand(cmd interface{}) error {
	err := commandValidator.Struct(cmd)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Param() != "" {
			return NewValidationError("%s failed on '%s=%s'", toSnake(fe.Field()), fe.Tag(), fe.Param())
		}
		return NewValidationError("%s failed on '%s'", toSnake(fe.Field()), fe.Tag())
	}
	return ErrValidation.Wrap(err)
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CreateBookingCommand asks for a room of RoomType in HostelID for StudentID
type CreateBookingCommand struct {
	StudentID                uuid.UUID `validate:"required"`
	HostelID                 uuid.UUID `validate:"required"`
	RoomType                 RoomType  `validate:"required,oneof=single double triple dormitory"`
	CheckInDate              time.Time `validate:"required"`
	CheckOutDate             time.Time `validate:"required,gtfield=CheckInDate"`
	DurationMonths           int       `validate:"min=1,max=24"`
	FoodPlan                 bool
	Currency                 string `validate:"omitempty,len=3"`
	EmergencyContactName     string `validate:"required,max=100"`
	EmergencyContactPhone    string `validate:"required"`
	EmergencyContactRelation string `validate:"required,max=50"`
}

// CreateBookingRequest is the JSON body of POST /bookings
type CreateBookingRequest struct {
	HostelID                 string `json:"hostel_id" binding:"required,uuid"`
	RoomType                 string `json:"room_type" binding:"required"`
	CheckInDate              string `json:"check_in_date" binding:"required"`  // YYYY-MM-DD
	CheckOutDate             string `json:"check_out_date" binding:"required"` // YYYY-MM-DD
	DurationMonths           int    `json:"duration_months" binding:"required,min=1"`
	FoodPlan                 bool   `json:"food_plan"`
	EmergencyContactName     string `json:"emergency_contact_name" binding:"required"`
	EmergencyContactPhone    string `json:"emergency_contact_phone" binding:"required"`
	EmergencyContactRelation string `json:"emergency_contact_relation" binding:"required"`
}

// RejectBookingCommand is an owner declining a pending booking
type RejectBookingCommand struct {
	BookingID string    `validate:"required"`
	OwnerID   uuid.UUID `validate:"required"`
	Reason    string    `validate:"required,max=500"`
}

// CancelBookingCommand is any permitted actor cancelling a booking
type CancelBookingCommand struct {
	BookingID string    `validate:"required"`
	ActorID   uuid.UUID `validate:"required"`
	ActorRole ActorRole `validate:"required,oneof=student owner admin system"`
	Reason    string    `validate:"max=500"`
}

// ReasonRequest is the JSON body of the reject and cancel endpoints
type ReasonRequest struct {
	Reason string `json:"reason"`
}

// ConfirmPaymentCommand carries the gateway callback of a completed checkout
type ConfirmPaymentCommand struct {
	BookingID string    `validate:"required"`
	StudentID uuid.UUID `validate:"required"`
	OrderID   string    `validate:"required,max=100"`
	PaymentID string    `validate:"required,max=100"`
	Signature string    `validate:"required,hexadecimal"`
	ClientIP  string
	UserAgent string // summarised device string, not the raw header
}

// PaymentWebhook is a raw gateway webhook delivery
type PaymentWebhook struct {
	Body      []byte
	Signature string
	EventID   string
	ClientIP  string
}

// ConfirmPaymentRequest is the JSON body of POST /bookings/:id/payment/verify
type ConfirmPaymentRequest struct {
	OrderID   string `json:"order_id" binding:"required"`
	PaymentID string `json:"payment_id" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

// PaymentOrderResponse is returned when a checkout order is created
type PaymentOrderResponse struct {
	BookingID string `json:"booking_id"`
	OrderID   string `json:"order_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	KeyID     string `json:"key_id,omitempty"`
}

// RefundQuoteRequest asks what a cancellation would refund
type RefundQuoteRequest struct {
	PaidAmount       int64 `json:"paid_amount" binding:"min=0" validate:"min=0"`
	DaysUntilCheckIn int   `json:"days_until_check_in"`
}

// RefundQuoteResponse is the result of a refund quote
type RefundQuoteResponse struct {
	PaidAmount       int64 `json:"paid_amount"`
	DaysUntilCheckIn int   `json:"days_until_check_in"`
	RefundPercent    int   `json:"refund_percent"`
	RefundAmount     int64 `json:"refund_amount"`
}

// ListBookingsQuery pages through bookings
type ListBookingsQuery struct {
	Status BookingStatus `form:"status" validate:"omitempty,oneof=pending confirmed paid checked_in active checked_out completed cancelled rejected expired"`
	Limit  int           `form:"limit" validate:"min=0,max=100"`
	Offset int           `form:"offset" validate:"min=0"`
}

// Normalize applies paging defaults
func (q *ListBookingsQuery) Normalize() {
	if q.Limit == 0 {
		q.Limit = 20
	}
}
