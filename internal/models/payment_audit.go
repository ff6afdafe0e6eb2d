package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentEventType represents the type of payment event
type PaymentEventType string

const (
	PaymentEventOrderCreated      PaymentEventType = "order_created"
	PaymentEventSignatureVerified PaymentEventType = "signature_verified"
	PaymentEventSignatureRejected PaymentEventType = "signature_rejected"
	PaymentEventAmountMismatch    PaymentEventType = "amount_mismatch"
	PaymentEventRecorded          PaymentEventType = "payment_recorded"
	PaymentEventReplayed          PaymentEventType = "payment_replayed"
	PaymentEventWebhookReceived   PaymentEventType = "webhook_received"
	PaymentEventRefundInitiated   PaymentEventType = "refund_initiated"
	PaymentEventRefundProcessed   PaymentEventType = "refund_processed"
	PaymentEventRefundFailed      PaymentEventType = "refund_failed"
	PaymentEventError             PaymentEventType = "error"
)

// PaymentEventSource identifies where the event originated
type PaymentEventSource string

const (
	PaymentSourceBackend        PaymentEventSource = "backend"
	PaymentSourceGatewayWebhook PaymentEventSource = "gateway_webhook"
	PaymentSourceGatewayAPI     PaymentEventSource = "gateway_api"
	PaymentSourceUser           PaymentEventSource = "user"
	PaymentSourceSystem         PaymentEventSource = "system"
)

// PaymentAudit represents an immutable audit log entry for payment events
type PaymentAudit struct {
	ID        uuid.UUID `json:"id" db:"id"`
	BookingID *string   `json:"booking_id,omitempty" db:"booking_id"`
	OrderID   *string   `json:"order_id,omitempty" db:"order_id"`
	PaymentID *string   `json:"payment_id,omitempty" db:"payment_id"`
	RefundID  *string   `json:"refund_id,omitempty" db:"refund_id"`

	EventType   PaymentEventType   `json:"event_type" db:"event_type"`
	EventSource PaymentEventSource `json:"event_source" db:"event_source"`

	// Amounts in paise
	ExpectedAmount *int64  `json:"expected_amount,omitempty" db:"expected_amount"`
	ReceivedAmount *int64  `json:"received_amount,omitempty" db:"received_amount"`
	Currency       *string `json:"currency,omitempty" db:"currency"`
	AmountsMatch   *bool   `json:"amounts_match,omitempty" db:"amounts_match"`

	PaymentStatus  *string `json:"payment_status,omitempty" db:"payment_status"`
	RequestPayload JSONB   `json:"request_payload,omitempty" db:"request_payload"`

	ErrorMessage *string `json:"error_message,omitempty" db:"error_message"`
	ErrorCode    *string `json:"error_code,omitempty" db:"error_code"`

	ProcessingTimeMs *int    `json:"processing_time_ms,omitempty" db:"processing_time_ms"`
	IsDuplicate      bool    `json:"is_duplicate" db:"is_duplicate"`
	IdempotencyKey   *string `json:"idempotency_key,omitempty" db:"idempotency_key"`

	IPAddress *string `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent *string `json:"user_agent,omitempty" db:"user_agent"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewPaymentAudit creates a new payment audit entry with required fields
func NewPaymentAudit(eventType PaymentEventType, source PaymentEventSource) *PaymentAudit {
	return &PaymentAudit{
		ID:          uuid.New(),
		EventType:   eventType,
		EventSource: source,
		CreatedAt:   time.Now(),
	}
}

// SetBooking sets the human-readable booking id
func (pa *PaymentAudit) SetBooking(bookingID string) *PaymentAudit {
	pa.BookingID = &bookingID
	return pa
}

// SetOrderID sets the gateway order id
func (pa *PaymentAudit) SetOrderID(orderID string) *PaymentAudit {
	if orderID != "" {
		pa.OrderID = &orderID
	}
	return pa
}

// SetPaymentID sets the gateway payment id
func (pa *PaymentAudit) SetPaymentID(paymentID string) *PaymentAudit {
	if paymentID != "" {
		pa.PaymentID = &paymentID
	}
	return pa
}

// SetRefundID sets the gateway refund id
func (pa *PaymentAudit) SetRefundID(refundID string) *PaymentAudit {
	if refundID != "" {
		pa.RefundID = &refundID
	}
	return pa
}

// SetAmounts records expected and received amounts and returns whether they match
func (pa *PaymentAudit) SetAmounts(expected, received int64, currency string) bool {
	pa.ExpectedAmount = &expected
	pa.ReceivedAmount = &received
	pa.Currency = &currency
	match := expected == received
	pa.AmountsMatch = &match
	return match
}

// SetPaymentStatus sets the payment status reported by the gateway
func (pa *PaymentAudit) SetPaymentStatus(status string) *PaymentAudit {
	pa.PaymentStatus = &status
	return pa
}

// SetError sets error information
func (pa *PaymentAudit) SetError(message string, code *string) *PaymentAudit {
	pa.ErrorMessage = &message
	pa.ErrorCode = code
	return pa
}

// SetRequestPayload sets the payload that triggered the event
func (pa *PaymentAudit) SetRequestPayload(payload map[string]interface{}) *PaymentAudit {
	pa.RequestPayload = JSONB(payload)
	return pa
}

// SetMetadata sets request metadata
func (pa *PaymentAudit) SetMetadata(ip, userAgent string) *PaymentAudit {
	if ip != "" {
		pa.IPAddress = &ip
	}
	if userAgent != "" {
		pa.UserAgent = &userAgent
	}
	return pa
}

// SetProcessingTime calculates and sets processing time
func (pa *PaymentAudit) SetProcessingTime(startTime time.Time) *PaymentAudit {
	durationMs := int(time.Since(startTime).Milliseconds())
	pa.ProcessingTimeMs = &durationMs
	return pa
}

// MarkAsDuplicate marks this event as a duplicate
func (pa *PaymentAudit) MarkAsDuplicate() *PaymentAudit {
	pa.IsDuplicate = true
	return pa
}

// SetIdempotencyKey sets the idempotency key
func (pa *PaymentAudit) SetIdempotencyKey(key string) *PaymentAudit {
	pa.IdempotencyKey = &key
	return pa
}
