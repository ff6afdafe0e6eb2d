package payment

import (
	"encoding/json"
	"fmt"
)

// Webhook event names
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
	EventRefundProcessed = "refund.processed"
)

// Webhook delivery headers
const (
	SignatureHeader = "X-Razorpay-Signature"
	EventIDHeader   = "X-Razorpay-Event-Id"
)

// WebhookEvent is the body the gateway posts to the webhook endpoint
type WebhookEvent struct {
	ID        string `json:"id"`
	Event     string `json:"event"`
	CreatedAt int64  `json:"created_at"`
	Payload   struct {
		Payment struct {
			Entity Payment `json:"entity"`
		} `json:"payment"`
		Refund struct {
			Entity Refund `json:"entity"`
		} `json:"refund"`
	} `json:"payload"`
}

// ParseWebhookEvent decodes a webhook body. eventID overrides the body id when the
// gateway sends it as a header.
func ParseWebhookEvent(body []byte, eventID string) (*WebhookEvent, error) {
	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("invalid webhook payload: %w", err)
	}
	if eventID != "" {
		ev.ID = eventID
	}
	if ev.Event == "" {
		return nil, fmt.Errorf("invalid webhook payload: missing event")
	}
	return &ev, nil
}
