package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/staynest/hostel-booking-backend/internal/models"
)

// VerifiedPayment is proof that a payment confirmation carried a valid signature.
// Only PaymentVerifier can produce one with verified set.
type VerifiedPayment struct {
	orderID   string
	paymentID string
	signature string
	verified  bool
}

// OrderID returns the gateway order id
func (v VerifiedPayment) OrderID() string { return v.orderID }

// PaymentID returns the gateway payment id
func (v VerifiedPayment) PaymentID() string { return v.paymentID }

// Signature returns the verified signature
func (v VerifiedPayment) Signature() string { return v.signature }

// IsVerified reports whether the value came from PaymentVerifier
func (v VerifiedPayment) IsVerified() bool { return v.verified }

// PaymentVerifier checks gateway HMAC-SHA256 signatures in constant time
type PaymentVerifier struct {
	keySecret     []byte
	webhookSecret []byte
}

// NewPaymentVerifier creates a verifier. webhookSecret may be empty when webhooks are not used.
func NewPaymentVerifier(keySecret, webhookSecret string) *PaymentVerifier {
	return &PaymentVerifier{
		keySecret:     []byte(keySecret),
		webhookSecret: []byte(webhookSecret),
	}
}

// Sign returns the hex HMAC-SHA256 of "orderID|paymentID"
func (v *PaymentVerifier) Sign(orderID, paymentID string) string {
	return hmacHex(v.keySecret, []byte(orderID+"|"+paymentID))
}

// VerifySignature checks a checkout callback and returns a VerifiedPayment.
// Returns models.ErrInvalidSignature on mismatch.
func (v *PaymentVerifier) VerifySignature(orderID, paymentID, signature string) (VerifiedPayment, error) {
	if len(v.keySecret) == 0 {
		return VerifiedPayment{}, models.ErrInvalidSignature.WithMessage("payment verification is not configured")
	}
	if orderID == "" || paymentID == "" || signature == "" {
		return VerifiedPayment{}, models.ErrInvalidSignature
	}

	expected := v.Sign(orderID, paymentID)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
		return VerifiedPayment{}, models.ErrInvalidSignature
	}

	return VerifiedPayment{
		orderID:   orderID,
		paymentID: paymentID,
		signature: signature,
		verified:  true,
	}, nil
}

// VerifyWebhook checks the signature of a raw webhook body
func (v *PaymentVerifier) VerifyWebhook(body []byte, signature string) error {
	if len(v.webhookSecret) == 0 {
		return models.ErrInvalidSignature.WithMessage("webhook verification is not configured")
	}
	expected := hmacHex(v.webhookSecret, body)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
		return models.ErrInvalidSignature.WithMessage("webhook signature verification failed")
	}
	return nil
}

// VerifyWebhookPayment checks a webhook body and vouches for the payment it reports
func (v *PaymentVerifier) VerifyWebhookPayment(body []byte, signature, orderID, paymentID string) (VerifiedPayment, error) {
	if err := v.VerifyWebhook(body, signature); err != nil {
		return VerifiedPayment{}, err
	}
	if orderID == "" || paymentID == "" {
		return VerifiedPayment{}, models.ErrInvalidSignature.WithMessage("webhook does not reference a payment")
	}
	return VerifiedPayment{
		orderID:   orderID,
		paymentID: paymentID,
		signature: signature,
		verified:  true,
	}, nil
}

// SignWebhook returns the signature the gateway would send for body
func (v *PaymentVerifier) SignWebhook(body []byte) string {
	return hmacHex(v.webhookSecret, body)
}

func hmacHex(key, msg []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(msg)
	return hex.EncodeToString(mac.Sum(nil))
}
