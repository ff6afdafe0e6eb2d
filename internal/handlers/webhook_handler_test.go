package handlers

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/staynest/hostel-booking-backend/internal/models"
	"github.com/staynest/hostel-booking-backend/pkg/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentWebhook_PassesRawDelivery(t *testing.T) {
	svc := &stubBookingService{}
	router := newTestRouter(svc, nil)
	body := []byte(`{"event":"payment.captured","payload":{}}`)

	w := doJSON(router, "POST", "/webhooks/payment", body, map[string]string{
		payment.SignatureHeader: "deadbeef",
		payment.EventIDHeader:   "evt_1",
		"X-Forwarded-For":       "198.51.100.20",
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, body, svc.webhook.Body)
	assert.Equal(t, "deadbeef", svc.webhook.Signature)
	assert.Equal(t, "evt_1", svc.webhook.EventID)
	assert.Equal(t, "198.51.100.20", svc.webhook.ClientIP)
}

func TestPaymentWebhook_MissingSignature(t *testing.T) {
	svc := &stubBookingService{}
	router := newTestRouter(svc, nil)

	w := doJSON(router, "POST", "/webhooks/payment", []byte(`{}`), nil)
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Nil(t, svc.webhook.Body)
}

func TestPaymentWebhook_Errors(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{models.ErrInvalidSignature, http.StatusPaymentRequired},
		{models.NewValidationError("invalid webhook payload"), http.StatusBadRequest},
		{models.ErrExternalService.Wrap(errors.New("timeout")), http.StatusBadGateway},
	}

	for _, tt := range tests {
		router := newTestRouter(&stubBookingService{err: tt.err}, nil)
		w := doJSON(router, "POST", "/webhooks/payment", []byte(`{}`), map[string]string{payment.SignatureHeader: "x"})
		assert.Equal(t, tt.status, w.Code)
	}
}

func TestPaymentWebhook_BodyTooLarge(t *testing.T) {
	router := newTestRouter(&stubBookingService{}, nil)
	body := []byte(strings.Repeat("a", maxWebhookBody+1))

	w := doJSON(router, "POST", "/webhooks/payment", body, map[string]string{payment.SignatureHeader: "x"})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
