package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/staynest/hostel-booking-backend/internal/models"
	"github.com/staynest/hostel-booking-backend/internal/utils"
	"github.com/staynest/hostel-booking-backend/pkg/payment"
)

// maxWebhookBody caps the webhook body read into memory
const maxWebhookBody = 1 << 20

// WebhookHandler receives payment gateway webhooks. It is public and
// authenticated by the HMAC signature header only.
type WebhookHandler struct {
	bookings BookingService
	logger   *logrus.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(bookings BookingService, logger *logrus.Logger) *WebhookHandler {
	return &WebhookHandler{bookings: bookings, logger: logger}
}

// PaymentWebhook handles POST /api/v1/webhooks/payment
func (h *WebhookHandler) PaymentWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil {
		badRequest(c, "Failed to read request body")
		return
	}
	if len(body) > maxWebhookBody {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Error:   "payload_too_large",
			Message: "Webhook body too large",
		})
		return
	}

	signature := c.GetHeader(payment.SignatureHeader)
	if signature == "" {
		respondError(c, h.logger, models.ErrInvalidSignature.WithMessage("missing %s header", payment.SignatureHeader))
		return
	}

	err = h.bookings.HandleWebhook(c.Request.Context(), models.PaymentWebhook{
		Body:      body,
		Signature: signature,
		EventID:   c.GetHeader(payment.EventIDHeader),
		ClientIP:  utils.ClientIP(c),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
