package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/staynest/hostel-booking-backend/pkg/validator"
)

// HTTPGateway sends SMS through a JSON HTTP API authenticated with an API key
type HTTPGateway struct {
	apiURL   string
	apiKey   string
	senderID string
	client   *http.Client
	phones   *validator.PhoneValidator
}

// HTTPConfig holds configuration for the HTTP SMS gateway
type HTTPConfig struct {
	APIURL   string
	APIKey   string
	SenderID string
}

// NewHTTPGateway creates a new HTTP SMS gateway client
func NewHTTPGateway(config HTTPConfig) *HTTPGateway {
	return &HTTPGateway{
		apiURL:   strings.TrimRight(config.APIURL, "/"),
		apiKey:   config.APIKey,
		senderID: config.SenderID,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		phones: validator.NewPhoneValidator(),
	}
}

// SendSMSRequest represents the SMS sending request structure
type SendSMSRequest struct {
	To       string `json:"to"`
	Message  string `json:"message"`
	SenderID string `json:"sender_id,omitempty"`
}

// SendSMSResponse represents the SMS sending response structure
type SendSMSResponse struct {
	Status    string `json:"status"`
	MessageID string `json:"message_id"`
	Comment   string `json:"comment"`
	ErrCode   string `json:"err_code"`
}

// GetName returns the gateway name
func (g *HTTPGateway) GetName() string {
	return "http"
}

// Send sends an SMS to an Indian mobile number
func (g *HTTPGateway) Send(ctx context.Context, phone, message string) (string, error) {
	e164, err := g.phones.E164(phone)
	if err != nil {
		return "", fmt.Errorf("invalid phone number: %w", err)
	}

	jsonData, err := json.Marshal(SendSMSRequest{
		To:       e164,
		Message:  message,
		SenderID: g.senderID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal SMS request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL+"/sms", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create SMS request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send SMS request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read SMS response: %w", err)
	}

	var smsResp SendSMSResponse
	if err := json.Unmarshal(body, &smsResp); err != nil {
		return "", fmt.Errorf("failed to parse SMS response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK || smsResp.Status != "success" {
		return "", fmt.Errorf("SMS sending failed: %s (error code: %s)", smsResp.Comment, smsResp.ErrCode)
	}

	return smsResp.MessageID, nil
}
