package sms

import "context"

// SMSGateway defines the interface for sending SMS messages
type SMSGateway interface {
	// Send sends message to a single phone number.
	// Returns the gateway's message id.
	Send(ctx context.Context, phone, message string) (string, error)

	// GetName returns the name of the SMS gateway implementation
	GetName() string
}
