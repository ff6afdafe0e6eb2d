package sms

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// LogGateway writes messages to the log instead of sending them. Used in dev mode.
type LogGateway struct {
	logger *logrus.Logger
}

// NewLogGateway creates a new log-only gateway
func NewLogGateway(logger *logrus.Logger) *LogGateway {
	return &LogGateway{logger: logger}
}

// GetName returns the gateway name
func (g *LogGateway) GetName() string {
	return "log"
}

// Send logs the message and returns a synthetic message id
func (g *LogGateway) Send(ctx context.Context, phone, message string) (string, error) {
	id := fmt.Sprintf("dev-%d", time.Now().UnixNano())
	g.logger.WithFields(logrus.Fields{
		"phone":      phone,
		"message":    message,
		"message_id": id,
	}).Info("SMS (dev mode, not sent)")
	return id, nil
}
