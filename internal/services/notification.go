package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/staynest/hostel-booking-backend/internal/models"
	"github.com/staynest/hostel-booking-backend/pkg/sms"
)

// NotificationEvent names a booking lifecycle event
type NotificationEvent string

const (
	EventBookingCreated    NotificationEvent = "booking.created"
	EventBookingConfirmed  NotificationEvent = "booking.confirmed"
	EventBookingRejected   NotificationEvent = "booking.rejected"
	EventBookingPaid       NotificationEvent = "booking.paid"
	EventBookingCancelled  NotificationEvent = "booking.cancelled"
	EventBookingExpired    NotificationEvent = "booking.expired"
	EventBookingCheckedIn  NotificationEvent = "booking.checked_in"
	EventBookingActivated  NotificationEvent = "booking.activated"
	EventBookingCheckedOut NotificationEvent = "booking.checked_out"
	EventBookingCompleted  NotificationEvent = "booking.completed"
	EventRefundProcessed   NotificationEvent = "refund.processed"
	EventRefundFailed      NotificationEvent = "refund.failed"
)

// Notification is the payload delivered to notifiers
type Notification struct {
	Event     NotificationEvent      `json:"event"`
	BookingID string                 `json:"booking_id"`
	StudentID string                 `json:"student_id"`
	OwnerID   string                 `json:"owner_id"`
	HostelID  string                 `json:"hostel_id"`
	Status    models.BookingStatus   `json:"status"`
	Phone     string                 `json:"-"` // emergency contact, used by SMS delivery
	Data      map[string]interface{} `json:"data,omitempty"`
}

// NewBookingNotification builds a notification from a booking's current state
func NewBookingNotification(event NotificationEvent, b *models.Booking) Notification {
	return Notification{
		Event:     event,
		BookingID: b.BookingID,
		StudentID: b.StudentID.String(),
		OwnerID:   b.OwnerID.String(),
		HostelID:  b.HostelID.String(),
		Status:    b.Status,
		Phone:     b.EmergencyContactPhone,
		Data:      map[string]interface{}{},
	}
}

// Notifier delivers a notification to one channel
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotificationEmitter fans notifications out to notifiers in the background.
// Delivery failures are logged and never reach the caller.
type NotificationEmitter struct {
	notifiers []Notifier
	timeout   time.Duration
	logger    *logrus.Logger
	wg        sync.WaitGroup
}

// NewNotificationEmitter creates a new emitter
func NewNotificationEmitter(timeout time.Duration, logger *logrus.Logger, notifiers ...Notifier) *NotificationEmitter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NotificationEmitter{
		notifiers: notifiers,
		timeout:   timeout,
		logger:    logger,
	}
}

// Emit delivers n to every notifier without blocking
func (e *NotificationEmitter) Emit(n Notification) {
	if e == nil {
		return
	}
	for _, notifier := range e.notifiers {
		e.wg.Add(1)
		go func(notifier Notifier) {
			defer e.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					e.logger.WithFields(logrus.Fields{
						"event":      n.Event,
						"booking_id": n.BookingID,
						"panic":      r,
					}).Error("Notifier panicked")
				}
			}()

			ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
			defer cancel()

			if err := notifier.Notify(ctx, n); err != nil {
				e.logger.WithFields(logrus.Fields{
					"event":      n.Event,
					"booking_id": n.BookingID,
					"notifier":   fmt.Sprintf("%T", notifier),
				}).WithError(err).Warn("Failed to deliver notification")
			}
		}(notifier)
	}
}

// Wait blocks until in-flight deliveries finish. Used on shutdown.
func (e *NotificationEmitter) Wait() {
	if e == nil {
		return
	}
	e.wg.Wait()
}

// LogNotifier writes notifications as structured log entries
type LogNotifier struct {
	logger *logrus.Logger
}

// NewLogNotifier creates a new log notifier
func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the notification
func (l *LogNotifier) Notify(ctx context.Context, n Notification) error {
	l.logger.WithFields(logrus.Fields{
		"event":      n.Event,
		"booking_id": n.BookingID,
		"student_id": n.StudentID,
		"owner_id":   n.OwnerID,
		"hostel_id":  n.HostelID,
		"status":     n.Status,
		"data":       n.Data,
	}).Info("Booking notification")
	return nil
}

// smsTemplates are the events worth texting the emergency contact about
var smsTemplates = map[NotificationEvent]string{
	EventBookingCheckedIn:  "StayNest: booking %s has checked in to the hostel.",
	EventBookingCheckedOut: "StayNest: booking %s has checked out of the hostel.",
}

// SMSNotifier texts the emergency contact on arrival and departure
type SMSNotifier struct {
	gateway sms.SMSGateway
}

// NewSMSNotifier creates a new SMS notifier
func NewSMSNotifier(gateway sms.SMSGateway) *SMSNotifier {
	return &SMSNotifier{gateway: gateway}
}

// Notify sends an SMS for events that have a template and a phone number
func (s *SMSNotifier) Notify(ctx context.Context, n Notification) error {
	tmpl, ok := smsTemplates[n.Event]
	if !ok || n.Phone == "" {
		return nil
	}
	if _, err := s.gateway.Send(ctx, n.Phone, fmt.Sprintf(tmpl, n.BookingID)); err != nil {
		return fmt.Errorf("sms via %s: %w", s.gateway.GetName(), err)
	}
	return nil
}
