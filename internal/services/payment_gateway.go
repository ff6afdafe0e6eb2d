package services

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"github.com/staynest/hostel-booking-backend/internal/models"
	"github.com/staynest/hostel-booking-backend/pkg/payment"
)

// PaymentGateway is the external payment provider
type PaymentGateway interface {
	CreateOrder(ctx context.Context, req payment.OrderRequest) (*payment.Order, error)
	FetchPayment(ctx context.Context, paymentID string) (*payment.Payment, error)
	Refund(ctx context.Context, paymentID string, req payment.RefundRequest) (*payment.Refund, error)
}

// RetryPolicy bounds retries of gateway calls
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsed      time.Duration
}

// DefaultRetryPolicy returns default retry settings
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		MaxElapsed:      30 * time.Second,
	}
}

// RetryingGateway retries temporary gateway failures with exponential backoff.
// Failures that survive the retries come back as models.ErrExternalService.
type RetryingGateway struct {
	next   PaymentGateway
	policy RetryPolicy
	logger *logrus.Logger
}

// NewRetryingGateway wraps next with retries
func NewRetryingGateway(next PaymentGateway, policy RetryPolicy, logger *logrus.Logger) *RetryingGateway {
	return &RetryingGateway{next: next, policy: policy, logger: logger}
}

func (g *RetryingGateway) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = g.policy.InitialInterval
	exp.MaxInterval = g.policy.MaxInterval
	exp.MaxElapsedTime = g.policy.MaxElapsed
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(g.policy.MaxRetries)), ctx)
}

func callWithRetry[T any](ctx context.Context, g *RetryingGateway, op string, fn func() (T, error)) (T, error) {
	attempt := 0
	result, err := backoff.RetryNotifyWithData(func() (T, error) {
		attempt++
		v, err := fn()
		if err != nil && !payment.IsTemporary(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, g.backOff(ctx), func(err error, wait time.Duration) {
		g.logger.WithFields(logrus.Fields{
			"operation": op,
			"attempt":   attempt,
			"retry_in":  wait.String(),
		}).WithError(err).Warn("Payment gateway call failed, retrying")
	})
	if err != nil {
		g.logger.WithFields(logrus.Fields{
			"operation": op,
			"attempts":  attempt,
		}).WithError(err).Error("Payment gateway call failed")
		var zero T
		return zero, models.ErrExternalService.Wrap(err)
	}
	return result, nil
}

// CreateOrder creates a checkout order
func (g *RetryingGateway) CreateOrder(ctx context.Context, req payment.OrderRequest) (*payment.Order, error) {
	return callWithRetry(ctx, g, "create_order", func() (*payment.Order, error) {
		return g.next.CreateOrder(ctx, req)
	})
}

// FetchPayment retrieves a payment
func (g *RetryingGateway) FetchPayment(ctx context.Context, paymentID string) (*payment.Payment, error) {
	return callWithRetry(ctx, g, "fetch_payment", func() (*payment.Payment, error) {
		return g.next.FetchPayment(ctx, paymentID)
	})
}

// Refund refunds a payment
func (g *RetryingGateway) Refund(ctx context.Context, paymentID string, req payment.RefundRequest) (*payment.Refund, error) {
	return callWithRetry(ctx, g, "refund", func() (*payment.Refund, error) {
		return g.next.Refund(ctx, paymentID, req)
	})
}
