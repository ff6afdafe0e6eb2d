package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// BookingExpirationService sweeps bookings that outlived their confirmation,
// payment or no-show windows and returns their rooms to inventory
type BookingExpirationService struct {
	lifecycle *BookingLifecycleService
	logger    *logrus.Logger
	batchSize int
	timeout   time.Duration

	mu           sync.Mutex
	lastRun      time.Time
	lastExpired  int
	totalExpired int
	lastError    string
}

// NewBookingExpirationService creates a new expiration sweeper
func NewBookingExpirationService(lifecycle *BookingLifecycleService, batchSize int, logger *logrus.Logger) *BookingExpirationService {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &BookingExpirationService{
		lifecycle: lifecycle,
		logger:    logger,
		batchSize: batchSize,
		timeout:   50 * time.Second,
	}
}

// RunOnce runs a single expiration cycle and returns the number of bookings expired
func (s *BookingExpirationService) RunOnce(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := s.lifecycle.now()
	expired, err := s.lifecycle.ExpireStale(ctx, now, s.batchSize)

	s.mu.Lock()
	s.lastRun = now
	s.lastExpired = expired
	s.totalExpired += expired
	s.lastError = ""
	if err != nil {
		s.lastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.WithError(err).Error("Failed to list expirable bookings")
		return expired, err
	}
	if expired == s.batchSize {
		s.logger.WithField("batch_size", s.batchSize).Warn("Expiry batch full, remaining bookings wait for the next sweep")
	}
	return expired, nil
}

// GetStats returns sweep statistics for the admin dashboard
func (s *BookingExpirationService) GetStats() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := map[string]interface{}{
		"batch_size":    s.batchSize,
		"last_expired":  s.lastExpired,
		"total_expired": s.totalExpired,
	}
	if !s.lastRun.IsZero() {
		stats["last_run"] = s.lastRun
	}
	if s.lastError != "" {
		stats["last_error"] = s.lastError
	}
	return stats
}
