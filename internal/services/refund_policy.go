package services

import (
	"time"

	"github.com/staynest/hostel-booking-backend/internal/models"
)

// RefundTier grants Percent of the paid amount when cancelling at least MinDays before check-in
type RefundTier struct {
	MinDays int
	Percent int
}

// DefaultRefundTiers is the cancellation schedule, highest tier first
var DefaultRefundTiers = []RefundTier{
	{MinDays: 31, Percent: 90},
	{MinDays: 16, Percent: 70},
	{MinDays: 8, Percent: 50},
	{MinDays: 1, Percent: 20},
}

// RefundPolicy maps the notice given before check-in to a refund amount
type RefundPolicy struct {
	tiers []RefundTier
}

// NewRefundPolicy creates a refund policy with the default tiers
func NewRefundPolicy() *RefundPolicy {
	return &RefundPolicy{tiers: DefaultRefundTiers}
}

// Percent returns the refund percentage for cancelling daysUntilCheckIn days ahead
func (p *RefundPolicy) Percent(daysUntilCheckIn int) int {
	for _, tier := range p.tiers {
		if daysUntilCheckIn >= tier.MinDays {
			return tier.Percent
		}
	}
	return 0
}

// ComputeRefund returns floor(paidAmount * percent / 100)
func (p *RefundPolicy) ComputeRefund(paidAmount int64, daysUntilCheckIn int) (int64, error) {
	if paidAmount < 0 {
		return 0, models.NewValidationError("paid amount must not be negative")
	}
	return paidAmount * int64(p.Percent(daysUntilCheckIn)) / 100, nil
}

// RefundFor computes the refund owed by a snapshot taken before cancellation
func (p *RefundPolicy) RefundFor(s models.RefundSnapshot) (int64, error) {
	return p.ComputeRefund(s.PaidAmount, DaysUntil(s.CheckInDate, s.TakenAt))
}

// DaysUntil counts whole calendar days from now to checkIn in UTC.
// It is negative once the check-in day has passed.
func DaysUntil(checkIn, now time.Time) int {
	a := truncateToDay(now)
	b := truncateToDay(checkIn)
	return int(b.Sub(a).Hours() / 24)
}

func truncateToDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
