package services

import "github.com/staynest/hostel-booking-backend/internal/models"

// PriceBreakdown itemises the total of a booking, in paise
type PriceBreakdown struct {
	Rent        int64 `json:"rent"`
	Deposit     int64 `json:"deposit"`
	Maintenance int64 `json:"maintenance"`
	Food        int64 `json:"food"`
	Total       int64 `json:"total"`
}

// PricingCalculator computes booking totals with integer arithmetic only
type PricingCalculator struct{}

// NewPricingCalculator creates a new pricing calculator
func NewPricingCalculator() *PricingCalculator {
	return &PricingCalculator{}
}

// Compute returns rent*months + deposit + maintenance*months + food*months.
// The deposit is charged once. foodMonthlyCost is 0 when no food plan is taken.
func (p *PricingCalculator) Compute(monthlyRent, securityDeposit, maintenanceCharges int64, durationMonths int, foodMonthlyCost int64) (PriceBreakdown, error) {
	if monthlyRent < 0 || securityDeposit < 0 || maintenanceCharges < 0 || foodMonthlyCost < 0 {
		return PriceBreakdown{}, models.NewValidationError("charges must not be negative")
	}
	if durationMonths < 1 {
		return PriceBreakdown{}, models.NewValidationError("duration must be at least 1 month, got %d", durationMonths)
	}

	months := int64(durationMonths)
	b := PriceBreakdown{
		Rent:        monthlyRent * months,
		Deposit:     securityDeposit,
		Maintenance: maintenanceCharges * months,
		Food:        foodMonthlyCost * months,
	}
	b.Total = b.Rent + b.Deposit + b.Maintenance + b.Food
	return b, nil
}

// ComputeForTariff prices a booking against a hostel's tariff
func (p *PricingCalculator) ComputeForTariff(t *models.RoomTariff, durationMonths int, foodPlan bool) (PriceBreakdown, error) {
	var food int64
	if foodPlan {
		if !t.OffersFood() {
			return PriceBreakdown{}, models.NewValidationError("hostel does not offer a food plan for %s rooms", t.RoomType)
		}
		food = t.FoodMonthlyCost
	}
	return p.Compute(t.MonthlyRent, t.SecurityDeposit, t.MaintenanceCharges, durationMonths, food)
}
