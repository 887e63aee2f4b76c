package fees

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/influencehub-backend/pkg/config"
	"github.com/angelmondragon/influencehub-backend/pkg/enums"
)

var (
	errNegativeGross   = errors.New("gross amount must not be negative")
	errInvalidSchedule = errors.New("fee rates must be within [0, 1) and the fixed fee non-negative")
)

// Schedule is the commission schedule applied to a gross amount.
type Schedule struct {
	PlatformCommissionRate decimal.Decimal
	ProviderPercentRate    decimal.Decimal
	ProviderFixedFee       decimal.Decimal
}

// ScheduleFromConfig copies the configured rates.
func ScheduleFromConfig(cfg config.FeesConfig) Schedule {
	return Schedule{
		PlatformCommissionRate: cfg.PlatformCommissionRate,
		ProviderPercentRate:    cfg.ProviderPercentRate,
		ProviderFixedFee:       cfg.ProviderFixedFee,
	}
}

// Breakdown splits a gross amount into platform fee, provider fee and the payee's share.
type Breakdown struct {
	GrossAmount    decimal.Decimal
	PlatformFee    decimal.Decimal
	ProviderFee    decimal.Decimal
	NetPayeeAmount decimal.Decimal
	Currency       enums.Currency
}

// BreakdownView renders a Breakdown with amounts fixed to the currency's minor unit.
type BreakdownView struct {
	GrossAmount    string         `json:"grossAmount"`
	PlatformFee    string         `json:"platformFee"`
	ProviderFee    string         `json:"providerFee"`
	NetPayeeAmount string         `json:"netPayeeAmount"`
	Currency       enums.Currency `json:"currency"`
}

// View formats the breakdown for API responses.
func (b Breakdown) View() BreakdownView {
	places := b.Currency.MinorUnits()
	return BreakdownView{
		GrossAmount:    b.GrossAmount.StringFixed(places),
		PlatformFee:    b.PlatformFee.StringFixed(places),
		ProviderFee:    b.ProviderFee.StringFixed(places),
		NetPayeeAmount: b.NetPayeeAmount.StringFixed(places),
		Currency:       b.Currency,
	}
}

// Calculator computes fee breakdowns. It holds no state beyond the schedule.
type Calculator struct {
	schedule Schedule
}

// NewCalculator validates the schedule once so Calculate never sees bad rates.
func NewCalculator(schedule Schedule) (*Calculator, error) {
	one := decimal.NewFromInt(1)
	for _, rate := range []decimal.Decimal{schedule.PlatformCommissionRate, schedule.ProviderPercentRate} {
		if rate.IsNegative() || rate.GreaterThanOrEqual(one) {
			return nil, errInvalidSchedule
		}
	}
	if schedule.ProviderFixedFee.IsNegative() {
		return nil, errInvalidSchedule
	}
	return &Calculator{schedule: schedule}, nil
}

// Calculate returns the breakdown of gross in the currency's minor unit.
// Fees are rounded individually and the payee amount is what remains, floored at zero.
func (c *Calculator) Calculate(gross decimal.Decimal, currency enums.Currency) (Breakdown, error) {
	if !currency.IsValid() {
		return Breakdown{}, fmt.Errorf("unsupported currency %q", currency)
	}
	if gross.IsNegative() {
		return Breakdown{}, errNegativeGross
	}

	places := currency.MinorUnits()
	gross = gross.Round(places)

	platformFee := gross.Mul(c.schedule.PlatformCommissionRate).Round(places)
	providerFee := gross.Mul(c.schedule.ProviderPercentRate).Add(c.schedule.ProviderFixedFee).Round(places)

	net := gross.Sub(platformFee).Sub(providerFee)
	if net.IsNegative() {
		net = decimal.Zero
	}

	return Breakdown{
		GrossAmount:    gross,
		PlatformFee:    platformFee,
		ProviderFee:    providerFee,
		NetPayeeAmount: net,
		Currency:       currency,
	}, nil
}
