package fees

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/influencehub-backend/pkg/enums"
)

func defaultSchedule() Schedule {
	return Schedule{
		PlatformCommissionRate: decimal.RequireFromString("0.10"),
		ProviderPercentRate:    decimal.RequireFromString("0.029"),
		ProviderFixedFee:       decimal.RequireFromString("0.30"),
	}
}

func newTestCalculator(t *testing.T) *Calculator {
	t.Helper()
	calc, err := NewCalculator(defaultSchedule())
	require.NoError(t, err)
	return calc
}

func TestCalculateThousandDollars(t *testing.T) {
	calc := newTestCalculator(t)

	got, err := calc.Calculate(decimal.NewFromInt(1000), enums.CurrencyUSD)
	require.NoError(t, err)

	assert.True(t, got.PlatformFee.Equal(decimal.RequireFromString("100.00")), got.PlatformFee.String())
	assert.True(t, got.ProviderFee.Equal(decimal.RequireFromString("29.30")), got.ProviderFee.String())
	assert.True(t, got.NetPayeeAmount.Equal(decimal.RequireFromString("870.70")), got.NetPayeeAmount.String())

	view := got.View()
	assert.Equal(t, "1000.00", view.GrossAmount)
	assert.Equal(t, "100.00", view.PlatformFee)
	assert.Equal(t, "29.30", view.ProviderFee)
	assert.Equal(t, "870.70", view.NetPayeeAmount)
}

func TestCalculatePartsSumToGross(t *testing.T) {
	calc := newTestCalculator(t)
	amounts := []string{"1", "9.99", "12.345", "57.10", "333.33", "1000", "12345.67", "99999.99"}

	for _, raw := range amounts {
		gross := decimal.RequireFromString(raw)
		got, err := calc.Calculate(gross, enums.CurrencyUSD)
		require.NoError(t, err, raw)

		assert.False(t, got.NetPayeeAmount.IsNegative(), raw)
		sum := got.PlatformFee.Add(got.ProviderFee).Add(got.NetPayeeAmount)
		assert.True(t, sum.Equal(got.GrossAmount), "%s: %s != %s", raw, sum, got.GrossAmount)
		assert.True(t, got.GrossAmount.Sub(gross).Abs().LessThanOrEqual(decimal.RequireFromString("0.005")), raw)
	}
}

func TestCalculateSmallAmountFloorsAtZero(t *testing.T) {
	calc := newTestCalculator(t)

	got, err := calc.Calculate(decimal.RequireFromString("0.20"), enums.CurrencyUSD)
	require.NoError(t, err)
	assert.True(t, got.NetPayeeAmount.IsZero())
	assert.Equal(t, "0.00", got.View().NetPayeeAmount)
}

func TestCalculateZeroDecimalCurrency(t *testing.T) {
	calc := newTestCalculator(t)

	got, err := calc.Calculate(decimal.NewFromInt(10000), enums.CurrencyJPY)
	require.NoError(t, err)
	assert.Equal(t, "1000", got.View().PlatformFee)
	assert.Equal(t, "290", got.View().ProviderFee)
	assert.Equal(t, "8710", got.View().NetPayeeAmount)
}

func TestCalculateRejectsBadInput(t *testing.T) {
	calc := newTestCalculator(t)

	_, err := calc.Calculate(decimal.NewFromInt(10), enums.Currency("XYZ"))
	require.Error(t, err)

	_, err = calc.Calculate(decimal.NewFromInt(-1), enums.CurrencyUSD)
	require.ErrorIs(t, err, errNegativeGross)
}

func TestNewCalculatorValidatesSchedule(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Schedule)
	}{
		{name: "negative platform rate", mutate: func(s *Schedule) { s.PlatformCommissionRate = decimal.RequireFromString("-0.1") }},
		{name: "provider rate of one", mutate: func(s *Schedule) { s.ProviderPercentRate = decimal.NewFromInt(1) }},
		{name: "negative fixed fee", mutate: func(s *Schedule) { s.ProviderFixedFee = decimal.RequireFromString("-0.30") }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			schedule := defaultSchedule()
			tc.mutate(&schedule)
			_, err := NewCalculator(schedule)
			require.ErrorIs(t, err, errInvalidSchedule)
		})
	}
}
