package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/influencehub-backend/internal/fees"
)

func testCalculator(t *testing.T) *fees.Calculator {
	t.Helper()
	calc, err := fees.NewCalculator(fees.Schedule{
		PlatformCommissionRate: decimal.RequireFromString("0.10"),
		ProviderPercentRate:    decimal.RequireFromString("0.029"),
		ProviderFixedFee:       decimal.RequireFromString("0.30"),
	})
	require.NoError(t, err)
	return calc
}

func TestFeeQuoteBreakdown(t *testing.T) {
	rec := httptest.NewRecorder()
	FeeQuote(testCalculator(t), nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/fees?amount=1000&currency=usd", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "1000.00", body["grossAmount"])
	assert.Equal(t, "100.00", body["platformFee"])
	assert.Equal(t, "29.30", body["providerFee"])
	assert.Equal(t, "870.70", body["netPayeeAmount"])
	assert.Equal(t, "USD", body["currency"])
}

func TestFeeQuoteDefaultsToUSD(t *testing.T) {
	rec := httptest.NewRecorder()
	FeeQuote(testCalculator(t), nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/fees?amount=500", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "USD", body["currency"])
	assert.Equal(t, "435.20", body["netPayeeAmount"])
}

func TestFeeQuoteRejectsBadInput(t *testing.T) {
	for _, target := range []string{
		"/api/v1/fees",
		"/api/v1/fees?amount=abc",
		"/api/v1/fees?amount=-5",
		"/api/v1/fees?amount=10&currency=XYZ",
	} {
		rec := httptest.NewRecorder()
		FeeQuote(testCalculator(t), nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

		require.Equal(t, http.StatusBadRequest, rec.Code, target)
		var body struct {
			Success bool `json:"success"`
			Error   struct {
				Kind string `json:"kind"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.False(t, body.Success)
		assert.Equal(t, "validation_error", body.Error.Kind)
	}
}
