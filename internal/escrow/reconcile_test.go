package escrow

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/influencehub-backend/internal/gateway"
	"github.com/angelmondragon/influencehub-backend/pkg/enums"
)

func TestReconcile(t *testing.T) {
	thousand := decimal.NewFromInt(1000)
	cases := []struct {
		name     string
		status   enums.EscrowStatus
		captured *decimal.Decimal
		provider gateway.ProviderStatus
		inSync   bool
	}{
		{"pending awaiting payment", enums.EscrowStatusPendingPayment, nil, gateway.ProviderStatus{Status: enums.ProviderHoldPendingPayment, Amount: thousand}, true},
		{"pending still processing", enums.EscrowStatusPendingPayment, nil, gateway.ProviderStatus{Status: enums.ProviderHoldProcessing, Amount: thousand}, true},
		{"funded", enums.EscrowStatusFunded, nil, gateway.ProviderStatus{Status: enums.ProviderHoldFunded, Amount: thousand}, true},
		{"disputed holds stay authorized", enums.EscrowStatusDisputed, nil, gateway.ProviderStatus{Status: enums.ProviderHoldFunded, Amount: thousand}, true},
		{"released", enums.EscrowStatusReleased, &thousand, gateway.ProviderStatus{Status: enums.ProviderHoldReleased, Amount: thousand, Received: thousand}, true},
		{"refunded void", enums.EscrowStatusRefunded, nil, gateway.ProviderStatus{Status: enums.ProviderHoldCancelled, Amount: thousand}, true},
		{"funded but cancelled upstream", enums.EscrowStatusFunded, nil, gateway.ProviderStatus{Status: enums.ProviderHoldCancelled, Amount: thousand}, false},
		{"amount drift", enums.EscrowStatusFunded, nil, gateway.ProviderStatus{Status: enums.ProviderHoldFunded, Amount: decimal.NewFromInt(900)}, false},
		{"capture drift", enums.EscrowStatusReleased, &thousand, gateway.ProviderStatus{Status: enums.ProviderHoldReleased, Amount: thousand, Received: decimal.NewFromInt(500)}, false},
		{"unmapped provider status", enums.EscrowStatusCancelled, nil, gateway.ProviderStatus{Status: enums.ProviderHoldUnknown, Amount: thousand}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hold := holdIn(tc.status)
			hold.CapturedAmount = tc.captured
			rec := Reconcile(hold, tc.provider, nil, testNow)
			assert.Equal(t, tc.inSync, rec.InSync, rec.Discrepancy)
			assert.Equal(t, tc.inSync, rec.Discrepancy == "")
			assert.Equal(t, tc.status, rec.PersistedStatus)
		})
	}
}

func TestReconcileStatusFailure(t *testing.T) {
	rec := Reconcile(holdIn(enums.EscrowStatusFunded), gateway.ProviderStatus{}, errors.New("timeout"), testNow)
	assert.False(t, rec.InSync)
	assert.Equal(t, enums.ProviderHoldUnknown, rec.ProviderStatus)
	assert.True(t, rec.CheckedAt.Equal(testNow))
}
