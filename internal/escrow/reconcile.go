package escrow

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/influencehub-backend/internal/gateway"
	"github.com/angelmondragon/influencehub-backend/pkg/db/models"
	"github.com/angelmondragon/influencehub-backend/pkg/enums"
)

// Reconciliation compares the persisted hold with what the provider reports. It is a
// read-only view; nothing is repaired from it.
type Reconciliation struct {
	PersistedStatus   enums.EscrowStatus       `json:"persistedStatus"`
	ProviderStatus    enums.ProviderHoldStatus `json:"providerStatus"`
	ProviderRawStatus string                   `json:"providerRawStatus,omitempty"`
	InSync            bool                     `json:"inSync"`
	Discrepancy       string                   `json:"discrepancy,omitempty"`
	ProviderAmount    string                   `json:"providerAmount,omitempty"`
	ProviderCaptured  string                   `json:"providerCaptured,omitempty"`
	CheckedAt         time.Time                `json:"checkedAt"`
}

var expectedProviderStatus = map[enums.EscrowStatus][]enums.ProviderHoldStatus{
	enums.EscrowStatusPendingPayment: {enums.ProviderHoldPendingPayment, enums.ProviderHoldProcessing},
	enums.EscrowStatusFunded:         {enums.ProviderHoldFunded},
	enums.EscrowStatusDisputed:       {enums.ProviderHoldFunded},
	enums.EscrowStatusReleased:       {enums.ProviderHoldReleased},
	enums.EscrowStatusRefunded:       {enums.ProviderHoldReleased, enums.ProviderHoldCancelled},
	enums.EscrowStatusCancelled:      {enums.ProviderHoldCancelled},
}

// Reconcile builds the comparison for a hold. statusErr is the error from the provider
// lookup, if any; the provider status is then unknown and the hold is reported out of sync.
func Reconcile(hold models.EscrowHold, provider gateway.ProviderStatus, statusErr error, at time.Time) Reconciliation {
	rec := Reconciliation{
		PersistedStatus: hold.Status,
		CheckedAt:       at,
	}
	if statusErr != nil {
		rec.ProviderStatus = enums.ProviderHoldUnknown
		rec.Discrepancy = "provider status unavailable"
		return rec
	}

	places := hold.Currency.MinorUnits()
	rec.ProviderStatus = provider.Status
	rec.ProviderRawStatus = provider.RawStatus
	rec.ProviderAmount = provider.Amount.StringFixed(places)
	if provider.Received.IsPositive() {
		rec.ProviderCaptured = provider.Received.StringFixed(places)
	}

	if !statusMatches(hold.Status, provider.Status) {
		rec.Discrepancy = "persisted " + hold.Status.String() + " but provider reports " + provider.Status.String()
		return rec
	}
	if !provider.Amount.Equal(hold.GrossAmount) {
		rec.Discrepancy = "persisted amount " + hold.GrossAmount.StringFixed(places) + " but provider holds " + rec.ProviderAmount
		return rec
	}
	if hold.CapturedAmount != nil && !capturedMatches(*hold.CapturedAmount, provider.Received) {
		rec.Discrepancy = "persisted capture " + hold.CapturedAmount.StringFixed(places) + " but provider received " + provider.Received.StringFixed(places)
		return rec
	}
	rec.InSync = true
	return rec
}

func statusMatches(persisted enums.EscrowStatus, provider enums.ProviderHoldStatus) bool {
	for _, candidate := range expectedProviderStatus[persisted] {
		if candidate == provider {
			return true
		}
	}
	return false
}

// capturedMatches tolerates a provider that does not report received amounts.
func capturedMatches(persisted, received decimal.Decimal) bool {
	return received.IsZero() || persisted.Equal(received)
}
