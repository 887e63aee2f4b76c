package enums

// ProviderHoldStatus is the provider-side state of a hold expressed in escrow vocabulary.
type ProviderHoldStatus string

const (
	ProviderHoldPendingPayment ProviderHoldStatus = "pending_payment"
	ProviderHoldProcessing     ProviderHoldStatus = "processing"
	ProviderHoldFunded         ProviderHoldStatus = "funded"
	ProviderHoldReleased       ProviderHoldStatus = "released"
	ProviderHoldCancelled      ProviderHoldStatus = "cancelled"
	ProviderHoldUnknown        ProviderHoldStatus = "unknown"
)

// String implements fmt.Stringer.
func (s ProviderHoldStatus) String() string {
	return string(s)
}
