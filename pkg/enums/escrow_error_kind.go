package enums

// EscrowErrorKind classifies every failure an escrow operation can report to its caller.
type EscrowErrorKind string

const (
	ErrorKindValidation            EscrowErrorKind = "validation_error"
	ErrorKindInvalidState          EscrowErrorKind = "invalid_state"
	ErrorKindPaymentDeclined       EscrowErrorKind = "payment_declined"
	ErrorKindGatewayError          EscrowErrorKind = "gateway_error"
	ErrorKindGatewayTimeout        EscrowErrorKind = "gateway_timeout"
	ErrorKindRefundExceedsCaptured EscrowErrorKind = "refund_exceeds_captured"
)

// String implements fmt.Stringer.
func (k EscrowErrorKind) String() string {
	return string(k)
}
