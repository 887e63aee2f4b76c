// Package gateway adapts the payment provider's authorization-hold primitives to escrow
// vocabulary and classifies provider failures into typed error kinds.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/influencehub-backend/pkg/enums"
)

// Hold is a freshly created, unconfirmed authorization.
type Hold struct {
	HoldID      string
	ClientToken string
	Status      enums.ProviderHoldStatus
}

// Confirmation is the provider's answer to a confirm call.
type Confirmation struct {
	Status enums.ProviderHoldStatus
	Amount decimal.Decimal
}

// Capture reports what the provider actually settled.
type Capture struct {
	CapturedAmount decimal.Decimal
}

// Refund reports a refund or, for an uncaptured hold, a voided authorization.
type Refund struct {
	RefundID string
	Amount   decimal.Decimal
	Voided   bool
}

// ProviderStatus is a point-in-time snapshot of a hold at the provider. Refunded is the total
// returned to the payer out of Received.
type ProviderStatus struct {
	Status     enums.ProviderHoldStatus
	RawStatus  string
	Amount     decimal.Decimal
	Capturable decimal.Decimal
	Received   decimal.Decimal
	Refunded   decimal.Decimal
	Currency   enums.Currency
	Metadata   map[string]string
}

// Gateway is the set of provider operations the escrow state machine drives.
// A zero amount passed to CaptureHold or Refund means the full authorized or captured amount.
type Gateway interface {
	CreateHold(ctx context.Context, amount decimal.Decimal, currency enums.Currency, metadata map[string]string) (Hold, error)
	ConfirmHold(ctx context.Context, holdID, paymentMethodRef string) (Confirmation, error)
	CaptureHold(ctx context.Context, holdID string, amount decimal.Decimal) (Capture, error)
	CancelHold(ctx context.Context, holdID string) error
	Refund(ctx context.Context, holdID string, amount decimal.Decimal, reason string) (Refund, error)
	GetStatus(ctx context.Context, holdID string) (ProviderStatus, error)
}

// Error is a classified provider failure.
type Error struct {
	Kind enums.EscrowErrorKind
	Op   string
	// ProviderCode is the provider's own code (decline code, error code), if any.
	ProviderCode string
	// Ambiguous is set when the provider may have applied the action despite the failure.
	Ambiguous bool
	Err       error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("gateway %s: %s", e.Op, e.Kind)
	if e.ProviderCode != "" {
		msg += " (" + e.ProviderCode + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewError builds a classified error. Timeouts are always ambiguous.
func NewError(op string, kind enums.EscrowErrorKind, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err, Ambiguous: kind == enums.ErrorKindGatewayTimeout}
}

// KindOf extracts the error kind carried by err.
func KindOf(err error) (enums.EscrowErrorKind, bool) {
	var gwErr *Error
	if errors.As(err, &gwErr) && gwErr != nil {
		return gwErr.Kind, true
	}
	return "", false
}

// IsAmbiguous reports whether the outcome of the failed call is unknown and must be
// confirmed through GetStatus before the caller acts on it.
func IsAmbiguous(err error) bool {
	var gwErr *Error
	if errors.As(err, &gwErr) && gwErr != nil {
		return gwErr.Ambiguous || gwErr.Kind == enums.ErrorKindGatewayTimeout
	}
	return false
}

// RetryAdvice tells a caller whether and how a failed operation may be retried.
type RetryAdvice string

const (
	RetryNever          RetryAdvice = "never"
	RetryWithNewInput   RetryAdvice = "with_new_input"
	RetryAfterReconcile RetryAdvice = "after_reconcile"
)

// AdviceFor is the retry policy for each error kind.
func AdviceFor(kind enums.EscrowErrorKind) RetryAdvice {
	switch kind {
	case enums.ErrorKindValidation, enums.ErrorKindPaymentDeclined, enums.ErrorKindRefundExceedsCaptured:
		return RetryWithNewInput
	case enums.ErrorKindGatewayError, enums.ErrorKindGatewayTimeout:
		return RetryAfterReconcile
	default:
		return RetryNever
	}
}

// Retryable reports whether any retry is possible for kind.
func Retryable(kind enums.EscrowErrorKind) bool {
	return AdviceFor(kind) != RetryNever
}
