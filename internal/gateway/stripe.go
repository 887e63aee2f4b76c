package gateway

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"
	"github.com/stripe/stripe-go/v84/refund"

	"github.com/angelmondragon/influencehub-backend/pkg/enums"
	"github.com/angelmondragon/influencehub-backend/pkg/metrics"
	pkgstripe "github.com/angelmondragon/influencehub-backend/pkg/stripe"
	"github.com/angelmondragon/influencehub-backend/pkg/tracing"
)

const (
	stripeErrorTypeCard = "card_error"

	stripeCodeUnexpectedState   = "payment_intent_unexpected_state"
	stripeCodeAmountTooLarge    = "amount_too_large"
	stripeCodeAlreadyRefunded   = "charge_already_refunded"
	stripeCodeResourceMissing   = "resource_missing"
	stripeCodeAuthenticationReq = "authentication_required"
)

// PaymentIntentAPI is the subset of Stripe resources the adapter uses.
type PaymentIntentAPI interface {
	New(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Confirm(ctx context.Context, id string, params *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error)
	Capture(ctx context.Context, id string, params *stripe.PaymentIntentCaptureParams) (*stripe.PaymentIntent, error)
	Cancel(ctx context.Context, id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error)
	Get(ctx context.Context, id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Refund(ctx context.Context, params *stripe.RefundParams) (*stripe.Refund, error)
}

type stripeAPI struct{}

// NewStripeAPI binds the adapter to the stripe-go resource packages. The client must be
// initialized first so the API key is installed.
func NewStripeAPI(client *pkgstripe.Client) PaymentIntentAPI {
	if client == nil {
		return nil
	}
	return stripeAPI{}
}

func (stripeAPI) New(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	params.Context = ctx
	return paymentintent.New(params)
}

func (stripeAPI) Confirm(ctx context.Context, id string, params *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error) {
	params.Context = ctx
	return paymentintent.Confirm(id, params)
}

func (stripeAPI) Capture(ctx context.Context, id string, params *stripe.PaymentIntentCaptureParams) (*stripe.PaymentIntent, error) {
	params.Context = ctx
	return paymentintent.Capture(id, params)
}

func (stripeAPI) Cancel(ctx context.Context, id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error) {
	params.Context = ctx
	return paymentintent.Cancel(id, params)
}

func (stripeAPI) Get(ctx context.Context, id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	params.Context = ctx
	return paymentintent.Get(id, params)
}

func (stripeAPI) Refund(ctx context.Context, params *stripe.RefundParams) (*stripe.Refund, error) {
	params.Context = ctx
	return refund.New(params)
}

// StripeGateway implements Gateway over manual-capture PaymentIntents.
type StripeGateway struct {
	api                 PaymentIntentAPI
	statementDescriptor string
	metrics             *metrics.EscrowMetrics
}

// StripeOption customizes a StripeGateway.
type StripeOption func(*StripeGateway)

// WithStatementDescriptor sets the card statement suffix on new holds.
func WithStatementDescriptor(suffix string) StripeOption {
	return func(g *StripeGateway) { g.statementDescriptor = suffix }
}

// WithMetrics records call latency on m.
func WithMetrics(m *metrics.EscrowMetrics) StripeOption {
	return func(g *StripeGateway) { g.metrics = m }
}

// NewStripeGateway returns a Stripe-backed Gateway.
func NewStripeGateway(api PaymentIntentAPI, opts ...StripeOption) (*StripeGateway, error) {
	if api == nil {
		return nil, errors.New("stripe payment intent api required")
	}
	g := &StripeGateway{api: api}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func (g *StripeGateway) CreateHold(ctx context.Context, amount decimal.Decimal, currency enums.Currency, metadata map[string]string) (hold Hold, err error) {
	ctx, done := g.observe(ctx, "create_hold", "")
	defer func() { done(err) }()

	if !currency.IsValid() {
		return Hold{}, NewError("create_hold", enums.ErrorKindValidation, errors.New("unsupported currency"))
	}
	minor, err := toMinor(amount, currency)
	if err != nil || minor <= 0 {
		return Hold{}, NewError("create_hold", enums.ErrorKindValidation, errors.New("amount must be positive"))
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(minor),
		Currency:      stripe.String(strings.ToLower(currency.String())),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
	}
	if g.statementDescriptor != "" {
		params.StatementDescriptorSuffix = stripe.String(g.statementDescriptor)
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := g.api.New(ctx, params)
	if err != nil {
		return Hold{}, classify("create_hold", err)
	}
	return Hold{
		HoldID:      pi.ID,
		ClientToken: pi.ClientSecret,
		Status:      MapStripeStatus(pi.Status),
	}, nil
}

func (g *StripeGateway) ConfirmHold(ctx context.Context, holdID, paymentMethodRef string) (conf Confirmation, err error) {
	ctx, done := g.observe(ctx, "confirm_hold", holdID)
	defer func() { done(err) }()

	if strings.TrimSpace(paymentMethodRef) == "" {
		return Confirmation{}, NewError("confirm_hold", enums.ErrorKindValidation, errors.New("payment method required"))
	}
	params := &stripe.PaymentIntentConfirmParams{
		PaymentMethod: stripe.String(paymentMethodRef),
	}
	pi, err := g.api.Confirm(ctx, holdID, params)
	if err != nil {
		return Confirmation{}, classify("confirm_hold", err)
	}

	status := MapStripeStatus(pi.Status)
	if status == enums.ProviderHoldPendingPayment {
		// Stripe leaves a failed confirmation in requires_payment_method.
		return Confirmation{}, &Error{Kind: enums.ErrorKindPaymentDeclined, Op: "confirm_hold", ProviderCode: lastPaymentErrorCode(pi)}
	}
	return Confirmation{
		Status: status,
		Amount: fromMinor(pi.Amount, currencyOf(pi)),
	}, nil
}

func (g *StripeGateway) CaptureHold(ctx context.Context, holdID string, amount decimal.Decimal) (capture Capture, err error) {
	ctx, done := g.observe(ctx, "capture_hold", holdID)
	defer func() { done(err) }()

	params := &stripe.PaymentIntentCaptureParams{}
	if amount.IsPositive() {
		current, err := g.api.Get(ctx, holdID, &stripe.PaymentIntentParams{})
		if err != nil {
			return Capture{}, classify("capture_hold", err)
		}
		minor, err := toMinor(amount, currencyOf(current))
		if err != nil {
			return Capture{}, NewError("capture_hold", enums.ErrorKindValidation, err)
		}
		params.AmountToCapture = stripe.Int64(minor)
	}
	params.SetIdempotencyKey("capture-" + holdID)

	pi, err := g.api.Capture(ctx, holdID, params)
	if err != nil {
		return Capture{}, classify("capture_hold", err)
	}
	return Capture{CapturedAmount: fromMinor(pi.AmountReceived, currencyOf(pi))}, nil
}

func (g *StripeGateway) CancelHold(ctx context.Context, holdID string) (err error) {
	ctx, done := g.observe(ctx, "cancel_hold", holdID)
	defer func() { done(err) }()

	_, err = g.api.Cancel(ctx, holdID, &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonRequestedByCustomer)),
	})
	if err != nil {
		return classify("cancel_hold", err)
	}
	return nil
}

// Refund voids an uncaptured authorization when the full amount is requested and issues a
// refund against a captured one. Partial voids are not supported by the provider.
func (g *StripeGateway) Refund(ctx context.Context, holdID string, amount decimal.Decimal, reason string) (result Refund, err error) {
	ctx, done := g.observe(ctx, "refund", holdID)
	defer func() { done(err) }()

	pi, err := g.api.Get(ctx, holdID, &stripe.PaymentIntentParams{})
	if err != nil {
		return Refund{}, classify("refund", err)
	}
	currency := currencyOf(pi)

	var minor int64
	if amount.IsPositive() {
		if minor, err = toMinor(amount, currency); err != nil {
			return Refund{}, NewError("refund", enums.ErrorKindValidation, err)
		}
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusRequiresCapture:
		if minor != 0 && minor != pi.Amount {
			return Refund{}, NewError("refund", enums.ErrorKindValidation, errors.New("uncaptured holds can only be voided in full"))
		}
		if _, err := g.api.Cancel(ctx, holdID, &stripe.PaymentIntentCancelParams{
			CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonRequestedByCustomer)),
		}); err != nil {
			return Refund{}, classify("refund", err)
		}
		return Refund{Amount: fromMinor(pi.Amount, currency), Voided: true}, nil
	case stripe.PaymentIntentStatusSucceeded:
		if minor == 0 {
			minor = pi.AmountReceived
		}
		if minor > pi.AmountReceived {
			return Refund{}, NewError("refund", enums.ErrorKindRefundExceedsCaptured, errors.New("refund amount exceeds captured amount"))
		}
		params := &stripe.RefundParams{
			PaymentIntent: stripe.String(holdID),
			Amount:        stripe.Int64(minor),
		}
		if reason != "" {
			params.AddMetadata("reason", reason)
		}
		params.SetIdempotencyKey("refund-" + holdID)
		rf, err := g.api.Refund(ctx, params)
		if err != nil {
			return Refund{}, classify("refund", err)
		}
		return Refund{RefundID: rf.ID, Amount: fromMinor(rf.Amount, currency)}, nil
	default:
		return Refund{}, NewError("refund", enums.ErrorKindInvalidState, errors.New("payment intent is "+string(pi.Status)))
	}
}

func (g *StripeGateway) GetStatus(ctx context.Context, holdID string) (status ProviderStatus, err error) {
	ctx, done := g.observe(ctx, "get_status", holdID)
	defer func() { done(err) }()

	params := &stripe.PaymentIntentParams{}
	params.AddExpand("latest_charge")
	pi, err := g.api.Get(ctx, holdID, params)
	if err != nil {
		return ProviderStatus{}, classify("get_status", err)
	}
	currency := currencyOf(pi)
	refunded := decimal.Zero
	if pi.LatestCharge != nil {
		refunded = fromMinor(pi.LatestCharge.AmountRefunded, currency)
	}
	return ProviderStatus{
		Status:     MapStripeStatus(pi.Status),
		RawStatus:  string(pi.Status),
		Amount:     fromMinor(pi.Amount, currency),
		Capturable: fromMinor(pi.AmountCapturable, currency),
		Received:   fromMinor(pi.AmountReceived, currency),
		Refunded:   refunded,
		Currency:   currency,
		Metadata:   pi.Metadata,
	}, nil
}

func (g *StripeGateway) observe(ctx context.Context, call, holdID string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "gateway."+call, tracing.HoldID(holdID))
	return ctx, func(err error) {
		outcome := "ok"
		if kind, ok := KindOf(err); ok {
			outcome = kind.String()
		} else if err != nil {
			outcome = "error"
		}
		g.metrics.ObserveGatewayCall(call, outcome, time.Since(start))
		tracing.End(span, err)
	}
}

// MapStripeStatus translates PaymentIntent statuses into escrow vocabulary.
func MapStripeStatus(status stripe.PaymentIntentStatus) enums.ProviderHoldStatus {
	switch status {
	case stripe.PaymentIntentStatusRequiresPaymentMethod, stripe.PaymentIntentStatusRequiresConfirmation:
		return enums.ProviderHoldPendingPayment
	case stripe.PaymentIntentStatusRequiresAction, stripe.PaymentIntentStatusProcessing:
		return enums.ProviderHoldProcessing
	case stripe.PaymentIntentStatusRequiresCapture:
		return enums.ProviderHoldFunded
	case stripe.PaymentIntentStatusSucceeded:
		return enums.ProviderHoldReleased
	case stripe.PaymentIntentStatusCanceled:
		return enums.ProviderHoldCancelled
	default:
		return enums.ProviderHoldUnknown
	}
}

func classify(op string, err error) *Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(op, enums.ErrorKindGatewayTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewError(op, enums.ErrorKindGatewayTimeout, err)
	}

	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		// Transport failure: the request may or may not have reached the provider.
		return &Error{Kind: enums.ErrorKindGatewayError, Op: op, Ambiguous: true, Err: err}
	}

	code := string(stripeErr.Code)
	gwErr := &Error{Op: op, ProviderCode: code, Err: err}
	switch {
	case string(stripeErr.Type) == stripeErrorTypeCard || code == stripeCodeAuthenticationReq:
		gwErr.Kind = enums.ErrorKindPaymentDeclined
		if stripeErr.DeclineCode != "" {
			gwErr.ProviderCode = string(stripeErr.DeclineCode)
		}
	case code == stripeCodeUnexpectedState:
		gwErr.Kind = enums.ErrorKindInvalidState
	case code == stripeCodeAmountTooLarge || code == stripeCodeAlreadyRefunded:
		gwErr.Kind = enums.ErrorKindRefundExceedsCaptured
	case code == stripeCodeResourceMissing:
		gwErr.Kind = enums.ErrorKindValidation
	case stripeErr.HTTPStatusCode >= 500 || stripeErr.HTTPStatusCode == 0:
		gwErr.Kind = enums.ErrorKindGatewayError
		gwErr.Ambiguous = true
	default:
		gwErr.Kind = enums.ErrorKindGatewayError
	}
	return gwErr
}

func lastPaymentErrorCode(pi *stripe.PaymentIntent) string {
	if pi == nil || pi.LastPaymentError == nil {
		return ""
	}
	if pi.LastPaymentError.DeclineCode != "" {
		return string(pi.LastPaymentError.DeclineCode)
	}
	return string(pi.LastPaymentError.Code)
}

func currencyOf(pi *stripe.PaymentIntent) enums.Currency {
	if pi == nil {
		return ""
	}
	return enums.Currency(strings.ToUpper(string(pi.Currency)))
}

func toMinor(amount decimal.Decimal, currency enums.Currency) (int64, error) {
	if amount.IsNegative() {
		return 0, errors.New("amount must not be negative")
	}
	return amount.Shift(currency.MinorUnits()).Round(0).IntPart(), nil
}

func fromMinor(minor int64, currency enums.Currency) decimal.Decimal {
	return decimal.New(minor, -currency.MinorUnits())
}
