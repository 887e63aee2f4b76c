// Package gatewaytest provides an in-memory payment provider for tests.
package gatewaytest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/influencehub-backend/internal/gateway"
	"github.com/angelmondragon/influencehub-backend/pkg/enums"
)

// DeclinedMethod is a payment method reference the fake always declines.
const DeclinedMethod = "pm_card_declined"

// Call names accepted by FailNext and FailAfterApply.
const (
	CallCreate  = "create_hold"
	CallConfirm = "confirm_hold"
	CallCapture = "capture_hold"
	CallCancel  = "cancel_hold"
	CallRefund  = "refund"
	CallStatus  = "get_status"
)

// FakeHold is the provider-side view of one hold.
type FakeHold struct {
	ID       string
	Status   enums.ProviderHoldStatus
	Amount   decimal.Decimal
	Captured decimal.Decimal
	Refunded decimal.Decimal
	Currency enums.Currency
	Metadata map[string]string
}

// Fake is a goroutine-safe Gateway that tracks holds in memory.
type Fake struct {
	mu         sync.Mutex
	seq        int
	holds      map[string]*FakeHold
	calls      map[string]int
	failNext   map[string][]error
	failAfter  map[string][]error
	failAlways map[string]error
	hook       func(call string)
}

var _ gateway.Gateway = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		holds:      map[string]*FakeHold{},
		calls:      map[string]int{},
		failNext:   map[string][]error{},
		failAfter:  map[string][]error{},
		failAlways: map[string]error{},
	}
}

// FailNext makes the next call fail with err before touching any state.
func (f *Fake) FailNext(call string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext[call] = append(f.failNext[call], err)
}

// FailAfterApply makes the next call apply its effect and then report err, the way a
// provider timeout can hide a successful action.
func (f *Fake) FailAfterApply(call string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAfter[call] = append(f.failAfter[call], err)
}

// FailAlways makes every call fail with err until cleared with a nil err.
func (f *Fake) FailAlways(call string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failAlways, call)
		return
	}
	f.failAlways[call] = err
}

// SetHook registers fn to run at the start of every call, outside the fake's lock.
// Tests use it to interleave competing writes with an in-flight provider call.
func (f *Fake) SetHook(fn func(call string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hook = fn
}

func (f *Fake) runHook(call string) {
	f.mu.Lock()
	hook := f.hook
	f.mu.Unlock()
	if hook != nil {
		hook(call)
	}
}

// Calls returns how many times call was invoked.
func (f *Fake) Calls(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[call]
}

// Hold returns a copy of the provider-side hold.
func (f *Fake) Hold(id string) (FakeHold, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.holds[id]
	if !ok {
		return FakeHold{}, false
	}
	return *h, true
}

// SetStatus forces the provider-side status of a hold.
func (f *Fake) SetStatus(id string, status enums.ProviderHoldStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if h, ok := f.holds[id]; ok {
		h.Status = status
		if status == enums.ProviderHoldReleased && h.Captured.IsZero() {
			h.Captured = h.Amount
		}
	}
}

func (f *Fake) enter(call string) error {
	f.calls[call]++
	if err, ok := f.failAlways[call]; ok {
		return err
	}
	if queue := f.failNext[call]; len(queue) > 0 {
		f.failNext[call] = queue[1:]
		return queue[0]
	}
	return nil
}

func (f *Fake) leave(call string) error {
	if queue := f.failAfter[call]; len(queue) > 0 {
		f.failAfter[call] = queue[1:]
		return queue[0]
	}
	return nil
}

func (f *Fake) lookup(op, id string) (*FakeHold, error) {
	h, ok := f.holds[id]
	if !ok {
		return nil, gateway.NewError(op, enums.ErrorKindValidation, fmt.Errorf("no such hold %q", id))
	}
	return h, nil
}

func (f *Fake) CreateHold(_ context.Context, amount decimal.Decimal, currency enums.Currency, metadata map[string]string) (gateway.Hold, error) {
	f.runHook(CallCreate)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(CallCreate); err != nil {
		return gateway.Hold{}, err
	}
	if !amount.IsPositive() || !currency.IsValid() {
		return gateway.Hold{}, gateway.NewError(CallCreate, enums.ErrorKindValidation, errors.New("invalid amount or currency"))
	}
	f.seq++
	id := fmt.Sprintf("pi_fake_%d", f.seq)
	md := make(map[string]string, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}
	f.holds[id] = &FakeHold{ID: id, Status: enums.ProviderHoldPendingPayment, Amount: amount, Currency: currency, Metadata: md}
	if err := f.leave(CallCreate); err != nil {
		return gateway.Hold{}, err
	}
	return gateway.Hold{HoldID: id, ClientToken: id + "_secret", Status: enums.ProviderHoldPendingPayment}, nil
}

func (f *Fake) ConfirmHold(_ context.Context, holdID, paymentMethodRef string) (gateway.Confirmation, error) {
	f.runHook(CallConfirm)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(CallConfirm); err != nil {
		return gateway.Confirmation{}, err
	}
	h, err := f.lookup(CallConfirm, holdID)
	if err != nil {
		return gateway.Confirmation{}, err
	}
	if h.Status != enums.ProviderHoldPendingPayment {
		return gateway.Confirmation{}, gateway.NewError(CallConfirm, enums.ErrorKindInvalidState, errors.New("hold is "+h.Status.String()))
	}
	if strings.HasPrefix(paymentMethodRef, DeclinedMethod) {
		return gateway.Confirmation{}, &gateway.Error{Kind: enums.ErrorKindPaymentDeclined, Op: CallConfirm, ProviderCode: "card_declined"}
	}
	h.Status = enums.ProviderHoldFunded
	if err := f.leave(CallConfirm); err != nil {
		return gateway.Confirmation{}, err
	}
	return gateway.Confirmation{Status: h.Status, Amount: h.Amount}, nil
}

func (f *Fake) CaptureHold(_ context.Context, holdID string, amount decimal.Decimal) (gateway.Capture, error) {
	f.runHook(CallCapture)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(CallCapture); err != nil {
		return gateway.Capture{}, err
	}
	h, err := f.lookup(CallCapture, holdID)
	if err != nil {
		return gateway.Capture{}, err
	}
	if h.Status != enums.ProviderHoldFunded {
		return gateway.Capture{}, gateway.NewError(CallCapture, enums.ErrorKindInvalidState, errors.New("hold is "+h.Status.String()))
	}
	if !amount.IsPositive() {
		amount = h.Amount
	}
	if amount.GreaterThan(h.Amount) {
		return gateway.Capture{}, gateway.NewError(CallCapture, enums.ErrorKindValidation, errors.New("capture exceeds authorization"))
	}
	h.Captured = amount
	h.Status = enums.ProviderHoldReleased
	if err := f.leave(CallCapture); err != nil {
		return gateway.Capture{}, err
	}
	return gateway.Capture{CapturedAmount: amount}, nil
}

func (f *Fake) CancelHold(_ context.Context, holdID string) error {
	f.runHook(CallCancel)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(CallCancel); err != nil {
		return err
	}
	h, err := f.lookup(CallCancel, holdID)
	if err != nil {
		return err
	}
	switch h.Status {
	case enums.ProviderHoldPendingPayment, enums.ProviderHoldFunded:
		h.Status = enums.ProviderHoldCancelled
	default:
		return gateway.NewError(CallCancel, enums.ErrorKindInvalidState, errors.New("hold is "+h.Status.String()))
	}
	return f.leave(CallCancel)
}

func (f *Fake) Refund(_ context.Context, holdID string, amount decimal.Decimal, _ string) (gateway.Refund, error) {
	f.runHook(CallRefund)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(CallRefund); err != nil {
		return gateway.Refund{}, err
	}
	h, err := f.lookup(CallRefund, holdID)
	if err != nil {
		return gateway.Refund{}, err
	}

	var result gateway.Refund
	switch h.Status {
	case enums.ProviderHoldFunded:
		if amount.IsPositive() && !amount.Equal(h.Amount) {
			return gateway.Refund{}, gateway.NewError(CallRefund, enums.ErrorKindValidation, errors.New("uncaptured holds can only be voided in full"))
		}
		h.Status = enums.ProviderHoldCancelled
		result = gateway.Refund{Amount: h.Amount, Voided: true}
	case enums.ProviderHoldReleased:
		if !amount.IsPositive() {
			amount = h.Captured.Sub(h.Refunded)
		}
		if h.Refunded.Add(amount).GreaterThan(h.Captured) {
			return gateway.Refund{}, gateway.NewError(CallRefund, enums.ErrorKindRefundExceedsCaptured, errors.New("refund exceeds captured amount"))
		}
		h.Refunded = h.Refunded.Add(amount)
		f.seq++
		result = gateway.Refund{RefundID: fmt.Sprintf("re_fake_%d", f.seq), Amount: amount}
	default:
		return gateway.Refund{}, gateway.NewError(CallRefund, enums.ErrorKindInvalidState, errors.New("hold is "+h.Status.String()))
	}
	if err := f.leave(CallRefund); err != nil {
		return gateway.Refund{}, err
	}
	return result, nil
}

func (f *Fake) GetStatus(_ context.Context, holdID string) (gateway.ProviderStatus, error) {
	f.runHook(CallStatus)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(CallStatus); err != nil {
		return gateway.ProviderStatus{}, err
	}
	h, err := f.lookup(CallStatus, holdID)
	if err != nil {
		return gateway.ProviderStatus{}, err
	}
	capturable := decimal.Zero
	if h.Status == enums.ProviderHoldFunded {
		capturable = h.Amount
	}
	md := make(map[string]string, len(h.Metadata))
	for k, v := range h.Metadata {
		md[k] = v
	}
	return gateway.ProviderStatus{
		Status:     h.Status,
		RawStatus:  h.Status.String(),
		Amount:     h.Amount,
		Capturable: capturable,
		Received:   h.Captured,
		Refunded:   h.Refunded,
		Currency:   h.Currency,
		Metadata:   md,
	}, nil
}
