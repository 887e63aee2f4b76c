package escrow

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/influencehub-backend/internal/gateway"
	"github.com/angelmondragon/influencehub-backend/pkg/db/models"
	"github.com/angelmondragon/influencehub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/influencehub-backend/pkg/errors"
	"github.com/angelmondragon/influencehub-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/influencehub-backend/pkg/tracing"
)

func (s *service) RefundToBrand(ctx context.Context, actor Actor, input RefundInput) (res *Result, err error) {
	ctx = s.begin(ctx, opRefund, input.EscrowID, uuid.Nil)
	ctx, span := tracing.StartSpan(ctx, "escrow."+opRefund, tracing.EscrowID(input.EscrowID.String()), tracing.Operation(opRefund))
	defer func() {
		tracing.End(span, err)
		s.finish(opRefund, res, err)
	}()

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if input.Amount.IsNegative() {
		return failure(enums.ErrorKindValidation, "refund amount must not be negative"), nil
	}
	hold, res, err := s.loadHold(ctx, input.EscrowID)
	if hold == nil {
		return res, err
	}
	ctx = s.begin(ctx, opRefund, hold.ID, hold.CampaignID)
	if !canManage(actor, hold) {
		return failureFor(hold, enums.ErrorKindValidation, "escrow is not owned by the caller"), nil
	}

	kind := EventRefund
	if hold.Status == enums.EscrowStatusPendingPayment {
		kind = EventCancel
	}
	if stateErr := Allowed(hold.Status, kind, actor.Role); stateErr != nil {
		return stateFailure(hold, stateErr), nil
	}

	reason := strings.TrimSpace(input.Reason)
	if kind == EventCancel {
		return s.cancelPending(ctx, actor, hold, reason)
	}
	return s.refundFunded(ctx, actor, hold, input.Amount, reason)
}

func (s *service) cancelPending(ctx context.Context, actor Actor, hold *models.EscrowHold, reason string) (*Result, error) {
	gwCtx, cancel := s.gatewayContext(ctx)
	defer cancel()
	if gwErr := s.gateway.CancelHold(gwCtx, hold.ProviderHoldID); gwErr != nil {
		kind, _ := gateway.KindOf(gwErr)
		if kind != enums.ErrorKindInvalidState && !gateway.IsAmbiguous(gwErr) {
			return gatewayFailure(hold, gwErr), nil
		}
		status, statusErr := s.gateway.GetStatus(gwCtx, hold.ProviderHoldID)
		if statusErr != nil || status.Status != enums.ProviderHoldCancelled {
			s.logg.Warn(s.logg.WithField(ctx, "error", gwErr.Error()), "cancel hold failed")
			return gatewayFailure(hold, gwErr), nil
		}
	}

	now := s.now()
	var cancelled Transition
	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		current, err := s.repo.WithTx(tx).FindByID(ctx, hold.ID)
		if err != nil {
			return err
		}
		t, err := Plan(*current, Event{Kind: EventCancel, Role: actor.Role, At: now})
		if err != nil {
			return err
		}
		if err := s.commit(ctx, tx, current, t); err != nil {
			return err
		}
		cancelled = t
		return s.outbox.Emit(ctx, tx, s.event(t, actor, now, payloads.EscrowCancelledEvent{
			EscrowID:    t.Hold.ID,
			CampaignID:  t.Hold.CampaignID,
			BrandID:     t.Hold.BrandID,
			Reason:      reason,
			CancelledAt: now,
		}))
	})
	if txErr != nil {
		if IsStateError(txErr) {
			return s.unrecorded(ctx, hold, map[string]any{}, "hold cancelled at provider but the escrow changed before it was recorded", txErr), nil
		}
		s.logg.Error(s.logg.WithFields(ctx, map[string]any{
			"provider_hold_id": hold.ProviderHoldID,
			"money_ambiguous":  true,
		}), "hold cancelled at provider but cancellation was not recorded", txErr)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "persist cancellation")
	}

	s.logg.Info(ctx, "escrow cancelled")
	res := holdResult(cancelled.Hold)
	res.Refund = &RefundView{
		Amount: hold.GrossAmount.StringFixed(hold.Currency.MinorUnits()),
		Voided: true,
	}
	return res, nil
}

func (s *service) refundFunded(ctx context.Context, actor Actor, hold *models.EscrowHold, requested decimal.Decimal, reason string) (*Result, error) {
	limit := hold.GrossAmount
	if hold.CapturedAmount != nil {
		limit = *hold.CapturedAmount
	}
	amount := requested
	if amount.IsZero() {
		amount = limit
	}
	if amount.GreaterThan(limit) {
		return failureFor(hold, enums.ErrorKindRefundExceedsCaptured, "refund exceeds the captured amount"), nil
	}
	if precisionErr := checkPrecision(amount, hold.Currency); precisionErr != nil {
		return failureFor(hold, enums.ErrorKindValidation, precisionErr.Error()), nil
	}
	if hold.CapturedAmount == nil && !amount.Equal(hold.GrossAmount) {
		return failureFor(hold, enums.ErrorKindValidation, "an uncaptured hold can only be refunded in full"), nil
	}

	resuming := hold.SettlementKind() == enums.SettlementRefund
	current, locked, err := s.claimSettlement(ctx, hold, enums.SettlementRefund)
	if err != nil {
		return nil, err
	}
	if locked != nil {
		return locked, nil
	}

	gwCtx, cancel := s.gatewayContext(ctx)
	defer cancel()
	refund, state := gateway.Refund{}, refundUntouched
	if resuming {
		// an earlier attempt may have landed after the provider's idempotency window closed
		refund, state = s.providerRefund(gwCtx, current, amount)
		if state == refundUnknown {
			pending := failureFor(current, enums.ErrorKindGatewayError, "an earlier refund is not yet confirmed by the payment provider")
			pending.Error.PendingConfirmation = true
			pending.Error.Retryable = true
			pending.Error.RetryAdvice = gateway.RetryAfterReconcile
			return pending, nil
		}
		if state == refundLanded {
			s.logg.Info(ctx, "earlier refund confirmed by provider status")
		}
	}
	if state != refundLanded {
		var gwErr error
		refund, gwErr = s.gateway.Refund(gwCtx, current.ProviderHoldID, amount, reason)
		if gwErr != nil {
			kind, _ := gateway.KindOf(gwErr)
			if kind != enums.ErrorKindInvalidState && !gateway.IsAmbiguous(gwErr) {
				s.releaseSettlement(ctx, current, enums.SettlementRefund)
				s.logg.Warn(s.logg.WithField(ctx, "error", gwErr.Error()), "refund failed")
				return gatewayFailure(current, gwErr), nil
			}
			// the void or refund may have landed on an earlier attempt or despite the error
			refund, state = s.providerRefund(gwCtx, current, amount)
			switch {
			case state == refundLanded:
				s.logg.Info(ctx, "refund confirmed by provider status")
			case state == refundUntouched && !gateway.IsAmbiguous(gwErr):
				s.releaseSettlement(ctx, current, enums.SettlementRefund)
				s.logg.Warn(s.logg.WithField(ctx, "error", gwErr.Error()), "refund rejected; nothing returned at provider")
				return gatewayFailure(current, gwErr), nil
			default:
				s.logg.Warn(s.logg.WithField(ctx, "error", gwErr.Error()), "refund failed")
				return gatewayFailure(current, gwErr), nil
			}
		}
	}
	refunded := refund.Amount
	if !refunded.IsPositive() {
		refunded = amount
	}

	now := s.now()
	var done Transition
	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		current, err := s.repo.WithTx(tx).FindByID(ctx, hold.ID)
		if err != nil {
			return err
		}
		t, err := Plan(*current, Event{
			Kind:         EventRefund,
			Role:         actor.Role,
			At:           now,
			RefundAmount: refunded,
			RefundID:     refund.RefundID,
		})
		if err != nil {
			return err
		}
		if err := s.commit(ctx, tx, current, t); err != nil {
			return err
		}
		done = t
		return s.outbox.Emit(ctx, tx, s.event(t, actor, now, payloads.EscrowRefundedEvent{
			EscrowID:         t.Hold.ID,
			CampaignID:       t.Hold.CampaignID,
			BrandID:          t.Hold.BrandID,
			Amount:           refunded.StringFixed(t.Hold.Currency.MinorUnits()),
			Currency:         t.Hold.Currency,
			ProviderRefundID: refund.RefundID,
			Voided:           refund.Voided,
			Reason:           reason,
			RefundedAt:       now,
		}))
	})
	if txErr != nil {
		if IsStateError(txErr) {
			return s.unrecorded(ctx, hold, map[string]any{
				"provider_refund_id": refund.RefundID,
				"refunded_amount":    refunded.String(),
			}, "refund issued at provider but the escrow changed before it was recorded", txErr), nil
		}
		s.logg.Error(s.logg.WithFields(ctx, map[string]any{
			"provider_hold_id":   hold.ProviderHoldID,
			"provider_refund_id": refund.RefundID,
			"refunded_amount":    refunded.String(),
			"money_ambiguous":    true,
		}), "refund issued at provider but was not recorded", txErr)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "persist refund")
	}

	s.logg.Info(ctx, "escrow refunded")
	res := holdResult(done.Hold)
	res.Refund = &RefundView{
		Amount:           refunded.StringFixed(hold.Currency.MinorUnits()),
		ProviderRefundID: refund.RefundID,
		Voided:           refund.Voided,
	}
	return res, nil
}

type refundState int

const (
	refundUnknown refundState = iota
	refundUntouched
	refundLanded
)

// providerRefund reads the provider's view of the hold to tell whether a refund of amount
// already landed. An uncaptured hold counts as refunded once its authorization is cancelled.
func (s *service) providerRefund(ctx context.Context, hold *models.EscrowHold, amount decimal.Decimal) (gateway.Refund, refundState) {
	status, err := s.gateway.GetStatus(ctx, hold.ProviderHoldID)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "refund status check failed")
		return gateway.Refund{}, refundUnknown
	}
	if hold.CapturedAmount == nil {
		switch status.Status {
		case enums.ProviderHoldCancelled:
			return gateway.Refund{Amount: hold.GrossAmount, Voided: true}, refundLanded
		case enums.ProviderHoldFunded:
			return gateway.Refund{}, refundUntouched
		}
		return gateway.Refund{}, refundUnknown
	}
	if status.Status != enums.ProviderHoldReleased {
		return gateway.Refund{}, refundUnknown
	}
	switch {
	case status.Refunded.GreaterThanOrEqual(amount):
		return gateway.Refund{Amount: amount}, refundLanded
	case status.Refunded.IsZero():
		return gateway.Refund{}, refundUntouched
	}
	return gateway.Refund{}, refundUnknown
}
