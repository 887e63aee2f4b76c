package escrow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/influencehub-backend/internal/entitysync"
	"github.com/angelmondragon/influencehub-backend/internal/gateway"
	"github.com/angelmondragon/influencehub-backend/pkg/db/models"
	"github.com/angelmondragon/influencehub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/influencehub-backend/pkg/errors"
	"github.com/angelmondragon/influencehub-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/influencehub-backend/pkg/tracing"
)

var errReplay = errors.New("escrow already released")

func (s *service) ReleaseFunds(ctx context.Context, actor Actor, input ReleaseInput) (res *Result, err error) {
	ctx = s.begin(ctx, opRelease, input.EscrowID, uuid.Nil)
	ctx, span := tracing.StartSpan(ctx, "escrow."+opRelease, tracing.EscrowID(input.EscrowID.String()), tracing.Operation(opRelease))
	defer func() {
		tracing.End(span, err)
		s.finish(opRelease, res, err)
	}()

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if input.InfluencerID == uuid.Nil {
		return failure(enums.ErrorKindValidation, "influencer id required"), nil
	}
	if input.Amount.IsNegative() {
		return failure(enums.ErrorKindValidation, "release amount must not be negative"), nil
	}
	hold, res, err := s.loadHold(ctx, input.EscrowID)
	if hold == nil {
		return res, err
	}
	ctx = s.begin(ctx, opRelease, hold.ID, hold.CampaignID)
	if !canManage(actor, hold) {
		return failureFor(hold, enums.ErrorKindValidation, "escrow is not owned by the caller"), nil
	}
	if hold.Status == enums.EscrowStatusReleased {
		return s.replayRelease(ctx, hold, input.InfluencerID)
	}
	if stateErr := Allowed(hold.Status, EventRelease, actor.Role); stateErr != nil {
		return stateFailure(hold, stateErr), nil
	}

	application, err := s.entities.FindApplication(ctx, hold.CampaignID, input.InfluencerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load application")
	}
	if !entitysync.IsPayable(application) {
		return failureFor(hold, enums.ErrorKindValidation, "influencer has no accepted application for this campaign"), nil
	}

	amount := input.Amount
	if amount.IsZero() {
		amount = hold.GrossAmount
	}
	if amount.GreaterThan(hold.GrossAmount) {
		return failureFor(hold, enums.ErrorKindValidation, "release amount exceeds the escrow amount"), nil
	}
	if precisionErr := checkPrecision(amount, hold.Currency); precisionErr != nil {
		return failureFor(hold, enums.ErrorKindValidation, precisionErr.Error()), nil
	}

	captured, res, err := s.ensureCaptured(ctx, hold, amount)
	if errors.Is(err, errReplay) {
		return s.replayRelease(ctx, hold, input.InfluencerID)
	}
	if res != nil || err != nil {
		return res, err
	}
	span.SetAttributes(tracing.Amount(captured.StringFixed(hold.Currency.MinorUnits())))

	breakdown, err := s.fees.Calculate(captured, hold.Currency)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "calculate fees")
	}

	now := s.now()
	reason := strings.TrimSpace(input.Reason)
	var released Transition
	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		current, err := s.repo.WithTx(tx).FindByID(ctx, hold.ID)
		if err != nil {
			return err
		}
		if current.Status == enums.EscrowStatusReleased {
			return errReplay
		}
		t, err := Plan(*current, Event{
			Kind:        EventRelease,
			Role:        actor.Role,
			At:          now,
			Breakdown:   breakdown,
			Application: application,
			TransferID:  uuid.New(),
			Reason:      reason,
		})
		if err != nil {
			return err
		}
		if err := s.commit(ctx, tx, current, t); err != nil {
			return err
		}
		released = t
		return s.outbox.EmitIfNotExists(ctx, tx, s.event(t, actor, now, payloads.EscrowReleasedEvent{
			EscrowID:         t.Hold.ID,
			CampaignID:       t.Hold.CampaignID,
			ApplicationID:    application.ID,
			InfluencerID:     application.InfluencerID,
			TransferRecordID: t.Transfer.ID,
			GrossAmount:      t.Transfer.GrossAmount.StringFixed(t.Hold.Currency.MinorUnits()),
			PlatformFee:      t.Transfer.PlatformFee.StringFixed(t.Hold.Currency.MinorUnits()),
			ProviderFee:      t.Transfer.ProviderFee.StringFixed(t.Hold.Currency.MinorUnits()),
			NetPayeeAmount:   t.Transfer.Amount.StringFixed(t.Hold.Currency.MinorUnits()),
			Currency:         t.Hold.Currency,
			ReleasedAt:       now,
		}))
	})
	if txErr != nil {
		if errors.Is(txErr, errReplay) {
			return s.replayRelease(ctx, hold, input.InfluencerID)
		}
		if IsStateError(txErr) {
			return s.unrecorded(ctx, hold, map[string]any{"captured_amount": captured.String()},
				"funds captured but the escrow changed before the release was recorded", txErr), nil
		}
		s.logg.Error(s.logg.WithFields(ctx, map[string]any{
			"provider_hold_id": hold.ProviderHoldID,
			"captured_amount":  captured.String(),
			"money_ambiguous":  true,
		}), "funds captured but release was not recorded", txErr)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "persist release")
	}

	s.logg.Info(ctx, "escrow released")
	res = holdResult(released.Hold)
	view := breakdown.View()
	res.Fees = &view
	res.Transfer = transferView(*released.Transfer)
	return res, nil
}

// ensureCaptured claims the hold for capture, settles it at the provider once and records the
// captured amount. A hold whose capture was already recorded is never captured again.
func (s *service) ensureCaptured(ctx context.Context, hold *models.EscrowHold, amount decimal.Decimal) (decimal.Decimal, *Result, error) {
	current, locked, err := s.claimSettlement(ctx, hold, enums.SettlementCapture)
	if err != nil {
		return decimal.Zero, nil, err
	}
	if locked != nil {
		if current.Status == enums.EscrowStatusReleased {
			return decimal.Zero, nil, errReplay
		}
		return decimal.Zero, locked, nil
	}
	if current.CapturedAt != nil && current.CapturedAmount != nil {
		return *current.CapturedAmount, nil, nil
	}

	gwCtx, cancel := s.gatewayContext(ctx)
	defer cancel()
	capture, gwErr := s.gateway.CaptureHold(gwCtx, current.ProviderHoldID, amount)
	captured := capture.CapturedAmount
	if gwErr != nil {
		kind, _ := gateway.KindOf(gwErr)
		if kind != enums.ErrorKindInvalidState && !gateway.IsAmbiguous(gwErr) {
			s.releaseSettlement(ctx, current, enums.SettlementCapture)
			return decimal.Zero, gatewayFailure(current, gwErr), nil
		}
		// the capture may have landed on an earlier attempt or despite the error
		status, statusErr := s.gateway.GetStatus(gwCtx, current.ProviderHoldID)
		switch {
		case statusErr == nil && status.Status == enums.ProviderHoldReleased && status.Received.IsPositive():
			captured = status.Received
			s.logg.Info(ctx, "capture confirmed by provider status")
		case statusErr == nil && !gateway.IsAmbiguous(gwErr) && status.Received.IsZero():
			s.releaseSettlement(ctx, current, enums.SettlementCapture)
			s.logg.Warn(s.logg.WithField(ctx, "error", gwErr.Error()), "capture rejected; nothing settled at provider")
			return decimal.Zero, gatewayFailure(current, gwErr), nil
		default:
			// an ambiguous capture keeps the claim so only a retried release can settle the hold
			s.logg.Warn(s.logg.WithField(ctx, "error", gwErr.Error()), "capture failed")
			return decimal.Zero, gatewayFailure(current, gwErr), nil
		}
	}

	now := s.now()
	ok, err := s.repo.MarkCaptured(ctx, current.ID, captured, now)
	if err != nil {
		s.logg.Error(s.logg.WithFields(ctx, map[string]any{
			"provider_hold_id": current.ProviderHoldID,
			"captured_amount":  captured.String(),
			"money_ambiguous":  true,
		}), "capture succeeded but was not recorded", err)
		return decimal.Zero, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record capture")
	}
	if !ok {
		latest, err := s.repo.FindByID(ctx, current.ID)
		if err != nil {
			return decimal.Zero, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload escrow")
		}
		if latest.CapturedAmount == nil {
			return decimal.Zero, s.unrecorded(ctx, latest, map[string]any{"captured_amount": captured.String()},
				"capture succeeded but the escrow changed before it was recorded",
				fmt.Errorf("escrow moved to %s during capture", latest.Status)), nil
		}
		captured = *latest.CapturedAmount
	}
	return captured, nil, nil
}

// replayRelease rebuilds the original release result from the stored transfer.
func (s *service) replayRelease(ctx context.Context, hold *models.EscrowHold, influencerID uuid.UUID) (*Result, error) {
	current, err := s.repo.FindByID(ctx, hold.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload escrow")
	}
	transfer, err := s.entities.FindTransfer(ctx, hold.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transfer")
	}
	if transfer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "released escrow has no transfer record")
	}
	if transfer.InfluencerID != influencerID {
		return failureFor(current, enums.ErrorKindInvalidState, "escrow was already released to another influencer"), nil
	}
	s.logg.Info(ctx, "release replayed")
	res := holdResult(*current)
	breakdown := transferBreakdown(*transfer)
	res.Fees = &breakdown
	res.Transfer = transferView(*transfer)
	return res, nil
}
