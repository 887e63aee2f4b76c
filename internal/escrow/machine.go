package escrow

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/influencehub-backend/internal/entitysync"
	"github.com/angelmondragon/influencehub-backend/internal/fees"
	"github.com/angelmondragon/influencehub-backend/pkg/db/models"
	"github.com/angelmondragon/influencehub-backend/pkg/enums"
)

// EventKind is a transition request against a hold.
type EventKind string

const (
	EventFund    EventKind = "fund"
	EventRelease EventKind = "release"
	EventRefund  EventKind = "refund"
	EventCancel  EventKind = "cancel"
	EventDispute EventKind = "dispute"
)

// Event carries everything a transition needs. Fields unrelated to Kind are ignored.
type Event struct {
	Kind EventKind
	Role enums.UserRole
	At   time.Time

	// release
	Breakdown   fees.Breakdown
	Application *models.Application
	TransferID  uuid.UUID
	Reason      string

	// refund
	RefundAmount decimal.Decimal
	RefundID     string
}

// Transition is the outcome of planning an event: the next hold record and the
// effects to apply alongside it. The input hold is never modified.
type Transition struct {
	From     enums.EscrowStatus
	To       enums.EscrowStatus
	Hold     models.EscrowHold
	Effects  []entitysync.Effect
	Event    enums.OutboxEventType
	Transfer *models.TransferRecord
}

// StateError reports an event that is not legal from the hold's current status.
type StateError struct {
	From   enums.EscrowStatus
	Kind   EventKind
	Reason string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s escrow in %s: %s", e.Kind, e.From, e.Reason)
}

// IsStateError reports whether err is a StateError.
func IsStateError(err error) bool {
	var stateErr *StateError
	return errors.As(err, &stateErr)
}

// Allowed checks an event against the lifecycle
//
//	pending_payment -> funded -> released
//	pending_payment -> cancelled
//	funded -> refunded
//	funded -> disputed -> released | refunded
//
// Resolving a disputed hold is reserved for admins.
func Allowed(status enums.EscrowStatus, kind EventKind, role enums.UserRole) error {
	deny := func(reason string) error {
		return &StateError{From: status, Kind: kind, Reason: reason}
	}
	if status.IsTerminal() {
		return deny("hold is closed")
	}

	switch kind {
	case EventFund, EventCancel:
		if status != enums.EscrowStatusPendingPayment {
			return deny("hold is not awaiting payment")
		}
	case EventRelease, EventRefund:
		switch status {
		case enums.EscrowStatusFunded:
		case enums.EscrowStatusDisputed:
			if role != enums.UserRoleAdmin {
				return deny("hold is frozen by a dispute")
			}
		default:
			return deny("hold is not funded")
		}
	case EventDispute:
		switch status {
		case enums.EscrowStatusFunded:
		case enums.EscrowStatusDisputed:
			return deny("hold is already disputed")
		default:
			return deny("hold is not funded")
		}
	default:
		return deny("unknown event")
	}
	return nil
}

// settlementConflict rejects events that would race a claimed capture or refund.
func settlementConflict(hold models.EscrowHold, kind EventKind) error {
	claimed := hold.SettlementKind()
	if claimed == "" {
		return nil
	}
	conflict := false
	switch kind {
	case EventDispute:
		conflict = true
	case EventRelease:
		conflict = claimed != enums.SettlementCapture
	case EventRefund:
		conflict = claimed != enums.SettlementRefund
	}
	if !conflict {
		return nil
	}
	return &StateError{From: hold.Status, Kind: kind, Reason: "hold is locked by an in-flight " + claimed.String()}
}

// PlanCreate describes a new pending hold and the campaign link it requires.
// previous is the campaign's escrow id as observed when the hold is inserted.
func PlanCreate(hold models.EscrowHold, previous *uuid.UUID) Transition {
	hold.Status = enums.EscrowStatusPendingPayment
	return Transition{
		To:      enums.EscrowStatusPendingPayment,
		Hold:    hold,
		Effects: []entitysync.Effect{entitysync.LinkEscrow(hold.CampaignID, hold.ID, previous)},
		Event:   enums.EventEscrowCreated,
	}
}

// Plan computes the transition for ev without side effects.
func Plan(hold models.EscrowHold, ev Event) (Transition, error) {
	if err := Allowed(hold.Status, ev.Kind, ev.Role); err != nil {
		return Transition{}, err
	}
	if err := settlementConflict(hold, ev.Kind); err != nil {
		return Transition{}, err
	}
	at := ev.At
	next := hold
	next.UpdatedAt = at
	t := Transition{From: hold.Status}

	switch ev.Kind {
	case EventFund:
		next.Status = enums.EscrowStatusFunded
		next.FundedAt = &at
		t.Effects = []entitysync.Effect{entitysync.CampaignFunded(hold.CampaignID, hold.ID, at)}
		t.Event = enums.EventEscrowFunded

	case EventRelease:
		if hold.CapturedAmount == nil {
			return Transition{}, errors.New("release planned before capture was recorded")
		}
		if !ev.Breakdown.GrossAmount.Equal(*hold.CapturedAmount) {
			return Transition{}, fmt.Errorf("fee breakdown gross %s does not match captured %s", ev.Breakdown.GrossAmount, hold.CapturedAmount)
		}
		if ev.Application == nil || ev.TransferID == uuid.Nil {
			return Transition{}, errors.New("release requires an application and a transfer id")
		}
		transfer := models.TransferRecord{
			ID:            ev.TransferID,
			EscrowID:      hold.ID,
			CampaignID:    hold.CampaignID,
			ApplicationID: ev.Application.ID,
			InfluencerID:  ev.Application.InfluencerID,
			GrossAmount:   ev.Breakdown.GrossAmount,
			PlatformFee:   ev.Breakdown.PlatformFee,
			ProviderFee:   ev.Breakdown.ProviderFee,
			Amount:        ev.Breakdown.NetPayeeAmount,
			Currency:      hold.Currency,
			Reason:        ev.Reason,
			Status:        enums.TransferStatusPendingBankTransfer,
			CreatedAt:     at,
		}
		next.Status = enums.EscrowStatusReleased
		next.ReleasedAt = &at
		t.Transfer = &transfer
		t.Effects = []entitysync.Effect{
			entitysync.RecordTransfer(transfer),
			entitysync.ApplicationPaid(ev.Application.ID, ev.Breakdown.NetPayeeAmount, at),
			entitysync.CampaignReleased(hold.CampaignID, hold.ID),
		}
		t.Event = enums.EventEscrowReleased

	case EventRefund:
		if !ev.RefundAmount.IsPositive() {
			return Transition{}, errors.New("refund amount must be positive")
		}
		amount := ev.RefundAmount
		next.Status = enums.EscrowStatusRefunded
		next.RefundedAmount = &amount
		next.RefundedAt = &at
		if ev.RefundID != "" {
			refundID := ev.RefundID
			next.ProviderRefundID = &refundID
		}
		t.Effects = []entitysync.Effect{entitysync.CampaignRefunded(hold.CampaignID, hold.ID, at)}
		t.Event = enums.EventEscrowRefunded

	case EventCancel:
		next.Status = enums.EscrowStatusCancelled
		t.Effects = []entitysync.Effect{entitysync.CampaignRefunded(hold.CampaignID, hold.ID, at)}
		t.Event = enums.EventEscrowCancelled

	case EventDispute:
		next.Status = enums.EscrowStatusDisputed
		t.Event = enums.EventEscrowDisputed
	}

	t.To = next.Status
	t.Hold = next
	return t, nil
}
