package escrow

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/influencehub-backend/internal/entitysync"
	"github.com/angelmondragon/influencehub-backend/internal/fees"
	"github.com/angelmondragon/influencehub-backend/pkg/db/models"
	"github.com/angelmondragon/influencehub-backend/pkg/enums"
)

func holdIn(status enums.EscrowStatus) models.EscrowHold {
	return models.EscrowHold{
		ID:             uuid.New(),
		ProviderHoldID: "pi_test",
		CampaignID:     uuid.New(),
		BrandID:        uuid.New(),
		GrossAmount:    decimal.NewFromInt(1000),
		Currency:       enums.CurrencyUSD,
		Status:         status,
	}
}

func TestAllowedTransitions(t *testing.T) {
	cases := []struct {
		status enums.EscrowStatus
		kind   EventKind
		role   enums.UserRole
		ok     bool
	}{
		{enums.EscrowStatusPendingPayment, EventFund, enums.UserRoleBrand, true},
		{enums.EscrowStatusPendingPayment, EventCancel, enums.UserRoleBrand, true},
		{enums.EscrowStatusPendingPayment, EventRelease, enums.UserRoleBrand, false},
		{enums.EscrowStatusPendingPayment, EventRefund, enums.UserRoleAdmin, false},
		{enums.EscrowStatusPendingPayment, EventDispute, enums.UserRoleInfluencer, false},
		{enums.EscrowStatusFunded, EventFund, enums.UserRoleBrand, false},
		{enums.EscrowStatusFunded, EventRelease, enums.UserRoleBrand, true},
		{enums.EscrowStatusFunded, EventRefund, enums.UserRoleBrand, true},
		{enums.EscrowStatusFunded, EventDispute, enums.UserRoleInfluencer, true},
		{enums.EscrowStatusFunded, EventCancel, enums.UserRoleBrand, false},
		{enums.EscrowStatusDisputed, EventRelease, enums.UserRoleBrand, false},
		{enums.EscrowStatusDisputed, EventRefund, enums.UserRoleBrand, false},
		{enums.EscrowStatusDisputed, EventRelease, enums.UserRoleAdmin, true},
		{enums.EscrowStatusDisputed, EventRefund, enums.UserRoleAdmin, true},
		{enums.EscrowStatusDisputed, EventDispute, enums.UserRoleBrand, false},
		{enums.EscrowStatusReleased, EventRefund, enums.UserRoleAdmin, false},
		{enums.EscrowStatusRefunded, EventDispute, enums.UserRoleBrand, false},
		{enums.EscrowStatusCancelled, EventFund, enums.UserRoleBrand, false},
		{enums.EscrowStatusFunded, EventKind("bogus"), enums.UserRoleAdmin, false},
	}
	for _, tc := range cases {
		err := Allowed(tc.status, tc.kind, tc.role)
		if tc.ok {
			assert.NoError(t, err, "%s %s as %s", tc.kind, tc.status, tc.role)
			continue
		}
		assert.True(t, IsStateError(err), "%s %s as %s", tc.kind, tc.status, tc.role)
	}
}

func TestPlanDoesNotMutateInput(t *testing.T) {
	hold := holdIn(enums.EscrowStatusPendingPayment)
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	tr, err := Plan(hold, Event{Kind: EventFund, Role: enums.UserRoleBrand, At: at})
	require.NoError(t, err)

	assert.Equal(t, enums.EscrowStatusPendingPayment, hold.Status)
	assert.Nil(t, hold.FundedAt)
	assert.Equal(t, enums.EscrowStatusPendingPayment, tr.From)
	assert.Equal(t, enums.EscrowStatusFunded, tr.To)
	require.NotNil(t, tr.Hold.FundedAt)
	assert.True(t, tr.Hold.FundedAt.Equal(at))
	assert.Equal(t, enums.EventEscrowFunded, tr.Event)
	require.Len(t, tr.Effects, 1)
	assert.Equal(t, entitysync.EffectCampaignFunded, tr.Effects[0].Kind)
}

func TestPlanRelease(t *testing.T) {
	hold := holdIn(enums.EscrowStatusFunded)
	captured := decimal.NewFromInt(1000)
	hold.CapturedAmount = &captured

	calc, err := fees.NewCalculator(defaultSchedule())
	require.NoError(t, err)
	breakdown, err := calc.Calculate(captured, enums.CurrencyUSD)
	require.NoError(t, err)

	application := &models.Application{ID: uuid.New(), CampaignID: hold.CampaignID, InfluencerID: uuid.New(), Status: enums.ApplicationStatusAccepted}
	transferID := uuid.New()
	tr, err := Plan(hold, Event{
		Kind:        EventRelease,
		Role:        enums.UserRoleBrand,
		At:          time.Now().UTC(),
		Breakdown:   breakdown,
		Application: application,
		TransferID:  transferID,
		Reason:      "content delivered",
	})
	require.NoError(t, err)

	assert.Equal(t, enums.EscrowStatusReleased, tr.To)
	require.NotNil(t, tr.Transfer)
	assert.Equal(t, transferID, tr.Transfer.ID)
	assert.True(t, tr.Transfer.Amount.Equal(decimal.RequireFromString("870.70")))
	assert.Equal(t, enums.TransferStatusPendingBankTransfer, tr.Transfer.Status)

	kinds := make([]entitysync.EffectKind, 0, len(tr.Effects))
	for _, effect := range tr.Effects {
		kinds = append(kinds, effect.Kind)
	}
	assert.Equal(t, []entitysync.EffectKind{
		entitysync.EffectRecordTransfer,
		entitysync.EffectApplicationPaid,
		entitysync.EffectCampaignReleased,
	}, kinds)
}

func TestPlanReleaseRequiresCapture(t *testing.T) {
	hold := holdIn(enums.EscrowStatusFunded)
	_, err := Plan(hold, Event{Kind: EventRelease, Role: enums.UserRoleBrand, TransferID: uuid.New(), Application: &models.Application{}})
	require.Error(t, err)
	assert.False(t, IsStateError(err))
}

func TestPlanRefundRecordsAmount(t *testing.T) {
	hold := holdIn(enums.EscrowStatusDisputed)
	tr, err := Plan(hold, Event{Kind: EventRefund, Role: enums.UserRoleAdmin, RefundAmount: decimal.NewFromInt(400), RefundID: "re_1"})
	require.NoError(t, err)
	assert.Equal(t, enums.EscrowStatusRefunded, tr.To)
	require.NotNil(t, tr.Hold.RefundedAmount)
	assert.True(t, tr.Hold.RefundedAmount.Equal(decimal.NewFromInt(400)))
	require.NotNil(t, tr.Hold.ProviderRefundID)
	assert.Equal(t, "re_1", *tr.Hold.ProviderRefundID)

	_, err = Plan(hold, Event{Kind: EventRefund, Role: enums.UserRoleAdmin})
	require.Error(t, err)
}

func TestPlanHonorsSettlementClaim(t *testing.T) {
	claimed := func(kind enums.SettlementKind) models.EscrowHold {
		hold := holdIn(enums.EscrowStatusFunded)
		hold.Settlement = &kind
		return hold
	}

	_, err := Plan(claimed(enums.SettlementRefund), Event{Kind: EventDispute, Role: enums.UserRoleBrand, Reason: "late"})
	assert.True(t, IsStateError(err))
	_, err = Plan(claimed(enums.SettlementCapture), Event{Kind: EventDispute, Role: enums.UserRoleInfluencer, Reason: "late"})
	assert.True(t, IsStateError(err))

	_, err = Plan(claimed(enums.SettlementCapture), Event{Kind: EventRefund, Role: enums.UserRoleAdmin, RefundAmount: decimal.NewFromInt(1)})
	assert.True(t, IsStateError(err))

	captured := decimal.NewFromInt(1000)
	hold := claimed(enums.SettlementRefund)
	hold.CapturedAmount = &captured
	_, err = Plan(hold, Event{Kind: EventRelease, Role: enums.UserRoleAdmin, TransferID: uuid.New(), Application: &models.Application{}})
	assert.True(t, IsStateError(err))

	tr, err := Plan(claimed(enums.SettlementRefund), Event{Kind: EventRefund, Role: enums.UserRoleBrand, RefundAmount: decimal.NewFromInt(1000)})
	require.NoError(t, err)
	assert.Equal(t, enums.SettlementRefund, tr.Hold.SettlementKind())
}

func TestPlanCreateLinksCampaign(t *testing.T) {
	hold := holdIn("")
	previous := uuid.New()
	tr := PlanCreate(hold, &previous)
	assert.Equal(t, enums.EscrowStatusPendingPayment, tr.Hold.Status)
	assert.Equal(t, enums.EventEscrowCreated, tr.Event)
	require.Len(t, tr.Effects, 1)
	assert.Equal(t, entitysync.EffectLinkEscrow, tr.Effects[0].Kind)
	require.NotNil(t, tr.Effects[0].PreviousEscrowID)
	assert.Equal(t, previous, *tr.Effects[0].PreviousEscrowID)
}

func TestTerminalStatesRejectEveryEvent(t *testing.T) {
	for _, status := range []enums.EscrowStatus{enums.EscrowStatusReleased, enums.EscrowStatusRefunded, enums.EscrowStatusCancelled} {
		for _, kind := range []EventKind{EventFund, EventRelease, EventRefund, EventCancel, EventDispute} {
			_, err := Plan(holdIn(status), Event{Kind: kind, Role: enums.UserRoleAdmin, RefundAmount: decimal.NewFromInt(1)})
			assert.True(t, IsStateError(err), "%s from %s", kind, status)
		}
	}
}

func defaultSchedule() fees.Schedule {
	return fees.Schedule{
		PlatformCommissionRate: decimal.RequireFromString("0.10"),
		ProviderPercentRate:    decimal.RequireFromString("0.029"),
		ProviderFixedFee:       decimal.RequireFromString("0.30"),
	}
}
