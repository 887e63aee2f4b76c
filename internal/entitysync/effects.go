// Package entitysync is the single writer of escrow-driven fields on campaigns and
// applications. Effects are applied inside the caller's transaction and are safe to replay.
package entitysync

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/influencehub-backend/pkg/db/models"
)

// EffectKind names one field update produced by an escrow transition.
type EffectKind string

const (
	// EffectLinkEscrow points the campaign at a new hold, compare-and-set on the prior value.
	EffectLinkEscrow EffectKind = "link_escrow"
	// EffectCampaignFunded marks the campaign funded and active.
	EffectCampaignFunded EffectKind = "campaign_funded"
	// EffectCampaignReleased marks the campaign's payment released.
	EffectCampaignReleased EffectKind = "campaign_released"
	// EffectCampaignRefunded cancels the campaign and marks its payment refunded.
	EffectCampaignRefunded EffectKind = "campaign_refunded"
	// EffectApplicationPaid completes the application with the payee's net amount.
	EffectApplicationPaid EffectKind = "application_paid"
	// EffectRecordTransfer appends the payout instruction for a release.
	EffectRecordTransfer EffectKind = "record_transfer"
)

// Effect is an immutable description of one update. Only the fields relevant to Kind are read.
type Effect struct {
	Kind       EffectKind
	CampaignID uuid.UUID
	EscrowID   uuid.UUID
	// PreviousEscrowID is the campaign's escrow id observed before linking a new hold.
	PreviousEscrowID *uuid.UUID
	ApplicationID    uuid.UUID
	Amount           decimal.Decimal
	At               time.Time
	Transfer         *models.TransferRecord
}

func LinkEscrow(campaignID, escrowID uuid.UUID, previous *uuid.UUID) Effect {
	return Effect{Kind: EffectLinkEscrow, CampaignID: campaignID, EscrowID: escrowID, PreviousEscrowID: previous}
}

func CampaignFunded(campaignID, escrowID uuid.UUID, at time.Time) Effect {
	return Effect{Kind: EffectCampaignFunded, CampaignID: campaignID, EscrowID: escrowID, At: at}
}

func CampaignReleased(campaignID, escrowID uuid.UUID) Effect {
	return Effect{Kind: EffectCampaignReleased, CampaignID: campaignID, EscrowID: escrowID}
}

func CampaignRefunded(campaignID, escrowID uuid.UUID, at time.Time) Effect {
	return Effect{Kind: EffectCampaignRefunded, CampaignID: campaignID, EscrowID: escrowID, At: at}
}

func ApplicationPaid(applicationID uuid.UUID, net decimal.Decimal, at time.Time) Effect {
	return Effect{Kind: EffectApplicationPaid, ApplicationID: applicationID, Amount: net, At: at}
}

func RecordTransfer(record models.TransferRecord) Effect {
	return Effect{Kind: EffectRecordTransfer, CampaignID: record.CampaignID, EscrowID: record.EscrowID, Transfer: &record}
}
