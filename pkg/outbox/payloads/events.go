package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/influencehub-backend/pkg/enums"
)

// EscrowCreatedEvent is emitted when a hold is authorized and linked to its campaign.
type EscrowCreatedEvent struct {
	EscrowID       uuid.UUID      `json:"escrow_id"`
	CampaignID     uuid.UUID      `json:"campaign_id"`
	BrandID        uuid.UUID      `json:"brand_id"`
	ProviderHoldID string         `json:"provider_hold_id"`
	Amount         string         `json:"amount"`
	Currency       enums.Currency `json:"currency"`
}

// EscrowFundedEvent is emitted when the brand's payment method is confirmed on the hold.
type EscrowFundedEvent struct {
	EscrowID   uuid.UUID      `json:"escrow_id"`
	CampaignID uuid.UUID      `json:"campaign_id"`
	BrandID    uuid.UUID      `json:"brand_id"`
	Amount     string         `json:"amount"`
	Currency   enums.Currency `json:"currency"`
	FundedAt   time.Time      `json:"funded_at"`
}

// EscrowReleasedEvent carries the payout instruction downstream settlement consumes.
type EscrowReleasedEvent struct {
	EscrowID         uuid.UUID      `json:"escrow_id"`
	CampaignID       uuid.UUID      `json:"campaign_id"`
	ApplicationID    uuid.UUID      `json:"application_id"`
	InfluencerID     uuid.UUID      `json:"influencer_id"`
	TransferRecordID uuid.UUID      `json:"transfer_record_id"`
	GrossAmount      string         `json:"gross_amount"`
	PlatformFee      string         `json:"platform_fee"`
	ProviderFee      string         `json:"provider_fee"`
	NetPayeeAmount   string         `json:"net_payee_amount"`
	Currency         enums.Currency `json:"currency"`
	ReleasedAt       time.Time      `json:"released_at"`
}

// EscrowRefundedEvent is emitted when funds go back to the brand.
type EscrowRefundedEvent struct {
	EscrowID         uuid.UUID      `json:"escrow_id"`
	CampaignID       uuid.UUID      `json:"campaign_id"`
	BrandID          uuid.UUID      `json:"brand_id"`
	Amount           string         `json:"amount"`
	Currency         enums.Currency `json:"currency"`
	ProviderRefundID string         `json:"provider_refund_id,omitempty"`
	Voided           bool           `json:"voided"`
	Reason           string         `json:"reason,omitempty"`
	RefundedAt       time.Time      `json:"refunded_at"`
}

// EscrowCancelledEvent is emitted when an unfunded hold is cancelled.
type EscrowCancelledEvent struct {
	EscrowID    uuid.UUID `json:"escrow_id"`
	CampaignID  uuid.UUID `json:"campaign_id"`
	BrandID     uuid.UUID `json:"brand_id"`
	Reason      string    `json:"reason,omitempty"`
	CancelledAt time.Time `json:"cancelled_at"`
}

// EscrowDisputedEvent notifies reviewers that a hold is frozen.
type EscrowDisputedEvent struct {
	EscrowID     uuid.UUID         `json:"escrow_id"`
	CampaignID   uuid.UUID         `json:"campaign_id"`
	DisputeID    uuid.UUID         `json:"dispute_id"`
	DisputeType  enums.DisputeType `json:"dispute_type"`
	ReportedBy   uuid.UUID         `json:"reported_by"`
	ReporterRole enums.UserRole    `json:"reporter_role"`
	ReportedAt   time.Time         `json:"reported_at"`
}
