package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/influencehub-backend/pkg/enums"
)

// EscrowHold is the local record of a provider authorization hold reserved for a campaign.
// Settlement is set once a capture or refund has been claimed and is never cleared after the
// provider may have moved money.
type EscrowHold struct {
	ID               uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProviderHoldID   string                `gorm:"column:provider_hold_id;not null;uniqueIndex"`
	CampaignID       uuid.UUID             `gorm:"column:campaign_id;type:uuid;not null"`
	BrandID          uuid.UUID             `gorm:"column:brand_id;type:uuid;not null"`
	GrossAmount      decimal.Decimal       `gorm:"column:gross_amount;type:numeric(14,2);not null"`
	Currency         enums.Currency        `gorm:"column:currency;not null"`
	Status           enums.EscrowStatus    `gorm:"column:status;not null"`
	Settlement       *enums.SettlementKind `gorm:"column:settlement"`
	CapturedAmount   *decimal.Decimal      `gorm:"column:captured_amount;type:numeric(14,2)"`
	RefundedAmount   *decimal.Decimal      `gorm:"column:refunded_amount;type:numeric(14,2)"`
	ProviderRefundID *string               `gorm:"column:provider_refund_id"`
	Metadata         json.RawMessage       `gorm:"column:metadata;type:jsonb"`
	FundedAt         *time.Time            `gorm:"column:funded_at"`
	CapturedAt       *time.Time            `gorm:"column:captured_at"`
	ReleasedAt       *time.Time            `gorm:"column:released_at"`
	RefundedAt       *time.Time            `gorm:"column:refunded_at"`
	CreatedAt        time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// MetadataMap decodes the audit metadata persisted alongside the hold.
func (h EscrowHold) MetadataMap() map[string]string {
	out := map[string]string{}
	if len(h.Metadata) == 0 {
		return out
	}
	_ = json.Unmarshal(h.Metadata, &out)
	return out
}

// SettlementKind returns the claimed settlement, or "" when the hold is unclaimed.
func (h EscrowHold) SettlementKind() enums.SettlementKind {
	if h.Settlement == nil {
		return ""
	}
	return *h.Settlement
}
