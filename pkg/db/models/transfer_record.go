package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/influencehub-backend/pkg/enums"
)

// TransferRecord is the append-only payout instruction produced by a release.
type TransferRecord struct {
	ID            uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EscrowID      uuid.UUID            `gorm:"column:escrow_id;type:uuid;not null;uniqueIndex"`
	CampaignID    uuid.UUID            `gorm:"column:campaign_id;type:uuid;not null"`
	ApplicationID uuid.UUID            `gorm:"column:application_id;type:uuid;not null"`
	InfluencerID  uuid.UUID            `gorm:"column:influencer_id;type:uuid;not null"`
	GrossAmount   decimal.Decimal      `gorm:"column:gross_amount;type:numeric(14,2);not null"`
	PlatformFee   decimal.Decimal      `gorm:"column:platform_fee;type:numeric(14,2);not null"`
	ProviderFee   decimal.Decimal      `gorm:"column:provider_fee;type:numeric(14,2);not null"`
	Amount        decimal.Decimal      `gorm:"column:amount;type:numeric(14,2);not null"`
	Currency      enums.Currency       `gorm:"column:currency;not null"`
	Reason        string               `gorm:"column:reason;not null"`
	Status        enums.TransferStatus `gorm:"column:status;not null"`
	CreatedAt     time.Time            `gorm:"column:created_at;autoCreateTime"`
}
