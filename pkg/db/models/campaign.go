package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/influencehub-backend/pkg/enums"
)

// Campaign is the slice of the campaign row the escrow flow reads and writes.
type Campaign struct {
	ID            uuid.UUID                   `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BrandID       uuid.UUID                   `gorm:"column:brand_id;type:uuid;not null"`
	Title         string                      `gorm:"column:title;not null"`
	Budget        decimal.Decimal             `gorm:"column:budget;type:numeric(14,2);not null"`
	Currency      enums.Currency              `gorm:"column:currency;not null;default:'USD'"`
	Status        enums.CampaignStatus        `gorm:"column:status;not null;default:'draft'"`
	PaymentStatus enums.CampaignPaymentStatus `gorm:"column:payment_status;not null;default:'pending'"`
	EscrowID      *uuid.UUID                  `gorm:"column:escrow_id;type:uuid"`
	FundedAt      *time.Time                  `gorm:"column:funded_at"`
	RefundedAt    *time.Time                  `gorm:"column:refunded_at"`
	CreatedAt     time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}
