package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/influencehub-backend/pkg/enums"
)

// Application links an influencer to a campaign; PaidAmount is written once on release.
type Application struct {
	ID           uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CampaignID   uuid.UUID               `gorm:"column:campaign_id;type:uuid;not null"`
	InfluencerID uuid.UUID               `gorm:"column:influencer_id;type:uuid;not null"`
	Status       enums.ApplicationStatus `gorm:"column:status;not null;default:'pending'"`
	PaidAmount   *decimal.Decimal        `gorm:"column:paid_amount;type:numeric(14,2)"`
	CompletedAt  *time.Time              `gorm:"column:completed_at"`
	CreatedAt    time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
