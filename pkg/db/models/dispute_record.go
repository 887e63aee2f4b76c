package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/influencehub-backend/pkg/enums"
)

// DisputeRecord freezes a funded hold pending manual review.
type DisputeRecord struct {
	ID           uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EscrowID     uuid.UUID           `gorm:"column:escrow_id;type:uuid;not null"`
	DisputeType  enums.DisputeType   `gorm:"column:dispute_type;not null"`
	Description  string              `gorm:"column:description"`
	Evidence     json.RawMessage     `gorm:"column:evidence;type:jsonb"`
	ReportedBy   uuid.UUID           `gorm:"column:reported_by;type:uuid;not null"`
	ReporterRole enums.UserRole      `gorm:"column:reporter_role;not null"`
	ReportedAt   time.Time           `gorm:"column:reported_at;not null"`
	Status       enums.DisputeStatus `gorm:"column:status;not null"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime"`
}
