package escrow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/influencehub-backend/pkg/db/models"
	"github.com/angelmondragon/influencehub-backend/pkg/enums"
	"github.com/angelmondragon/influencehub-backend/pkg/outbox"
	"github.com/angelmondragon/influencehub-backend/pkg/pagination"
)

// Repository defines persistence operations for escrow_holds.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.EscrowHold, error)
	FindLiveByCampaign(ctx context.Context, campaignID uuid.UUID) (*models.EscrowHold, error)
	Create(ctx context.Context, hold *models.EscrowHold) error
	UpdateStatus(ctx context.Context, next models.EscrowHold, from models.EscrowHold) (bool, error)
	ClaimSettlement(ctx context.Context, id uuid.UUID, kind enums.SettlementKind, at time.Time) (bool, error)
	ReleaseSettlement(ctx context.Context, id uuid.UUID, kind enums.SettlementKind) error
	MarkCaptured(ctx context.Context, id uuid.UUID, amount decimal.Decimal, at time.Time) (bool, error)
	ListLive(ctx context.Context, createdBefore time.Time, after *pagination.Cursor, limit int) ([]models.EscrowHold, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}
