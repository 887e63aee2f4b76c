package disputes

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/influencehub-backend/pkg/db/models"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, record *models.DisputeRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *Repository) ListByEscrow(ctx context.Context, escrowID uuid.UUID) ([]models.DisputeRecord, error) {
	var rows []models.DisputeRecord
	err := r.db.WithContext(ctx).
		Where("escrow_id = ?", escrowID).
		Order("reported_at ASC").
		Find(&rows).Error
	return rows, err
}
