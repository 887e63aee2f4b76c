package entitysync

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/influencehub-backend/pkg/db/models"
	"github.com/angelmondragon/influencehub-backend/pkg/enums"
)

// Repository reads the campaign and application rows the escrow flow depends on.
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

// FindCampaign returns gorm.ErrRecordNotFound when the campaign does not exist.
func (r *Repository) FindCampaign(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	var campaign models.Campaign
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&campaign).Error; err != nil {
		return nil, err
	}
	return &campaign, nil
}

// FindApplication returns the influencer's application to the campaign, or nil when none exists.
func (r *Repository) FindApplication(ctx context.Context, campaignID, influencerID uuid.UUID) (*models.Application, error) {
	var application models.Application
	err := r.db.WithContext(ctx).
		Where("campaign_id = ? AND influencer_id = ?", campaignID, influencerID).
		Order("created_at DESC").
		First(&application).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &application, nil
}

func (r *Repository) FindApplicationByID(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	var application models.Application
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&application).Error; err != nil {
		return nil, err
	}
	return &application, nil
}

// FindTransfer returns the transfer recorded for a released hold, or nil.
func (r *Repository) FindTransfer(ctx context.Context, escrowID uuid.UUID) (*models.TransferRecord, error) {
	var record models.TransferRecord
	err := r.db.WithContext(ctx).Where("escrow_id = ?", escrowID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// IsPayable reports whether an application can receive a release. A completed application
// has already been paid by an earlier release.
func IsPayable(application *models.Application) bool {
	if application == nil {
		return false
	}
	return application.Status == enums.ApplicationStatusAccepted
}
