package escrow

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/influencehub-backend/pkg/db/models"
	"github.com/angelmondragon/influencehub-backend/pkg/enums"
	"github.com/angelmondragon/influencehub-backend/pkg/pagination"
)

var settleableStatuses = []enums.EscrowStatus{enums.EscrowStatusFunded, enums.EscrowStatusDisputed}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an escrow repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindByID returns gorm.ErrRecordNotFound when the hold does not exist.
func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.EscrowHold, error) {
	var hold models.EscrowHold
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&hold).Error; err != nil {
		return nil, err
	}
	return &hold, nil
}

// FindLiveByCampaign returns the campaign's live hold, or nil when none exists.
func (r *repository) FindLiveByCampaign(ctx context.Context, campaignID uuid.UUID) (*models.EscrowHold, error) {
	var hold models.EscrowHold
	err := r.db.WithContext(ctx).
		Where("campaign_id = ? AND status IN ?", campaignID, enums.LiveEscrowStatuses).
		First(&hold).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &hold, nil
}

func (r *repository) Create(ctx context.Context, hold *models.EscrowHold) error {
	if hold.ID == uuid.Nil {
		hold.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(hold).Error
}

// UpdateStatus writes the transition computed from `from` only if the row still carries the
// status it was planned against. It reports false when another writer got there first.
func (r *repository) UpdateStatus(ctx context.Context, next models.EscrowHold, from models.EscrowHold) (bool, error) {
	updates := map[string]any{
		"status":             next.Status,
		"funded_at":          next.FundedAt,
		"released_at":        next.ReleasedAt,
		"refunded_at":        next.RefundedAt,
		"refunded_amount":    next.RefundedAmount,
		"provider_refund_id": next.ProviderRefundID,
		"updated_at":         next.UpdatedAt,
	}
	q := r.db.WithContext(ctx).
		Model(&models.EscrowHold{}).
		Where("id = ? AND status = ?", from.ID, from.Status)
	if from.Settlement == nil {
		q = q.Where("settlement IS NULL")
	} else {
		q = q.Where("settlement = ?", *from.Settlement)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ClaimSettlement reserves a live funded hold for one kind of money movement. A hold that
// already carries the same claim stays claimed so an interrupted attempt can resume.
func (r *repository) ClaimSettlement(ctx context.Context, id uuid.UUID, kind enums.SettlementKind, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.EscrowHold{}).
		Where("id = ? AND status IN ? AND (settlement IS NULL OR settlement = ?)", id, settleableStatuses, kind).
		Updates(map[string]any{
			"settlement": kind,
			"updated_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ReleaseSettlement drops a claim once the provider has confirmed no money moved.
func (r *repository) ReleaseSettlement(ctx context.Context, id uuid.UUID, kind enums.SettlementKind) error {
	return r.db.WithContext(ctx).
		Model(&models.EscrowHold{}).
		Where("id = ? AND status IN ? AND settlement = ?", id, settleableStatuses, kind).
		Updates(map[string]any{
			"settlement": nil,
			"updated_at": time.Now().UTC(),
		}).Error
}

// MarkCaptured records the settled amount once. Later calls leave the first capture intact.
func (r *repository) MarkCaptured(ctx context.Context, id uuid.UUID, amount decimal.Decimal, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.EscrowHold{}).
		Where("id = ? AND captured_at IS NULL AND status IN ? AND (settlement IS NULL OR settlement = ?)",
			id, settleableStatuses, enums.SettlementCapture).
		Updates(map[string]any{
			"captured_amount": amount,
			"captured_at":     at,
			"updated_at":      at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListLive returns one page of live holds created before the cutoff, oldest first.
func (r *repository) ListLive(ctx context.Context, createdBefore time.Time, after *pagination.Cursor, limit int) ([]models.EscrowHold, error) {
	var holds []models.EscrowHold
	err := r.db.WithContext(ctx).
		Scopes(pagination.After(after)).
		Where("status IN ? AND created_at < ?", enums.LiveEscrowStatuses, createdBefore).
		Order("created_at ASC, id ASC").
		Limit(pagination.NormalizeLimit(limit)).
		Find(&holds).Error
	return holds, err
}
