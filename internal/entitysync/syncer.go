package entitysync

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/influencehub-backend/pkg/db/models"
	"github.com/angelmondragon/influencehub-backend/pkg/enums"
)

// ErrEscrowLinkConflict is returned when another hold was linked to the campaign first.
var ErrEscrowLinkConflict = errors.New("campaign escrow changed concurrently")

// Syncer applies effects. It holds no state and is safe for concurrent use.
type Syncer struct{}

func NewSyncer() *Syncer {
	return &Syncer{}
}

// Apply runs every effect in order inside tx. Effects already applied are skipped.
func (s *Syncer) Apply(ctx context.Context, tx *gorm.DB, effects []Effect) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	for _, effect := range effects {
		if err := apply(tx.WithContext(ctx), effect); err != nil {
			return fmt.Errorf("%s: %w", effect.Kind, err)
		}
	}
	return nil
}

func apply(db *gorm.DB, effect Effect) error {
	switch effect.Kind {
	case EffectLinkEscrow:
		return linkEscrow(db, effect)

	case EffectCampaignFunded:
		return db.Model(&models.Campaign{}).
			Where("id = ? AND payment_status <> ?", effect.CampaignID, enums.CampaignPaymentFunded).
			Updates(map[string]any{
				"payment_status": enums.CampaignPaymentFunded,
				"status":         enums.CampaignStatusActive,
				"funded_at":      effect.At,
			}).Error

	case EffectCampaignReleased:
		return db.Model(&models.Campaign{}).
			Where("id = ? AND payment_status <> ?", effect.CampaignID, enums.CampaignPaymentReleased).
			Update("payment_status", enums.CampaignPaymentReleased).Error

	case EffectCampaignRefunded:
		return db.Model(&models.Campaign{}).
			Where("id = ? AND payment_status <> ?", effect.CampaignID, enums.CampaignPaymentRefunded).
			Updates(map[string]any{
				"payment_status": enums.CampaignPaymentRefunded,
				"status":         enums.CampaignStatusCancelled,
				"refunded_at":    effect.At,
			}).Error

	case EffectApplicationPaid:
		return db.Model(&models.Application{}).
			Where("id = ? AND paid_amount IS NULL", effect.ApplicationID).
			Updates(map[string]any{
				"status":       enums.ApplicationStatusCompleted,
				"paid_amount":  effect.Amount,
				"completed_at": effect.At,
			}).Error

	case EffectRecordTransfer:
		return recordTransfer(db, effect)

	default:
		return fmt.Errorf("unknown effect kind %q", effect.Kind)
	}
}

func linkEscrow(db *gorm.DB, effect Effect) error {
	query := db.Model(&models.Campaign{}).Where("id = ?", effect.CampaignID)
	if effect.PreviousEscrowID == nil {
		query = query.Where("(escrow_id IS NULL OR escrow_id = ?)", effect.EscrowID)
	} else {
		query = query.Where("(escrow_id = ? OR escrow_id = ?)", *effect.PreviousEscrowID, effect.EscrowID)
	}
	res := query.Update("escrow_id", effect.EscrowID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrEscrowLinkConflict
	}
	return nil
}

func recordTransfer(db *gorm.DB, effect Effect) error {
	if effect.Transfer == nil {
		return errors.New("transfer record missing")
	}
	var count int64
	if err := db.Model(&models.TransferRecord{}).Where("escrow_id = ?", effect.EscrowID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	record := *effect.Transfer
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return db.Create(&record).Error
}
