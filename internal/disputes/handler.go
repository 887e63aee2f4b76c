package disputes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/influencehub-backend/pkg/db/models"
	"github.com/angelmondragon/influencehub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/influencehub-backend/pkg/errors"
)

const maxDescriptionLen = 4000

// OpenInput describes a dispute raised against a funded escrow.
type OpenInput struct {
	EscrowID     uuid.UUID
	DisputeType  string
	Description  string
	Evidence     map[string]any
	ReporterID   uuid.UUID
	ReporterRole enums.UserRole
}

// StampedEvidence is the evidence document persisted with a dispute.
type StampedEvidence struct {
	ReportedBy   uuid.UUID      `json:"reportedBy"`
	ReporterRole enums.UserRole `json:"reporterRole"`
	ReportedAt   time.Time      `json:"reportedAt"`
	Items        map[string]any `json:"items,omitempty"`
}

// Handler validates and persists dispute records. Resolution is manual: a dispute stays
// under_review until an admin releases or refunds the hold.
type Handler struct {
	repo *Repository
	now  func() time.Time
}

func NewHandler(repo *Repository, now func() time.Time) (*Handler, error) {
	if repo == nil {
		return nil, errors.New("disputes repository required")
	}
	if now == nil {
		now = time.Now
	}
	return &Handler{repo: repo, now: now}, nil
}

// Validate checks the input shape without touching storage.
func (h *Handler) Validate(input OpenInput) (enums.DisputeType, error) {
	if input.EscrowID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "escrow id required")
	}
	if input.ReporterID == uuid.Nil || !input.ReporterRole.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "reporter identity missing")
	}
	disputeType, err := enums.ParseDisputeType(strings.TrimSpace(input.DisputeType))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid dispute type")
	}
	if len(input.Description) > maxDescriptionLen {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("description exceeds %d characters", maxDescriptionLen))
	}
	return disputeType, nil
}

// Open stamps the reporter and time onto the evidence and inserts the record inside tx.
func (h *Handler) Open(ctx context.Context, tx *gorm.DB, input OpenInput) (*models.DisputeRecord, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	disputeType, err := h.Validate(input)
	if err != nil {
		return nil, err
	}

	reportedAt := h.now().UTC()
	evidence, err := json.Marshal(StampedEvidence{
		ReportedBy:   input.ReporterID,
		ReporterRole: input.ReporterRole,
		ReportedAt:   reportedAt,
		Items:        input.Evidence,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "evidence must be JSON encodable")
	}

	record := &models.DisputeRecord{
		ID:           uuid.New(),
		EscrowID:     input.EscrowID,
		DisputeType:  disputeType,
		Description:  strings.TrimSpace(input.Description),
		Evidence:     evidence,
		ReportedBy:   input.ReporterID,
		ReporterRole: input.ReporterRole,
		ReportedAt:   reportedAt,
		Status:       enums.DisputeStatusUnderReview,
	}
	if err := h.repo.WithTx(tx).Create(ctx, record); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist dispute")
	}
	return record, nil
}

// ListByEscrow returns the disputes raised against an escrow, oldest first.
func (h *Handler) ListByEscrow(ctx context.Context, escrowID uuid.UUID) ([]models.DisputeRecord, error) {
	rows, err := h.repo.ListByEscrow(ctx, escrowID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list disputes")
	}
	return rows, nil
}
