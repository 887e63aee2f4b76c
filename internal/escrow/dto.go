package escrow

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/influencehub-backend/internal/fees"
	"github.com/angelmondragon/influencehub-backend/internal/gateway"
	"github.com/angelmondragon/influencehub-backend/pkg/db/models"
	"github.com/angelmondragon/influencehub-backend/pkg/enums"
)

// Actor is the authenticated caller of an escrow operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// CreateInput opens a hold for a campaign.
type CreateInput struct {
	CampaignID uuid.UUID
	Amount     decimal.Decimal
	Currency   string
}

// FundInput confirms the brand's payment method on a pending hold.
type FundInput struct {
	EscrowID         uuid.UUID
	PaymentMethodRef string
}

// ReleaseInput pays an influencer out of a funded hold. A zero Amount releases the full hold.
type ReleaseInput struct {
	EscrowID     uuid.UUID
	InfluencerID uuid.UUID
	Amount       decimal.Decimal
	Reason       string
}

// RefundInput returns funds to the brand. A zero Amount refunds everything captured or authorized.
type RefundInput struct {
	EscrowID uuid.UUID
	Amount   decimal.Decimal
	Reason   string
}

// DisputeInput freezes a funded hold.
type DisputeInput struct {
	EscrowID    uuid.UUID
	DisputeType string
	Description string
	Evidence    map[string]any
}

// Result is the structured outcome of every escrow operation. Domain failures are reported
// through Error with Success false.
type Result struct {
	Success        bool                `json:"success"`
	EscrowID       *uuid.UUID          `json:"escrowId,omitempty"`
	Status         enums.EscrowStatus  `json:"status,omitempty"`
	Amount         string              `json:"amount,omitempty"`
	Currency       enums.Currency      `json:"currency,omitempty"`
	ClientToken    string              `json:"clientToken,omitempty"`
	Metadata       map[string]string   `json:"metadata,omitempty"`
	Fees           *fees.BreakdownView `json:"fees,omitempty"`
	Transfer       *TransferView       `json:"transfer,omitempty"`
	Refund         *RefundView         `json:"refund,omitempty"`
	Dispute        *DisputeView        `json:"dispute,omitempty"`
	Disputes       []DisputeView       `json:"disputes,omitempty"`
	Reconciliation *Reconciliation     `json:"reconciliation,omitempty"`
	Error          *ResultError        `json:"error,omitempty"`
}

// ResultError is the client-facing failure description.
type ResultError struct {
	Kind                enums.EscrowErrorKind `json:"kind"`
	Message             string                `json:"message"`
	Retryable           bool                  `json:"retryable"`
	RetryAdvice         gateway.RetryAdvice   `json:"retryAdvice"`
	PendingConfirmation bool                  `json:"pendingConfirmation"`
	ProviderCode        string                `json:"providerCode,omitempty"`
}

type TransferView struct {
	ID            uuid.UUID            `json:"id"`
	ApplicationID uuid.UUID            `json:"applicationId"`
	InfluencerID  uuid.UUID            `json:"influencerId"`
	Amount        string               `json:"amount"`
	Currency      enums.Currency       `json:"currency"`
	Status        enums.TransferStatus `json:"status"`
	Reason        string               `json:"reason,omitempty"`
	CreatedAt     time.Time            `json:"createdAt"`
}

type RefundView struct {
	Amount           string `json:"amount"`
	ProviderRefundID string `json:"providerRefundId,omitempty"`
	Voided           bool   `json:"voided"`
}

type DisputeView struct {
	ID           uuid.UUID           `json:"id"`
	DisputeType  enums.DisputeType   `json:"disputeType"`
	Description  string              `json:"description,omitempty"`
	ReportedBy   uuid.UUID           `json:"reportedBy"`
	ReporterRole enums.UserRole      `json:"reporterRole"`
	ReportedAt   time.Time           `json:"reportedAt"`
	Status       enums.DisputeStatus `json:"status"`
}

func holdResult(hold models.EscrowHold) *Result {
	id := hold.ID
	return &Result{
		Success:  true,
		EscrowID: &id,
		Status:   hold.Status,
		Amount:   hold.GrossAmount.StringFixed(hold.Currency.MinorUnits()),
		Currency: hold.Currency,
		Metadata: hold.MetadataMap(),
	}
}

func failure(kind enums.EscrowErrorKind, message string) *Result {
	advice := gateway.AdviceFor(kind)
	return &Result{
		Error: &ResultError{
			Kind:        kind,
			Message:     message,
			Retryable:   advice != gateway.RetryNever,
			RetryAdvice: advice,
		},
	}
}

// Invalid builds a validation failure for input rejected before it reaches the service.
func Invalid(message string) *Result {
	return failure(enums.ErrorKindValidation, message)
}

func failureFor(hold *models.EscrowHold, kind enums.EscrowErrorKind, message string) *Result {
	res := failure(kind, message)
	if hold != nil {
		id := hold.ID
		res.EscrowID = &id
		res.Status = hold.Status
	}
	return res
}

func transferView(record models.TransferRecord) *TransferView {
	return &TransferView{
		ID:            record.ID,
		ApplicationID: record.ApplicationID,
		InfluencerID:  record.InfluencerID,
		Amount:        record.Amount.StringFixed(record.Currency.MinorUnits()),
		Currency:      record.Currency,
		Status:        record.Status,
		Reason:        record.Reason,
		CreatedAt:     record.CreatedAt,
	}
}

func transferBreakdown(record models.TransferRecord) fees.BreakdownView {
	return fees.Breakdown{
		GrossAmount:    record.GrossAmount,
		PlatformFee:    record.PlatformFee,
		ProviderFee:    record.ProviderFee,
		NetPayeeAmount: record.Amount,
		Currency:       record.Currency,
	}.View()
}

func disputeView(record models.DisputeRecord) DisputeView {
	return DisputeView{
		ID:           record.ID,
		DisputeType:  record.DisputeType,
		Description:  record.Description,
		ReportedBy:   record.ReportedBy,
		ReporterRole: record.ReporterRole,
		ReportedAt:   record.ReportedAt,
		Status:       record.Status,
	}
}
