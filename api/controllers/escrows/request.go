package escrows

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/influencehub-backend/pkg/errors"
)

type createRequest struct {
	CampaignID string          `json:"campaignId" validate:"required,uuid"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency" validate:"required,currency"`
}

type fundRequest struct {
	PaymentMethodID string `json:"paymentMethodId" validate:"required,max=255"`
}

type releaseRequest struct {
	InfluencerID string           `json:"influencerId" validate:"required,uuid"`
	Amount       *decimal.Decimal `json:"amount,omitempty"`
	Reason       string           `json:"reason" validate:"max=500"`
}

type refundRequest struct {
	Amount *decimal.Decimal `json:"amount,omitempty"`
	Reason string           `json:"reason" validate:"max=500"`
}

type disputeRequest struct {
	DisputeType string         `json:"disputeType" validate:"required,max=64"`
	Description string         `json:"description" validate:"required,max=4000"`
	Evidence    map[string]any `json:"evidence,omitempty"`
}

func optionalAmount(amount *decimal.Decimal) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return *amount
}

// bodyMessage flattens decoder and validator failures into a single message.
func bodyMessage(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return "invalid request body"
	}
	fields, ok := typed.Details().(map[string]string)
	if !ok || len(fields) == 0 {
		return typed.Message()
	}
	parts := make([]string, 0, len(fields))
	for field, msg := range fields {
		parts = append(parts, field+" "+msg)
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}
