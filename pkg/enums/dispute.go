package enums

import "fmt"

// DisputeType classifies why an escrow was disputed.
type DisputeType string

const (
	DisputeContentNotDelivered DisputeType = "content_not_delivered"
	DisputeContentQuality      DisputeType = "content_quality"
	DisputePaymentDelay        DisputeType = "payment_delay"
	DisputeBreachOfContract    DisputeType = "breach_of_contract"
	DisputeOther               DisputeType = "other"
)

var validDisputeTypes = []DisputeType{
	DisputeContentNotDelivered,
	DisputeContentQuality,
	DisputePaymentDelay,
	DisputeBreachOfContract,
	DisputeOther,
}

// String implements fmt.Stringer.
func (d DisputeType) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DisputeType.
func (d DisputeType) IsValid() bool {
	for _, candidate := range validDisputeTypes {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDisputeType converts raw input into a DisputeType.
func ParseDisputeType(value string) (DisputeType, error) {
	for _, candidate := range validDisputeTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dispute type %q", value)
}

// DisputeStatus is the review state of a dispute record.
type DisputeStatus string

const (
	DisputeStatusUnderReview DisputeStatus = "under_review"
)
