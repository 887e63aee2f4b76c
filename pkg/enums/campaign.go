package enums

import "fmt"

// CampaignStatus is the publishing state of a campaign.
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusCancelled CampaignStatus = "cancelled"
)

var validCampaignStatuses = []CampaignStatus{
	CampaignStatusDraft,
	CampaignStatusActive,
	CampaignStatusPaused,
	CampaignStatusCompleted,
	CampaignStatusCancelled,
}

// String implements fmt.Stringer.
func (s CampaignStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known CampaignStatus.
func (s CampaignStatus) IsValid() bool {
	for _, candidate := range validCampaignStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseCampaignStatus converts raw input into a CampaignStatus.
func ParseCampaignStatus(value string) (CampaignStatus, error) {
	for _, candidate := range validCampaignStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid campaign status %q", value)
}

// CampaignPaymentStatus mirrors the escrow status at campaign granularity.
type CampaignPaymentStatus string

const (
	CampaignPaymentPending  CampaignPaymentStatus = "pending"
	CampaignPaymentFunded   CampaignPaymentStatus = "funded"
	CampaignPaymentReleased CampaignPaymentStatus = "released"
	CampaignPaymentRefunded CampaignPaymentStatus = "refunded"
)

var validCampaignPaymentStatuses = []CampaignPaymentStatus{
	CampaignPaymentPending,
	CampaignPaymentFunded,
	CampaignPaymentReleased,
	CampaignPaymentRefunded,
}

// String implements fmt.Stringer.
func (s CampaignPaymentStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known CampaignPaymentStatus.
func (s CampaignPaymentStatus) IsValid() bool {
	for _, candidate := range validCampaignPaymentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseCampaignPaymentStatus converts raw input into a CampaignPaymentStatus.
func ParseCampaignPaymentStatus(value string) (CampaignPaymentStatus, error) {
	for _, candidate := range validCampaignPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid campaign payment status %q", value)
}
