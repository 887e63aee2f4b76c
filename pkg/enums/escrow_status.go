package enums

import "fmt"

// EscrowStatus tracks the lifecycle of an escrow hold.
type EscrowStatus string

const (
	EscrowStatusPendingPayment EscrowStatus = "pending_payment"
	EscrowStatusFunded         EscrowStatus = "funded"
	EscrowStatusReleased       EscrowStatus = "released"
	EscrowStatusRefunded       EscrowStatus = "refunded"
	EscrowStatusCancelled      EscrowStatus = "cancelled"
	EscrowStatusDisputed       EscrowStatus = "disputed"
)

var validEscrowStatuses = []EscrowStatus{
	EscrowStatusPendingPayment,
	EscrowStatusFunded,
	EscrowStatusReleased,
	EscrowStatusRefunded,
	EscrowStatusCancelled,
	EscrowStatusDisputed,
}

// LiveEscrowStatuses lists the statuses that still reserve the campaign.
var LiveEscrowStatuses = []EscrowStatus{
	EscrowStatusPendingPayment,
	EscrowStatusFunded,
	EscrowStatusDisputed,
}

// String implements fmt.Stringer.
func (s EscrowStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known EscrowStatus.
func (s EscrowStatus) IsValid() bool {
	for _, candidate := range validEscrowStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition may leave this status.
func (s EscrowStatus) IsTerminal() bool {
	switch s {
	case EscrowStatusReleased, EscrowStatusRefunded, EscrowStatusCancelled:
		return true
	}
	return false
}

// IsLive reports whether the hold still blocks a new hold on its campaign.
func (s EscrowStatus) IsLive() bool {
	return s.IsValid() && !s.IsTerminal()
}

// ParseEscrowStatus converts raw input into an EscrowStatus.
func ParseEscrowStatus(value string) (EscrowStatus, error) {
	for _, candidate := range validEscrowStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid escrow status %q", value)
}
