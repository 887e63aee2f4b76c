package enums

// SettlementKind names the money-moving provider call that currently owns a funded hold.
// Capture and refund claims exclude each other until the hold reaches a terminal status.
type SettlementKind string

const (
	SettlementCapture SettlementKind = "capture"
	SettlementRefund  SettlementKind = "refund"
)

func (k SettlementKind) String() string {
	return string(k)
}

func (k SettlementKind) IsValid() bool {
	return k == SettlementCapture || k == SettlementRefund
}
