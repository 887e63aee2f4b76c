package enums

// TransferStatus is the settlement state of a payout transfer record.
type TransferStatus string

// TransferStatusPendingBankTransfer is the only status this service writes; settlement happens downstream.
const TransferStatusPendingBankTransfer TransferStatus = "pending_bank_transfer"
