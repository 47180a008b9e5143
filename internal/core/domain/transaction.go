package domain

import (
	"time"

	"github.com/google/uuid"
)

// EntryKind represents the kind of ledger movement or governance action.
type EntryKind string

const (
	EntryKindMint          EntryKind = "MINT"
	EntryKindRedeemBurn    EntryKind = "REDEEM_BURN"
	EntryKindTransfer      EntryKind = "TRANSFER"
	EntryKindVoucherSettle EntryKind = "VOUCHER_SETTLE"
	EntryKindOfflineFund   EntryKind = "OFFLINE_FUND"
	EntryKindFreeze        EntryKind = "FREEZE"
	EntryKindUnfreeze      EntryKind = "UNFREEZE"
	EntryKindBlacklist     EntryKind = "BLACKLIST"
)

// EntryStatus marks whether the attempted operation was applied.
type EntryStatus string

const (
	EntryStatusConfirmed EntryStatus = "CONFIRMED"
	EntryStatusRejected  EntryStatus = "REJECTED"
)

// LedgerEntry is an immutable audit record. Exactly one entry is appended per
// attempted ledger operation, rejections included, so the audit log is the
// complete history of everything the ledger was asked to do.
type LedgerEntry struct {
	ID          uuid.UUID   `json:"id"`
	Kind        EntryKind   `json:"kind"`
	FromAccount *string     `json:"from_account,omitempty"`
	ToAccount   *string     `json:"to_account,omitempty"`
	Amount      int64       `json:"amount"`
	Status      EntryStatus `json:"status"`
	Reason      string      `json:"reason,omitempty"` // Rejection reason, or freeze/blacklist motivation
	Channel     string      `json:"channel,omitempty"`
	ApprovedBy  string      `json:"approved_by,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// IsConfirmed returns true if the operation was applied.
func (e *LedgerEntry) IsConfirmed() bool {
	return e.Status == EntryStatusConfirmed
}

// CountsTowardDailyLimit reports whether this entry consumes the sender's
// trailing-24h transfer allowance.
func (e *LedgerEntry) CountsTowardDailyLimit() bool {
	return e.Status == EntryStatusConfirmed &&
		(e.Kind == EntryKindTransfer || e.Kind == EntryKindVoucherSettle)
}
