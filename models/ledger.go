package models

import "time"

type LedgerKind string

const (
	KindDeposit     LedgerKind = "deposit"
	KindEntryFee    LedgerKind = "entry_fee"
	KindRefund      LedgerKind = "refund"
	KindPrize       LedgerKind = "prize"
	KindWithdrawal  LedgerKind = "withdrawal"
	KindAdminCredit LedgerKind = "admin_credit"
	KindAdminDebit  LedgerKind = "admin_debit"
	KindCommission  LedgerKind = "commission"
)

type LedgerStatus string

const (
	LedgerPending   LedgerStatus = "pending"
	LedgerCompleted LedgerStatus = "completed"
	LedgerFailed    LedgerStatus = "failed"
	LedgerRejected  LedgerStatus = "rejected"
)

// RelatedEntity names the table a ledger entry points back at.
type RelatedEntity string

const (
	RelatedCompetition RelatedEntity = "competition"
	RelatedTournament  RelatedEntity = "tournament"
	RelatedNone        RelatedEntity = ""
)

// LedgerEntry is an immutable, append-only record of a balance change.
// Amount is signed: debits are negative, credits positive. Only Status may
// change after insert, and only pending -> completed|rejected.
type LedgerEntry struct {
	ID              int           `json:"id" db:"id"`
	AccountID       int           `json:"account_id" db:"account_id"`
	Kind            LedgerKind    `json:"kind" db:"kind"`
	Pool            BalancePool   `json:"pool" db:"pool"`
	Amount          int64         `json:"amount" db:"amount"`
	Status          LedgerStatus  `json:"status" db:"status"`
	Reason          *string       `json:"reason,omitempty" db:"reason"`
	Destination     *string       `json:"destination,omitempty" db:"destination"`
	RelatedEntity   RelatedEntity `json:"related_entity,omitempty" db:"related_entity"`
	RelatedEntityID *int          `json:"related_entity_id,omitempty" db:"related_entity_id"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
}

// IsValidLedgerStatusTransition gates the only in-place mutation the
// ledger allows.
func IsValidLedgerStatusTransition(current, next LedgerStatus) bool {
	if current != LedgerPending {
		return false
	}
	return next == LedgerCompleted || next == LedgerRejected
}
