package models

import "time"

// BalancePool discriminates the two wallet pools. Deposits and entry-fee
// refunds only ever touch the spendable pool; prize money and organizer
// commissions only ever touch the withdrawable pool.
type BalancePool string

const (
	PoolSpendable    BalancePool = "spendable"
	PoolWithdrawable BalancePool = "withdrawable"
)

func (p BalancePool) Valid() bool {
	return p == PoolSpendable || p == PoolWithdrawable
}

// Account is the per-user wallet. Both balances are a materialization of
// the completed ledger entries for that user and pool; they are never
// mutated outside a transaction that also writes the matching entry.
type Account struct {
	UserID              int       `json:"user_id" db:"user_id"`
	SpendableBalance    int64     `json:"spendable_balance" db:"spendable_balance"`
	WithdrawableBalance int64     `json:"withdrawable_balance" db:"withdrawable_balance"`
	Frozen              bool      `json:"frozen" db:"frozen"`
	Banned              bool      `json:"banned" db:"banned"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}

func (a *Account) BalanceFor(pool BalancePool) int64 {
	if pool == PoolWithdrawable {
		return a.WithdrawableBalance
	}
	return a.SpendableBalance
}

type Balances struct {
	Spendable    int64 `json:"spendable"`
	Withdrawable int64 `json:"withdrawable"`
}
