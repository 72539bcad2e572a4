package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLedgerStatusTransitions(t *testing.T) {
	assert.True(t, IsValidLedgerStatusTransition(LedgerPending, LedgerCompleted))
	assert.True(t, IsValidLedgerStatusTransition(LedgerPending, LedgerRejected))
	assert.False(t, IsValidLedgerStatusTransition(LedgerPending, LedgerFailed))
	assert.False(t, IsValidLedgerStatusTransition(LedgerCompleted, LedgerRejected))
	assert.False(t, IsValidLedgerStatusTransition(LedgerRejected, LedgerCompleted))
}

func TestBalanceFor(t *testing.T) {
	account := Account{SpendableBalance: 100, WithdrawableBalance: 40}
	assert.Equal(t, int64(100), account.BalanceFor(PoolSpendable))
	assert.Equal(t, int64(40), account.BalanceFor(PoolWithdrawable))
	assert.False(t, BalancePool("escrow").Valid())
}
