package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/khelarena/economy-engine/models"
	"github.com/khelarena/economy-engine/repositories"
)

// WalletService exposes the two balance pools. The account row is a
// materialization for O(1) reads; every mutation writes the matching
// ledger entry in the same transaction, so the row is always re-derivable
// from ledger replay.
type WalletService struct {
	tx          TxManager
	accountRepo repositories.AccountRepository
	ledgerRepo  repositories.LedgerRepository
	logger      *slog.Logger
}

func NewWalletService(
	tx TxManager,
	accountRepo repositories.AccountRepository,
	ledgerRepo repositories.LedgerRepository,
	logger *slog.Logger,
) *WalletService {
	return &WalletService{
		tx:          tx,
		accountRepo: accountRepo,
		ledgerRepo:  ledgerRepo,
		logger:      logger,
	}
}

// Balances is a pure read of both pools.
func (s *WalletService) Balances(ctx context.Context, accountID int) (*models.Balances, error) {
	account, err := s.accountRepo.GetByUserID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repositories.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &models.Balances{
		Spendable:    account.SpendableBalance,
		Withdrawable: account.WithdrawableBalance,
	}, nil
}

// History lists ledger entries for the account, newest first.
func (s *WalletService) History(ctx context.Context, accountID, limit, offset int) ([]models.LedgerEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.ledgerRepo.ListByAccount(ctx, accountID, limit, offset)
}

// Deposit credits the spendable pool only. Deposits never touch the
// withdrawable pool.
func (s *WalletService) Deposit(ctx context.Context, accountID int, amount int64) (*models.Balances, error) {
	if amount <= 0 {
		return nil, ErrAmountNotPositive
	}

	err := s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		account, err := s.accountRepo.LockByUserID(ctx, tx, accountID)
		if err != nil {
			if errors.Is(err, repositories.ErrAccountNotFound) {
				return ErrAccountNotFound
			}
			return err
		}
		if account.Banned {
			return ErrAccountBanned
		}

		entry := &models.LedgerEntry{
			AccountID: accountID,
			Kind:      models.KindDeposit,
			Pool:      models.PoolSpendable,
			Amount:    amount,
			Status:    models.LedgerCompleted,
		}
		if err := s.ledgerRepo.Insert(ctx, tx, entry); err != nil {
			return err
		}
		return s.accountRepo.ApplyDelta(ctx, tx, accountID, models.PoolSpendable, amount)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("deposit credited", slog.Int("account_id", accountID), slog.Int64("amount", amount))
	return s.Balances(ctx, accountID)
}

// Adjust is the administrator-only manual correction. It demands a
// written reason and refuses to drive either pool negative.
func (s *WalletService) Adjust(ctx context.Context, accountID int, delta int64, pool models.BalancePool, reason string) (*models.Balances, error) {
	if delta == 0 {
		return nil, ErrAmountNotPositive
	}
	if reason == "" {
		return nil, ErrReasonRequired
	}
	if !pool.Valid() {
		return nil, ErrInvalidPool
	}

	kind := models.KindAdminCredit
	if delta < 0 {
		kind = models.KindAdminDebit
	}

	err := s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		account, err := s.accountRepo.LockByUserID(ctx, tx, accountID)
		if err != nil {
			if errors.Is(err, repositories.ErrAccountNotFound) {
				return ErrAccountNotFound
			}
			return err
		}
		if account.BalanceFor(pool)+delta < 0 {
			if pool == models.PoolWithdrawable {
				return ErrInsufficientWithdrawable
			}
			return ErrInsufficientSpendable
		}

		entry := &models.LedgerEntry{
			AccountID: accountID,
			Kind:      kind,
			Pool:      pool,
			Amount:    delta,
			Status:    models.LedgerCompleted,
			Reason:    &reason,
		}
		if err := s.ledgerRepo.Insert(ctx, tx, entry); err != nil {
			return err
		}
		return s.accountRepo.ApplyDelta(ctx, tx, accountID, pool, delta)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("admin balance adjustment",
		slog.Int("account_id", accountID),
		slog.Int64("delta", delta),
		slog.String("pool", string(pool)),
		slog.String("reason", reason),
	)
	return s.Balances(ctx, accountID)
}

// ReplayBalances recomputes both pools from the ledger and reports them
// next to the materialized row, for drift audits.
func (s *WalletService) ReplayBalances(ctx context.Context, accountID int) (materialized, replayed *models.Balances, err error) {
	account, err := s.accountRepo.GetByUserID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repositories.ErrAccountNotFound) {
			return nil, nil, ErrAccountNotFound
		}
		return nil, nil, err
	}

	spendable, err := s.ledgerRepo.SumEffectiveByAccountAndPool(ctx, nil, accountID, models.PoolSpendable)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to replay spendable pool: %w", err)
	}
	withdrawable, err := s.ledgerRepo.SumEffectiveByAccountAndPool(ctx, nil, accountID, models.PoolWithdrawable)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to replay withdrawable pool: %w", err)
	}

	materialized = &models.Balances{
		Spendable:    account.SpendableBalance,
		Withdrawable: account.WithdrawableBalance,
	}
	replayed = &models.Balances{Spendable: spendable, Withdrawable: withdrawable}

	if materialized.Spendable != replayed.Spendable || materialized.Withdrawable != replayed.Withdrawable {
		s.logger.Error("wallet materialization drift detected",
			slog.Int("account_id", accountID),
			slog.Int64("materialized_spendable", materialized.Spendable),
			slog.Int64("replayed_spendable", replayed.Spendable),
			slog.Int64("materialized_withdrawable", materialized.Withdrawable),
			slog.Int64("replayed_withdrawable", replayed.Withdrawable),
		)
	}
	return materialized, replayed, nil
}
