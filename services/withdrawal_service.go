package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/khelarena/economy-engine/models"
	"github.com/khelarena/economy-engine/repositories"
)

// WithdrawalService runs the hold-then-settle cash-out workflow. Funds
// are debited at request time, so an outstanding request can neither be
// spent nor withdrawn again; approval only attests the external payment,
// rejection restores the hold through a compensating refund entry.
type WithdrawalService struct {
	tx          TxManager
	accountRepo repositories.AccountRepository
	ledgerRepo  repositories.LedgerRepository
	notifier    Notifier
	logger      *slog.Logger

	minWithdrawal int64
}

func NewWithdrawalService(
	tx TxManager,
	accountRepo repositories.AccountRepository,
	ledgerRepo repositories.LedgerRepository,
	notifier Notifier,
	logger *slog.Logger,
	minWithdrawal int64,
) *WithdrawalService {
	return &WithdrawalService{
		tx:            tx,
		accountRepo:   accountRepo,
		ledgerRepo:    ledgerRepo,
		notifier:      notifier,
		logger:        logger,
		minWithdrawal: minWithdrawal,
	}
}

// Request places a withdrawal hold: pending ledger entry plus the
// immediate withdrawable debit, in one transaction.
func (s *WithdrawalService) Request(ctx context.Context, accountID int, amount int64, destination string) (*models.LedgerEntry, error) {
	if amount <= 0 {
		return nil, ErrAmountNotPositive
	}
	if amount < s.minWithdrawal {
		return nil, ErrBelowMinimumWithdrawal
	}
	if destination == "" {
		return nil, ErrValidationFailed
	}

	entry := &models.LedgerEntry{
		AccountID:   accountID,
		Kind:        models.KindWithdrawal,
		Pool:        models.PoolWithdrawable,
		Amount:      -amount,
		Status:      models.LedgerPending,
		Destination: &destination,
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
		if account.Frozen {
			return ErrAccountFrozen
		}
		if account.WithdrawableBalance < amount {
			return ErrInsufficientWithdrawable
		}

		if err := s.ledgerRepo.Insert(ctx, tx, entry); err != nil {
			return err
		}
		return s.accountRepo.ApplyDelta(ctx, tx, accountID, models.PoolWithdrawable, -amount)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("withdrawal hold placed",
		slog.Int("account_id", accountID),
		slog.Int64("amount", amount),
		slog.Int("request_id", entry.ID),
	)
	return entry, nil
}

// ListPending pages through outstanding requests, oldest first.
func (s *WithdrawalService) ListPending(ctx context.Context, limit, offset int) ([]models.LedgerEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.ledgerRepo.ListPendingWithdrawals(ctx, limit, offset)
}

// Approve marks the request completed. No balance change: the hold
// already debited the funds. Frozen/banned is re-checked inside the
// transaction since a concurrent admin action could have flagged the
// account after the request was made.
func (s *WithdrawalService) Approve(ctx context.Context, requestID int) error {
	var accountID int

	err := s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		entry, err := s.ledgerRepo.LockByID(ctx, tx, requestID)
		if err != nil {
			if errors.Is(err, repositories.ErrLedgerEntryNotFound) {
				return ErrWithdrawalNotFound
			}
			return err
		}
		if entry.Kind != models.KindWithdrawal {
			return ErrWithdrawalNotFound
		}
		if entry.Status != models.LedgerPending {
			return ErrWithdrawalAlreadyDecided
		}
		accountID = entry.AccountID

		account, err := s.accountRepo.LockByUserID(ctx, tx, entry.AccountID)
		if err != nil {
			return err
		}
		if account.Banned {
			return ErrAccountBanned
		}
		if account.Frozen {
			return ErrAccountFrozen
		}

		if err := s.ledgerRepo.UpdateStatus(ctx, tx, requestID, models.LedgerPending, models.LedgerCompleted); err != nil {
			if errors.Is(err, repositories.ErrLedgerStatusConflict) {
				return ErrWithdrawalAlreadyDecided
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("withdrawal approved", slog.Int("request_id", requestID), slog.Int("account_id", accountID))
	s.notifier.Notify("withdrawals", "withdrawal_completed", map[string]interface{}{
		"request_id": requestID,
		"account_id": accountID,
	})
	return nil
}

// Reject releases the hold: the entry flips to rejected and a
// compensating refund entry restores the exact amount to the withdrawable
// pool in the same transaction. The reason is mandatory and stored for
// the user to see.
func (s *WithdrawalService) Reject(ctx context.Context, requestID int, reason string) error {
	if reason == "" {
		return ErrReasonRequired
	}

	var (
		accountID int
		amount    int64
	)

	err := s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		entry, err := s.ledgerRepo.LockByID(ctx, tx, requestID)
		if err != nil {
			if errors.Is(err, repositories.ErrLedgerEntryNotFound) {
				return ErrWithdrawalNotFound
			}
			return err
		}
		if entry.Kind != models.KindWithdrawal {
			return ErrWithdrawalNotFound
		}
		if entry.Status != models.LedgerPending {
			return ErrWithdrawalAlreadyDecided
		}
		accountID = entry.AccountID
		amount = -entry.Amount

		if _, err := s.accountRepo.LockByUserID(ctx, tx, entry.AccountID); err != nil {
			return err
		}

		if err := s.ledgerRepo.UpdateStatus(ctx, tx, requestID, models.LedgerPending, models.LedgerRejected); err != nil {
			if errors.Is(err, repositories.ErrLedgerStatusConflict) {
				return ErrWithdrawalAlreadyDecided
			}
			return err
		}

		refundReason := fmt.Sprintf("withdrawal %d rejected: %s", requestID, reason)
		refund := &models.LedgerEntry{
			AccountID: entry.AccountID,
			Kind:      models.KindRefund,
			Pool:      models.PoolWithdrawable,
			Amount:    amount,
			Status:    models.LedgerCompleted,
			Reason:    &refundReason,
		}
		if err := s.ledgerRepo.Insert(ctx, tx, refund); err != nil {
			return err
		}
		return s.accountRepo.ApplyDelta(ctx, tx, entry.AccountID, models.PoolWithdrawable, amount)
	})
	if err != nil {
		return err
	}

	s.logger.Info("withdrawal rejected",
		slog.Int("request_id", requestID),
		slog.Int("account_id", accountID),
		slog.Int64("amount", amount),
		slog.String("reason", reason),
	)
	s.notifier.Notify("withdrawals", "withdrawal_rejected", map[string]interface{}{
		"request_id": requestID,
		"account_id": accountID,
		"reason":     reason,
	})
	return nil
}
