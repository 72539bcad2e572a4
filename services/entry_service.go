package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/khelarena/economy-engine/models"
	"github.com/khelarena/economy-engine/repositories"
)

// EntryService handles the join/exit escrow path for fixed-size scheduled
// competitions. Every operation is one transaction: registration row,
// ledger entry, wallet debit and prize pool credit commit together or not
// at all.
type EntryService struct {
	tx               TxManager
	competitionRepo  repositories.CompetitionRepository
	registrationRepo repositories.RegistrationRepository
	accountRepo      repositories.AccountRepository
	ledgerRepo       repositories.LedgerRepository
	logger           *slog.Logger

	joinCutoff       time.Duration
	exitCutoff       time.Duration
	prizePoolPercent int

	now func() time.Time
}

func NewEntryService(
	tx TxManager,
	competitionRepo repositories.CompetitionRepository,
	registrationRepo repositories.RegistrationRepository,
	accountRepo repositories.AccountRepository,
	ledgerRepo repositories.LedgerRepository,
	logger *slog.Logger,
	joinCutoff, exitCutoff time.Duration,
	prizePoolPercent int,
) *EntryService {
	return &EntryService{
		tx:               tx,
		competitionRepo:  competitionRepo,
		registrationRepo: registrationRepo,
		accountRepo:      accountRepo,
		ledgerRepo:       ledgerRepo,
		logger:           logger,
		joinCutoff:       joinCutoff,
		exitCutoff:       exitCutoff,
		prizePoolPercent: prizePoolPercent,
		now:              time.Now,
	}
}

// JoinResult is what the caller renders after a successful join. Raw
// ledger rows never leave the engine.
type JoinResult struct {
	RegistrationID   int   `json:"registration_id"`
	PaidFee          int64 `json:"paid_fee"`
	NewSpendable     int64 `json:"new_spendable"`
	CurrentPrizePool int64 `json:"current_prize_pool"`
}

// Join registers the account and escrows the entry fee. For duo/squad
// modes teamName groups members of one slot; the fee contract is the same
// as solo.
func (s *EntryService) Join(ctx context.Context, accountID, competitionID int, teamName *string) (*JoinResult, error) {
	var result JoinResult

	err := s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		competition, err := s.competitionRepo.LockByID(ctx, tx, competitionID)
		if err != nil {
			if errors.Is(err, repositories.ErrCompetitionNotFound) {
				return ErrCompetitionNotFound
			}
			return err
		}

		if competition.Status != models.CompetitionUpcoming {
			return ErrCompetitionNotJoinable
		}
		if !s.now().Before(competition.StartTime.Add(-s.joinCutoff)) {
			return ErrJoinWindowClosed
		}
		if competition.Mode != models.ModeSolo && teamName == nil {
			return ErrValidationFailed
		}
		if competition.JoinedCount >= competition.Capacity {
			return ErrCompetitionFull
		}

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
		if account.SpendableBalance < competition.EntryFee {
			return ErrInsufficientSpendable
		}

		registration := &models.Registration{
			CompetitionID: competitionID,
			AccountID:     accountID,
			TeamName:      teamName,
			PaidFee:       competition.EntryFee,
		}
		if err := s.registrationRepo.Create(ctx, tx, registration); err != nil {
			if errors.Is(err, repositories.ErrRegistrationConflict) {
				return ErrAlreadyJoined
			}
			return err
		}

		entry := &models.LedgerEntry{
			AccountID:       accountID,
			Kind:            models.KindEntryFee,
			Pool:            models.PoolSpendable,
			Amount:          -competition.EntryFee,
			Status:          models.LedgerCompleted,
			RelatedEntity:   models.RelatedCompetition,
			RelatedEntityID: &competitionID,
		}
		if err := s.ledgerRepo.Insert(ctx, tx, entry); err != nil {
			return err
		}
		if err := s.accountRepo.ApplyDelta(ctx, tx, accountID, models.PoolSpendable, -competition.EntryFee); err != nil {
			if errors.Is(err, repositories.ErrAccountBalanceNegative) {
				return ErrInsufficientSpendable
			}
			return err
		}

		poolShare := competition.EntryFee * int64(s.prizePoolPercent) / 100
		if err := s.competitionRepo.AdjustJoinedAndPool(ctx, tx, competitionID, 1, poolShare); err != nil {
			if errors.Is(err, repositories.ErrCompetitionCapacityHit) {
				return ErrCompetitionFull
			}
			return err
		}

		result = JoinResult{
			RegistrationID:   registration.ID,
			PaidFee:          competition.EntryFee,
			NewSpendable:     account.SpendableBalance - competition.EntryFee,
			CurrentPrizePool: competition.CurrentPrizePool + poolShare,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("entry fee escrowed",
		slog.Int("account_id", accountID),
		slog.Int("competition_id", competitionID),
		slog.Int64("fee", result.PaidFee),
	)
	return &result, nil
}

// ExitResult reports the refunded amount after a successful exit.
type ExitResult struct {
	RefundedFee  int64 `json:"refunded_fee"`
	NewSpendable int64 `json:"new_spendable"`
}

// Exit deletes the registration and refunds the paid fee. Solo mode only,
// while the competition is still upcoming and the exit cutoff has not
// passed. Team entry fees stay escrowed once registered.
func (s *EntryService) Exit(ctx context.Context, accountID, competitionID int) (*ExitResult, error) {
	var result ExitResult

	err := s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		competition, err := s.competitionRepo.LockByID(ctx, tx, competitionID)
		if err != nil {
			if errors.Is(err, repositories.ErrCompetitionNotFound) {
				return ErrCompetitionNotFound
			}
			return err
		}

		if competition.Mode != models.ModeSolo {
			return ErrTeamFeeNotRefundable
		}
		if competition.Status != models.CompetitionUpcoming {
			return ErrExitNotAllowed
		}
		if !s.now().Before(competition.StartTime.Add(-s.exitCutoff)) {
			return ErrExitWindowClosed
		}

		registration, err := s.registrationRepo.FindByAccountAndCompetition(ctx, tx, accountID, competitionID)
		if err != nil {
			if errors.Is(err, repositories.ErrRegistrationNotFound) {
				return ErrNotJoined
			}
			return err
		}

		account, err := s.accountRepo.LockByUserID(ctx, tx, accountID)
		if err != nil {
			if errors.Is(err, repositories.ErrAccountNotFound) {
				return ErrAccountNotFound
			}
			return err
		}

		if err := s.registrationRepo.Delete(ctx, tx, registration.ID); err != nil {
			return err
		}

		entry := &models.LedgerEntry{
			AccountID:       accountID,
			Kind:            models.KindRefund,
			Pool:            models.PoolSpendable,
			Amount:          registration.PaidFee,
			Status:          models.LedgerCompleted,
			RelatedEntity:   models.RelatedCompetition,
			RelatedEntityID: &competitionID,
		}
		if err := s.ledgerRepo.Insert(ctx, tx, entry); err != nil {
			return err
		}
		if err := s.accountRepo.ApplyDelta(ctx, tx, accountID, models.PoolSpendable, registration.PaidFee); err != nil {
			return err
		}

		poolShare := registration.PaidFee * int64(s.prizePoolPercent) / 100
		if err := s.competitionRepo.AdjustJoinedAndPool(ctx, tx, competitionID, -1, -poolShare); err != nil {
			return err
		}

		result = ExitResult{
			RefundedFee:  registration.PaidFee,
			NewSpendable: account.SpendableBalance + registration.PaidFee,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("entry fee refunded on exit",
		slog.Int("account_id", accountID),
		slog.Int("competition_id", competitionID),
		slog.Int64("fee", result.RefundedFee),
	)
	return &result, nil
}
