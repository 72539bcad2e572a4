package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/khelarena/economy-engine/models"
	"github.com/khelarena/economy-engine/repositories"
)

// SettlementService runs the two-phase prize settlement: pool
// recalculation when a competition goes live, then the one-time winner
// declaration that pays out prizes and the organizer commission.
type SettlementService struct {
	tx               TxManager
	competitionRepo  repositories.CompetitionRepository
	registrationRepo repositories.RegistrationRepository
	accountRepo      repositories.AccountRepository
	ledgerRepo       repositories.LedgerRepository
	notifier         Notifier
	logger           *slog.Logger

	disputeWindow    time.Duration
	prizePoolPercent int
	organizerPercent int

	now func() time.Time
}

func NewSettlementService(
	tx TxManager,
	competitionRepo repositories.CompetitionRepository,
	registrationRepo repositories.RegistrationRepository,
	accountRepo repositories.AccountRepository,
	ledgerRepo repositories.LedgerRepository,
	notifier Notifier,
	logger *slog.Logger,
	disputeWindow time.Duration,
	prizePoolPercent, organizerPercent int,
) *SettlementService {
	return &SettlementService{
		tx:               tx,
		competitionRepo:  competitionRepo,
		registrationRepo: registrationRepo,
		accountRepo:      accountRepo,
		ledgerRepo:       ledgerRepo,
		notifier:         notifier,
		logger:           logger,
		disputeWindow:    disputeWindow,
		prizePoolPercent: prizePoolPercent,
		organizerPercent: organizerPercent,
		now:              time.Now,
	}
}

// RecalculatePool replaces the provisional full-capacity estimate with the
// pool derived from the real joined count. Runs exactly once per
// competition; a retry after the stamp is set reports a conflict without
// touching the pool.
func (s *SettlementService) RecalculatePool(ctx context.Context, competitionID int) (int64, error) {
	var pool int64

	err := s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		competition, err := s.competitionRepo.LockByID(ctx, tx, competitionID)
		if err != nil {
			if errors.Is(err, repositories.ErrCompetitionNotFound) {
				return ErrCompetitionNotFound
			}
			return err
		}
		if competition.PoolRecalculatedAt != nil {
			return ErrPoolAlreadyRecalculated
		}

		pool = int64(competition.JoinedCount) * competition.EntryFee * int64(s.prizePoolPercent) / 100
		if err := s.competitionRepo.SetRecalculatedPool(ctx, tx, competitionID, pool, s.now()); err != nil {
			if errors.Is(err, repositories.ErrCompetitionRecalcConflict) {
				return ErrPoolAlreadyRecalculated
			}
			return err
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("prize pool recalculated",
		slog.Int("competition_id", competitionID),
		slog.Int64("pool", pool),
	)
	return pool, nil
}

// payout is one resolved credit within a declaration.
type payout struct {
	accountID int
	amount    int64
}

// SettlementResult summarizes a winner declaration for the caller.
type SettlementResult struct {
	DistributedTotal int64 `json:"distributed_total"`
	Commission       int64 `json:"commission"`
	WinnerCount      int   `json:"winner_count"`
}

// DeclareWinners pays the prize distribution into the winners'
// withdrawable pools and the organizer commission in one transaction.
//
// Solo mode takes positions as accountID -> rank. Team modes take
// teamPositions as teamName -> rank; the prize for a rank splits
// floor-divided across the team's members with the remainder going to the
// team leader, the member who registered first.
func (s *SettlementService) DeclareWinners(
	ctx context.Context,
	competitionID, organizerID int,
	positions map[int]int,
	teamPositions map[string]int,
) (*SettlementResult, error) {
	var result SettlementResult

	err := s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		competition, err := s.competitionRepo.LockByID(ctx, tx, competitionID)
		if err != nil {
			if errors.Is(err, repositories.ErrCompetitionNotFound) {
				return ErrCompetitionNotFound
			}
			return err
		}

		if competition.OrganizerID != organizerID {
			return ErrNotCompetitionOwner
		}
		if competition.Status != models.CompetitionCompleted {
			return ErrCompetitionNotCompleted
		}
		if s.now().Before(competition.EndTime.Add(s.disputeWindow)) {
			return ErrDisputeWindowActive
		}
		if competition.WinnerDeclaredAt != nil {
			return ErrWinnersAlreadyDeclared
		}

		var payouts []payout
		if competition.Mode == models.ModeSolo {
			payouts, err = s.resolveSoloPayouts(ctx, tx, competition, positions)
		} else {
			payouts, err = s.resolveTeamPayouts(ctx, tx, competition, teamPositions)
		}
		if err != nil {
			return err
		}
		if len(payouts) == 0 {
			return ErrPositionsRequired
		}

		var distributed int64
		for _, p := range payouts {
			distributed += p.amount
		}
		if distributed > competition.CurrentPrizePool {
			return ErrPrizeOverAllocation
		}

		for _, p := range payouts {
			if _, err := s.accountRepo.LockByUserID(ctx, tx, p.accountID); err != nil {
				if errors.Is(err, repositories.ErrAccountNotFound) {
					return ErrAccountNotFound
				}
				return err
			}
			entry := &models.LedgerEntry{
				AccountID:       p.accountID,
				Kind:            models.KindPrize,
				Pool:            models.PoolWithdrawable,
				Amount:          p.amount,
				Status:          models.LedgerCompleted,
				RelatedEntity:   models.RelatedCompetition,
				RelatedEntityID: &competitionID,
			}
			if err := s.ledgerRepo.Insert(ctx, tx, entry); err != nil {
				return err
			}
			if err := s.accountRepo.ApplyDelta(ctx, tx, p.accountID, models.PoolWithdrawable, p.amount); err != nil {
				return err
			}
		}

		collected := int64(competition.JoinedCount) * competition.EntryFee
		commission := collected * int64(s.organizerPercent) / 100
		if commission > 0 {
			if _, err := s.accountRepo.LockByUserID(ctx, tx, organizerID); err != nil {
				if errors.Is(err, repositories.ErrAccountNotFound) {
					return ErrAccountNotFound
				}
				return err
			}
			entry := &models.LedgerEntry{
				AccountID:       organizerID,
				Kind:            models.KindCommission,
				Pool:            models.PoolWithdrawable,
				Amount:          commission,
				Status:          models.LedgerCompleted,
				RelatedEntity:   models.RelatedCompetition,
				RelatedEntityID: &competitionID,
			}
			if err := s.ledgerRepo.Insert(ctx, tx, entry); err != nil {
				return err
			}
			if err := s.accountRepo.ApplyDelta(ctx, tx, organizerID, models.PoolWithdrawable, commission); err != nil {
				return err
			}
		}

		if err := s.competitionRepo.MarkWinnersDeclared(ctx, tx, competitionID, s.now()); err != nil {
			if errors.Is(err, repositories.ErrCompetitionDeclareConflict) {
				return ErrWinnersAlreadyDeclared
			}
			return err
		}

		result = SettlementResult{
			DistributedTotal: distributed,
			Commission:       commission,
			WinnerCount:      len(payouts),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("winners declared",
		slog.Int("competition_id", competitionID),
		slog.Int64("distributed", result.DistributedTotal),
		slog.Int64("commission", result.Commission),
		slog.Int("winners", result.WinnerCount),
	)
	s.notifier.Notify("competitions", "winners_declared", map[string]interface{}{
		"competition_id":    competitionID,
		"distributed_total": result.DistributedTotal,
		"winner_count":      result.WinnerCount,
	})
	return &result, nil
}

func (s *SettlementService) resolveSoloPayouts(
	ctx context.Context,
	tx repositories.SQLExecutor,
	competition *models.Competition,
	positions map[int]int,
) ([]payout, error) {
	payouts := make([]payout, 0, len(positions))
	for accountID, rank := range positions {
		amount, ok := competition.PrizeDistribution[rank]
		if !ok {
			return nil, ErrInvalidDistribution
		}
		if _, err := s.registrationRepo.FindByAccountAndCompetition(ctx, tx, accountID, competition.ID); err != nil {
			if errors.Is(err, repositories.ErrRegistrationNotFound) {
				return nil, ErrNotJoined
			}
			return nil, err
		}
		payouts = append(payouts, payout{accountID: accountID, amount: amount})
	}
	return payouts, nil
}

func (s *SettlementService) resolveTeamPayouts(
	ctx context.Context,
	tx repositories.SQLExecutor,
	competition *models.Competition,
	teamPositions map[string]int,
) ([]payout, error) {
	var payouts []payout
	for teamName, rank := range teamPositions {
		amount, ok := competition.PrizeDistribution[rank]
		if !ok {
			return nil, ErrInvalidDistribution
		}

		// ListByTeamName orders by registration time, so members[0] is
		// the leader who registered the team.
		members, err := s.registrationRepo.ListByTeamName(ctx, tx, competition.ID, teamName)
		if err != nil {
			return nil, err
		}
		if len(members) == 0 {
			return nil, ErrNotJoined
		}

		share := amount / int64(len(members))
		remainder := amount % int64(len(members))
		for i, member := range members {
			memberAmount := share
			if i == 0 {
				memberAmount += remainder
			}
			payouts = append(payouts, payout{accountID: member.AccountID, amount: memberAmount})
		}
	}
	return payouts, nil
}
