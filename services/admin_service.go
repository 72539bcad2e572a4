package services

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/khelarena/economy-engine/models"
	"github.com/khelarena/economy-engine/repositories"
)

// AdminService covers the administrator surface that is not a withdrawal
// decision: account flagging and the dashboard rollup.
type AdminService struct {
	tx              TxManager
	userRepo        repositories.UserRepository
	accountRepo     repositories.AccountRepository
	ledgerRepo      repositories.LedgerRepository
	competitionRepo repositories.CompetitionRepository
	tournamentRepo  repositories.TournamentRepository
	logger          *slog.Logger
}

func NewAdminService(
	tx TxManager,
	userRepo repositories.UserRepository,
	accountRepo repositories.AccountRepository,
	ledgerRepo repositories.LedgerRepository,
	competitionRepo repositories.CompetitionRepository,
	tournamentRepo repositories.TournamentRepository,
	logger *slog.Logger,
) *AdminService {
	return &AdminService{
		tx:              tx,
		userRepo:        userRepo,
		accountRepo:     accountRepo,
		ledgerRepo:      ledgerRepo,
		competitionRepo: competitionRepo,
		tournamentRepo:  tournamentRepo,
		logger:          logger,
	}
}

// SetAccountFlags freezes/unfreezes or bans/unbans an account. The flags
// are written under the account row lock so a concurrent admin action
// cannot interleave, and the reason is logged for audit.
func (s *AdminService) SetAccountFlags(ctx context.Context, accountID int, frozen, banned bool, reason string) error {
	if reason == "" {
		return ErrReasonRequired
	}

	err := s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		if _, err := s.accountRepo.LockByUserID(ctx, tx, accountID); err != nil {
			if errors.Is(err, repositories.ErrAccountNotFound) {
				return ErrAccountNotFound
			}
			return err
		}
		return s.accountRepo.SetFlags(ctx, tx, accountID, frozen, banned)
	})
	if err != nil {
		return err
	}

	s.logger.Info("account flags updated",
		slog.Int("account_id", accountID),
		slog.Bool("frozen", frozen),
		slog.Bool("banned", banned),
		slog.String("reason", reason),
	)
	return nil
}

// DashboardStats fans the independent count queries out concurrently.
func (s *AdminService) DashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	var stats models.DashboardStats

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		total, err := s.userRepo.Count(gctx)
		stats.UsersTotal = total
		return err
	})
	g.Go(func() error {
		frozen, banned, err := s.accountRepo.CountFlagged(gctx)
		stats.FrozenAccounts = frozen
		stats.BannedAccounts = banned
		return err
	})
	g.Go(func() error {
		total, active, err := s.competitionRepo.Counts(gctx)
		stats.CompetitionsTotal = total
		stats.ActiveCompetitions = active
		return err
	})
	g.Go(func() error {
		total, err := s.tournamentRepo.Count(gctx)
		stats.TournamentsTotal = total
		return err
	})
	g.Go(func() error {
		escrowed, err := s.competitionRepo.SumEscrowedPools(gctx)
		stats.EscrowedPrizeMoney = escrowed
		return err
	})
	g.Go(func() error {
		count, onHold, err := s.ledgerRepo.PendingWithdrawalStats(gctx)
		stats.PendingWithdrawals = count
		stats.WithdrawableOnHold = onHold
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &stats, nil
}
