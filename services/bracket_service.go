package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/khelarena/economy-engine/brackets"
	"github.com/khelarena/economy-engine/models"
	"github.com/khelarena/economy-engine/repositories"
	"github.com/lib/pq"
)

// BracketService runs the multi-round knockout engine: team registration
// with fee escrow, room generation per round, credential handoff and
// per-room winner advancement. Teams are never lost or duplicated across
// rounds: every transition is one transaction with the tournament row
// locked first.
type BracketService struct {
	tx             TxManager
	tournamentRepo repositories.TournamentRepository
	teamRepo       repositories.TeamRepository
	roomRepo       repositories.RoomRepository
	accountRepo    repositories.AccountRepository
	ledgerRepo     repositories.LedgerRepository
	notifier       Notifier
	logger         *slog.Logger

	roomCapacities map[string]int
}

func NewBracketService(
	tx TxManager,
	tournamentRepo repositories.TournamentRepository,
	teamRepo repositories.TeamRepository,
	roomRepo repositories.RoomRepository,
	accountRepo repositories.AccountRepository,
	ledgerRepo repositories.LedgerRepository,
	notifier Notifier,
	logger *slog.Logger,
	roomCapacities map[string]int,
) *BracketService {
	return &BracketService{
		tx:             tx,
		tournamentRepo: tournamentRepo,
		teamRepo:       teamRepo,
		roomRepo:       roomRepo,
		accountRepo:    accountRepo,
		ledgerRepo:     ledgerRepo,
		notifier:       notifier,
		logger:         logger,
		roomCapacities: roomCapacities,
	}
}

// CreateTournament opens a knockout tournament in the registration stage.
// The game must have a configured per-room capacity.
func (s *BracketService) CreateTournament(ctx context.Context, organizerID int, name, game string, entryFee int64) (*models.Tournament, error) {
	if name == "" {
		return nil, ErrValidationFailed
	}
	if entryFee < 0 {
		return nil, ErrAmountNotPositive
	}
	if _, ok := s.roomCapacities[game]; !ok {
		return nil, ErrUnknownGame
	}

	tournament := &models.Tournament{
		Name:        name,
		Game:        game,
		OrganizerID: organizerID,
		Stage:       models.StageRegistration,
		EntryFee:    entryFee,
	}
	if err := s.tournamentRepo.Create(ctx, tournament); err != nil {
		if errors.Is(err, repositories.ErrTournamentInvalidOrg) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return tournament, nil
}

func (s *BracketService) GetTournament(ctx context.Context, id int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return tournament, nil
}

func (s *BracketService) ListTournaments(ctx context.Context, organizerID *int, limit, offset int) ([]models.Tournament, error) {
	return s.tournamentRepo.List(ctx, organizerID, limit, offset)
}

func (s *BracketService) ListTeams(ctx context.Context, tournamentID int) ([]models.Team, error) {
	return s.teamRepo.ListByTournament(ctx, nil, tournamentID)
}

// RegisterTeam enrolls a team while the tournament is still in
// registration. Each member pays the entry fee from their spendable pool
// in the same transaction that creates the team. Fees are not refunded on
// forfeit or elimination; cancellation of the whole tournament is the
// only path that returns them.
func (s *BracketService) RegisterTeam(ctx context.Context, tournamentID int, name string, memberIDs []int) (*models.Team, error) {
	if name == "" {
		return nil, ErrValidationFailed
	}
	if len(memberIDs) < 1 || len(memberIDs) > 4 {
		return nil, ErrValidationFailed
	}
	seen := make(map[int]struct{}, len(memberIDs))
	for _, id := range memberIDs {
		if _, dup := seen[id]; dup {
			return nil, ErrValidationFailed
		}
		seen[id] = struct{}{}
	}

	team := &models.Team{
		TournamentID: tournamentID,
		Name:         name,
	}
	for _, id := range memberIDs {
		team.MemberIDs = append(team.MemberIDs, int64(id))
	}

	err := s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		tournament, err := s.tournamentRepo.LockByID(ctx, tx, tournamentID)
		if err != nil {
			if errors.Is(err, repositories.ErrTournamentNotFound) {
				return ErrTournamentNotFound
			}
			return err
		}
		if tournament.Stage != models.StageRegistration {
			return ErrRegistrationClosed
		}

		for _, memberID := range memberIDs {
			account, err := s.accountRepo.LockByUserID(ctx, tx, memberID)
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
			if tournament.EntryFee == 0 {
				continue
			}
			if account.SpendableBalance < tournament.EntryFee {
				return ErrInsufficientSpendable
			}

			entry := &models.LedgerEntry{
				AccountID:       memberID,
				Kind:            models.KindEntryFee,
				Pool:            models.PoolSpendable,
				Amount:          -tournament.EntryFee,
				Status:          models.LedgerCompleted,
				RelatedEntity:   models.RelatedTournament,
				RelatedEntityID: &tournamentID,
			}
			if err := s.ledgerRepo.Insert(ctx, tx, entry); err != nil {
				return err
			}
			if err := s.accountRepo.ApplyDelta(ctx, tx, memberID, models.PoolSpendable, -tournament.EntryFee); err != nil {
				if errors.Is(err, repositories.ErrAccountBalanceNegative) {
					return ErrInsufficientSpendable
				}
				return err
			}
		}

		if err := s.teamRepo.Create(ctx, tx, team); err != nil {
			if errors.Is(err, repositories.ErrTeamNameConflict) {
				return ErrValidationFailed
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("team registered",
		slog.Int("tournament_id", tournamentID),
		slog.Int("team_id", team.ID),
		slog.Int("members", len(memberIDs)),
	)
	return team, nil
}

// StartRoundResult reports what a round start did. Reused is true when
// the rooms already existed and no new ones were generated.
type StartRoundResult struct {
	Stage     models.TournamentStage `json:"stage"`
	RoomCount int                    `json:"room_count"`
	TeamCount int                    `json:"team_count"`
	Reused    bool                   `json:"reused"`
}

// StartRound partitions the survivors of the previous round into rooms of
// the per-game capacity. Re-invocation never regenerates rooms: if the
// round already has them, only the stage is confirmed and the existing
// count reported. The previous round must be fully completed; that gate
// is re-verified here, not trusted from the caller.
func (s *BracketService) StartRound(ctx context.Context, tournamentID, organizerID, roundNumber int) (*StartRoundResult, error) {
	if roundNumber < 1 {
		return nil, ErrValidationFailed
	}

	var result StartRoundResult

	err := s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		tournament, err := s.tournamentRepo.LockByID(ctx, tx, tournamentID)
		if err != nil {
			if errors.Is(err, repositories.ErrTournamentNotFound) {
				return ErrTournamentNotFound
			}
			return err
		}
		if tournament.OrganizerID != organizerID {
			return ErrNotTournamentOwner
		}
		if tournament.Stage.Terminal() {
			return ErrInvalidStageTransition
		}

		capacity, ok := s.roomCapacities[tournament.Game]
		if !ok {
			return ErrUnknownGame
		}

		existing, err := s.roomRepo.ListByRound(ctx, tx, tournamentID, roundNumber)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			stage := models.StageRound(roundNumber)
			if len(existing) == 1 {
				stage = models.StageFinale
			}
			if !models.IsValidStageTransition(tournament.Stage, stage) {
				return ErrInvalidStageTransition
			}
			if tournament.Stage != stage {
				if err := s.tournamentRepo.UpdateStage(ctx, tx, tournamentID, stage); err != nil {
					return err
				}
			}
			teams := 0
			for _, room := range existing {
				teams += len(room.AssignedTeamIDs)
			}
			result = StartRoundResult{Stage: stage, RoomCount: len(existing), TeamCount: teams, Reused: true}
			return nil
		}

		if roundNumber > 1 {
			total, completed, err := s.roomRepo.RoundCounts(ctx, tx, tournamentID, roundNumber-1)
			if err != nil {
				return err
			}
			if total == 0 || completed < total {
				return ErrRoundNotComplete
			}
		}

		survivors, err := s.teamRepo.ListSurvivors(ctx, tx, tournamentID, roundNumber-1)
		if err != nil {
			return err
		}
		if len(survivors) == 0 {
			return ErrTeamNotFound
		}

		teamIDs := make([]int, len(survivors))
		for i, team := range survivors {
			teamIDs[i] = team.ID
		}
		groups := brackets.PartitionTeams(teamIDs, capacity)

		rooms := make([]*models.Room, 0, len(groups))
		for i, group := range groups {
			assigned := make(pq.Int64Array, len(group))
			for j, id := range group {
				assigned[j] = int64(id)
			}
			rooms = append(rooms, &models.Room{
				TournamentID:    tournamentID,
				RoundNumber:     roundNumber,
				RoomNumber:      i + 1,
				AssignedTeamIDs: assigned,
				Status:          models.RoomWaiting,
			})
		}
		if err := s.roomRepo.CreateBatch(ctx, tx, rooms); err != nil {
			return err
		}

		stage := models.StageRound(roundNumber)
		if len(rooms) == 1 {
			stage = models.StageFinale
		}
		if !models.IsValidStageTransition(tournament.Stage, stage) {
			return ErrInvalidStageTransition
		}
		if err := s.tournamentRepo.UpdateStage(ctx, tx, tournamentID, stage); err != nil {
			return err
		}

		result = StartRoundResult{Stage: stage, RoomCount: len(rooms), TeamCount: len(survivors)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.Reused {
		s.logger.Info("round started",
			slog.Int("tournament_id", tournamentID),
			slog.Int("round", roundNumber),
			slog.Int("rooms", result.RoomCount),
			slog.Int("teams", result.TeamCount),
		)
		s.notifier.Notify("tournaments", "round_started", map[string]interface{}{
			"tournament_id": tournamentID,
			"round":         roundNumber,
			"rooms":         result.RoomCount,
		})
	}
	return &result, nil
}

// SetRoomCredentials moves a waiting room to credentials_set. Purely
// informational, no economic effect, but a round is not live until every
// room has credentials.
func (s *BracketService) SetRoomCredentials(ctx context.Context, roomID, organizerID int, credID, credPass string, scheduled *time.Time) error {
	if credID == "" || credPass == "" {
		return ErrRoomCredentialsRequired
	}

	err := s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		room, err := s.roomRepo.LockByID(ctx, tx, roomID)
		if err != nil {
			if errors.Is(err, repositories.ErrRoomNotFound) {
				return ErrRoomNotFound
			}
			return err
		}

		tournament, err := s.tournamentRepo.GetByID(ctx, room.TournamentID)
		if err != nil {
			return err
		}
		if tournament.OrganizerID != organizerID {
			return ErrNotTournamentOwner
		}

		if err := s.roomRepo.SetCredentials(ctx, tx, roomID, credID, credPass, scheduled); err != nil {
			if errors.Is(err, repositories.ErrRoomStatusConflict) {
				return ErrRoomCredentialsAlreadySet
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("room credentials set", slog.Int("room_id", roomID))
	return nil
}

// RoomWinnerResult reports the outcome of a room declaration.
type RoomWinnerResult struct {
	WinnerTeamID        int                    `json:"winner_team_id"`
	EliminatedCount     int                    `json:"eliminated_count"`
	Stage               models.TournamentStage `json:"stage"`
	TournamentCompleted bool                   `json:"tournament_completed"`
}

// DeclareRoomWinner stamps the room winner, advances the winning team and
// eliminates every other team in the room, all in one transaction. The
// winner is immutable once set. Completing the finale room completes the
// tournament and records final rank 1.
func (s *BracketService) DeclareRoomWinner(ctx context.Context, roomID, organizerID, winningTeamID int) (*RoomWinnerResult, error) {
	var result RoomWinnerResult

	err := s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		room, err := s.roomRepo.LockByID(ctx, tx, roomID)
		if err != nil {
			if errors.Is(err, repositories.ErrRoomNotFound) {
				return ErrRoomNotFound
			}
			return err
		}

		tournament, err := s.tournamentRepo.LockByID(ctx, tx, room.TournamentID)
		if err != nil {
			return err
		}
		if tournament.OrganizerID != organizerID {
			return ErrNotTournamentOwner
		}

		if room.WinnerTeamID != nil {
			return ErrRoomWinnerAlreadySet
		}
		if room.Status == models.RoomWaiting {
			return ErrRoomNotLive
		}
		if room.Status != models.RoomCredentialsSet {
			return ErrRoomWinnerAlreadySet
		}
		if !room.HasTeam(winningTeamID) {
			return ErrTeamNotInRoom
		}

		winner, err := s.teamRepo.GetByID(ctx, tx, winningTeamID)
		if err != nil {
			if errors.Is(err, repositories.ErrTeamNotFound) {
				return ErrTeamNotFound
			}
			return err
		}
		if winner.IsEliminated {
			return ErrTeamEliminated
		}

		if err := s.roomRepo.SetWinner(ctx, tx, roomID, winningTeamID); err != nil {
			if errors.Is(err, repositories.ErrRoomWinnerConflict) {
				return ErrRoomWinnerAlreadySet
			}
			return err
		}
		if err := s.teamRepo.Advance(ctx, tx, winningTeamID, room.RoundNumber); err != nil {
			if errors.Is(err, repositories.ErrTeamAlreadyEliminated) {
				return ErrTeamEliminated
			}
			return err
		}

		losers := make([]int, 0, len(room.AssignedTeamIDs))
		for _, id := range room.AssignedTeamIDs {
			if int(id) != winningTeamID {
				losers = append(losers, int(id))
			}
		}
		eliminated, err := s.teamRepo.Eliminate(ctx, tx, losers)
		if err != nil {
			return err
		}
		if eliminated != len(losers) {
			return ErrTeamEliminated
		}

		result = RoomWinnerResult{
			WinnerTeamID:    winningTeamID,
			EliminatedCount: eliminated,
			Stage:           tournament.Stage,
		}

		if tournament.Stage == models.StageFinale {
			total, completed, err := s.roomRepo.RoundCounts(ctx, tx, room.TournamentID, room.RoundNumber)
			if err != nil {
				return err
			}
			if completed == total {
				if err := s.tournamentRepo.UpdateStage(ctx, tx, room.TournamentID, models.StageCompleted); err != nil {
					return err
				}
				if err := s.teamRepo.SetFinalRank(ctx, tx, winningTeamID, 1); err != nil {
					return err
				}
				result.Stage = models.StageCompleted
				result.TournamentCompleted = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("room winner declared",
		slog.Int("room_id", roomID),
		slog.Int("winner_team_id", result.WinnerTeamID),
		slog.Int("eliminated", result.EliminatedCount),
	)
	s.notifier.Notify("tournaments", "room_winner", map[string]interface{}{
		"room_id":        roomID,
		"winner_team_id": result.WinnerTeamID,
		"completed":      result.TournamentCompleted,
	})
	return &result, nil
}

// RoundProgress reports the completion fraction of a round so callers can
// gate the next-round action. The gate itself is still enforced
// server-side in StartRound.
func (s *BracketService) RoundProgress(ctx context.Context, tournamentID, roundNumber int) (*models.RoundProgress, error) {
	total, completed, err := s.roomRepo.RoundCounts(ctx, nil, tournamentID, roundNumber)
	if err != nil {
		return nil, err
	}
	progress := &models.RoundProgress{
		TournamentID:   tournamentID,
		RoundNumber:    roundNumber,
		TotalRooms:     total,
		CompletedRooms: completed,
	}
	if total > 0 {
		progress.Fraction = float64(completed) / float64(total)
	}
	return progress, nil
}

func (s *BracketService) ListRooms(ctx context.Context, tournamentID, roundNumber int) ([]models.Room, error) {
	return s.roomRepo.ListByRound(ctx, nil, tournamentID, roundNumber)
}

// CancelResult is shared by competition and tournament cancellation.
type CancelResult struct {
	RefundedCount int   `json:"refunded_count"`
	TotalRefunded int64 `json:"total_refunded"`
}

// CancelTournament cancels a live tournament and refunds every team
// member's entry fee in one transaction. This is the only path that
// returns tournament entry fees.
func (s *BracketService) CancelTournament(ctx context.Context, tournamentID, organizerID int, reason string) (*CancelResult, error) {
	if reason == "" {
		return nil, ErrReasonRequired
	}

	var result CancelResult

	err := s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		tournament, err := s.tournamentRepo.LockByID(ctx, tx, tournamentID)
		if err != nil {
			if errors.Is(err, repositories.ErrTournamentNotFound) {
				return ErrTournamentNotFound
			}
			return err
		}
		if tournament.OrganizerID != organizerID {
			return ErrNotTournamentOwner
		}
		if !models.IsValidStageTransition(tournament.Stage, models.StageCancelled) {
			return ErrInvalidStageTransition
		}

		if tournament.EntryFee > 0 {
			teams, err := s.teamRepo.ListByTournament(ctx, tx, tournamentID)
			if err != nil {
				return err
			}
			for _, team := range teams {
				for _, memberID := range team.MemberIDs {
					accountID := int(memberID)
					if _, err := s.accountRepo.LockByUserID(ctx, tx, accountID); err != nil {
						return err
					}
					entry := &models.LedgerEntry{
						AccountID:       accountID,
						Kind:            models.KindRefund,
						Pool:            models.PoolSpendable,
						Amount:          tournament.EntryFee,
						Status:          models.LedgerCompleted,
						Reason:          &reason,
						RelatedEntity:   models.RelatedTournament,
						RelatedEntityID: &tournamentID,
					}
					if err := s.ledgerRepo.Insert(ctx, tx, entry); err != nil {
						return err
					}
					if err := s.accountRepo.ApplyDelta(ctx, tx, accountID, models.PoolSpendable, tournament.EntryFee); err != nil {
						return err
					}
					result.RefundedCount++
					result.TotalRefunded += tournament.EntryFee
				}
			}
		}

		return s.tournamentRepo.UpdateStage(ctx, tx, tournamentID, models.StageCancelled)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("tournament cancelled",
		slog.Int("tournament_id", tournamentID),
		slog.Int("refunded_count", result.RefundedCount),
		slog.Int64("total_refunded", result.TotalRefunded),
		slog.String("reason", reason),
	)
	s.notifier.Notify("tournaments", "tournament_cancelled", map[string]interface{}{
		"tournament_id":  tournamentID,
		"reason":         reason,
		"refunded_count": result.RefundedCount,
	})
	return &result, nil
}
