package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/khelarena/economy-engine/models"
	"github.com/lib/pq"
)

var (
	ErrTeamNotFound     = errors.New("team not found")
	ErrTeamNameConflict = errors.New("team name is already taken in this tournament")
	// ErrTeamAlreadyEliminated guards the advance/eliminate updates: an
	// eliminated team never moves again.
	ErrTeamAlreadyEliminated = errors.New("team is already eliminated")
)

type TeamRepository interface {
	Create(ctx context.Context, exec SQLExecutor, team *models.Team) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Team, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]models.Team, error)
	// ListSurvivors returns non-eliminated teams sitting at the given
	// current round, in stable id order so partitioning is deterministic.
	ListSurvivors(ctx context.Context, exec SQLExecutor, tournamentID, currentRound int) ([]models.Team, error)
	Advance(ctx context.Context, exec SQLExecutor, teamID, toRound int) error
	// Eliminate marks the given teams eliminated and reports how many rows
	// actually flipped, so the caller can detect double elimination.
	Eliminate(ctx context.Context, exec SQLExecutor, teamIDs []int) (int, error)
	SetFinalRank(ctx context.Context, exec SQLExecutor, teamID, rank int) error
	CountSurvivors(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error)
}

type postgresTeamRepository struct {
	db *sqlx.DB
}

func NewPostgresTeamRepository(db *sqlx.DB) TeamRepository {
	return &postgresTeamRepository{db: db}
}

func (r *postgresTeamRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const teamColumns = `id, tournament_id, name, member_ids, current_round, is_eliminated, final_rank, created_at`

func (r *postgresTeamRepository) Create(ctx context.Context, exec SQLExecutor, t *models.Team) error {
	query := `
		INSERT INTO teams (tournament_id, name, member_ids)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.getExecutor(exec).QueryRowxContext(ctx, query, t.TournamentID, t.Name, t.MemberIDs).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code {
			case "23505":
				if pqErr.Constraint == "teams_tournament_name_key" {
					return ErrTeamNameConflict
				}
			case "23503":
				return ErrTournamentNotFound
			}
		}
		return fmt.Errorf("failed to create team: %w", err)
	}
	return nil
}

func (r *postgresTeamRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Team, error) {
	var t models.Team
	query := fmt.Sprintf(`SELECT %s FROM teams WHERE id = $1`, teamColumns)
	if err := r.getExecutor(exec).GetContext(ctx, &t, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to get team: %w", err)
	}
	return &t, nil
}

func (r *postgresTeamRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]models.Team, error) {
	teams := make([]models.Team, 0)
	query := fmt.Sprintf(`SELECT %s FROM teams WHERE tournament_id = $1 ORDER BY id ASC`, teamColumns)
	if err := r.getExecutor(exec).SelectContext(ctx, &teams, query, tournamentID); err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	return teams, nil
}

func (r *postgresTeamRepository) ListSurvivors(ctx context.Context, exec SQLExecutor, tournamentID, currentRound int) ([]models.Team, error) {
	teams := make([]models.Team, 0)
	query := fmt.Sprintf(`
		SELECT %s FROM teams
		WHERE tournament_id = $1 AND current_round = $2 AND is_eliminated = FALSE
		ORDER BY id ASC`, teamColumns)
	if err := r.getExecutor(exec).SelectContext(ctx, &teams, query, tournamentID, currentRound); err != nil {
		return nil, fmt.Errorf("failed to list surviving teams: %w", err)
	}
	return teams, nil
}

func (r *postgresTeamRepository) Advance(ctx context.Context, exec SQLExecutor, teamID, toRound int) error {
	query := `UPDATE teams SET current_round = $1 WHERE id = $2 AND is_eliminated = FALSE`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, toRound, teamID)
	if err != nil {
		return fmt.Errorf("failed to advance team: %w", err)
	}
	return checkAffectedRows(result, ErrTeamAlreadyEliminated)
}

func (r *postgresTeamRepository) Eliminate(ctx context.Context, exec SQLExecutor, teamIDs []int) (int, error) {
	if len(teamIDs) == 0 {
		return 0, nil
	}
	ids := make(pq.Int64Array, 0, len(teamIDs))
	for _, id := range teamIDs {
		ids = append(ids, int64(id))
	}
	query := `UPDATE teams SET is_eliminated = TRUE WHERE id = ANY($1) AND is_eliminated = FALSE`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to eliminate teams: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check eliminated rows: %w", err)
	}
	return int(affected), nil
}

func (r *postgresTeamRepository) SetFinalRank(ctx context.Context, exec SQLExecutor, teamID, rank int) error {
	result, err := r.getExecutor(exec).ExecContext(ctx, `UPDATE teams SET final_rank = $1 WHERE id = $2`, rank, teamID)
	if err != nil {
		return fmt.Errorf("failed to set team final rank: %w", err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) CountSurvivors(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM teams WHERE tournament_id = $1 AND is_eliminated = FALSE`
	if err := r.getExecutor(exec).GetContext(ctx, &count, query, tournamentID); err != nil {
		return 0, fmt.Errorf("failed to count surviving teams: %w", err)
	}
	return count, nil
}
