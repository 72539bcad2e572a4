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
	ErrTournamentNotFound   = errors.New("tournament not found")
	ErrTournamentInvalidOrg = errors.New("invalid tournament organizer reference")
)

type TournamentRepository interface {
	Create(ctx context.Context, t *models.Tournament) error
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	LockByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)
	UpdateStage(ctx context.Context, exec SQLExecutor, id int, stage models.TournamentStage) error
	List(ctx context.Context, organizerID *int, limit, offset int) ([]models.Tournament, error)
	Count(ctx context.Context) (int, error)
}

type postgresTournamentRepository struct {
	db *sqlx.DB
}

func NewPostgresTournamentRepository(db *sqlx.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const tournamentColumns = `id, name, game, organizer_id, stage, entry_fee, created_at`

func (r *postgresTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	query := `
		INSERT INTO tournaments (name, game, organizer_id, stage, entry_fee)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.db.QueryRowxContext(ctx, query,
		t.Name,
		t.Game,
		t.OrganizerID,
		t.Stage,
		t.EntryFee,
	).Scan(&t.ID, &t.CreatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" && pqErr.Constraint == "tournaments_organizer_id_fkey" {
			return ErrTournamentInvalidOrg
		}
		return fmt.Errorf("failed to create tournament: %w", err)
	}
	return nil
}

func (r *postgresTournamentRepository) findOne(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) (*models.Tournament, error) {
	var t models.Tournament
	if err := r.getExecutor(exec).GetContext(ctx, &t, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to find tournament: %w", err)
	}
	return &t, nil
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	query := fmt.Sprintf(`SELECT %s FROM tournaments WHERE id = $1`, tournamentColumns)
	return r.findOne(ctx, nil, query, id)
}

func (r *postgresTournamentRepository) LockByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	query := fmt.Sprintf(`SELECT %s FROM tournaments WHERE id = $1 FOR UPDATE`, tournamentColumns)
	return r.findOne(ctx, exec, query, id)
}

func (r *postgresTournamentRepository) UpdateStage(ctx context.Context, exec SQLExecutor, id int, stage models.TournamentStage) error {
	result, err := r.getExecutor(exec).ExecContext(ctx, `UPDATE tournaments SET stage = $1 WHERE id = $2`, stage, id)
	if err != nil {
		return fmt.Errorf("failed to update tournament stage: %w", err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) List(ctx context.Context, organizerID *int, limit, offset int) ([]models.Tournament, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	tournaments := make([]models.Tournament, 0)
	if organizerID != nil {
		query := fmt.Sprintf(`SELECT %s FROM tournaments WHERE organizer_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, tournamentColumns)
		if err := r.db.SelectContext(ctx, &tournaments, query, *organizerID, limit, offset); err != nil {
			return nil, fmt.Errorf("failed to list tournaments: %w", err)
		}
		return tournaments, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM tournaments ORDER BY created_at DESC LIMIT $1 OFFSET $2`, tournamentColumns)
	if err := r.db.SelectContext(ctx, &tournaments, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	return tournaments, nil
}

func (r *postgresTournamentRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM tournaments`); err != nil {
		return 0, fmt.Errorf("failed to count tournaments: %w", err)
	}
	return count, nil
}
