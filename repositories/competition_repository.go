package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/khelarena/economy-engine/models"
	"github.com/lib/pq"
)

var (
	ErrCompetitionNotFound    = errors.New("competition not found")
	ErrCompetitionInvalidOrg  = errors.New("invalid organizer reference")
	ErrCompetitionCapacityHit = errors.New("competition capacity reached")
	// ErrCompetitionDeclareConflict means winner_declared_at was already
	// stamped by a concurrent declaration.
	ErrCompetitionDeclareConflict = errors.New("winners already declared for competition")
	ErrCompetitionRecalcConflict  = errors.New("prize pool already recalculated for competition")
)

type ListCompetitionsFilter struct {
	OrganizerID *int
	Status      *models.CompetitionStatus
	Game        *string
	Limit       int
	Offset      int
}

type CompetitionRepository interface {
	Create(ctx context.Context, c *models.Competition) error
	GetByID(ctx context.Context, id int) (*models.Competition, error)
	LockByID(ctx context.Context, exec SQLExecutor, id int) (*models.Competition, error)
	List(ctx context.Context, filter ListCompetitionsFilter) ([]models.Competition, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.CompetitionStatus) error
	// AdjustJoinedAndPool moves joined_count and current_prize_pool
	// together; the capacity CHECK backstops the in-tx capacity test.
	AdjustJoinedAndPool(ctx context.Context, exec SQLExecutor, id int, joinedDelta int, poolDelta int64) error
	SetRecalculatedPool(ctx context.Context, exec SQLExecutor, id int, pool int64, at time.Time) error
	SetRoomCredentials(ctx context.Context, id int, roomID, roomPassword string) error
	MarkWinnersDeclared(ctx context.Context, exec SQLExecutor, id int, at time.Time) error
	MarkCancelled(ctx context.Context, exec SQLExecutor, id int, reason string) error
	// ListDueForStatusUpdate feeds the status scheduler: upcoming past
	// start time and ongoing past end time.
	ListDueForStatusUpdate(ctx context.Context, now time.Time) ([]*models.Competition, error)
	Counts(ctx context.Context) (total int, active int, err error)
	SumEscrowedPools(ctx context.Context) (int64, error)
}

type postgresCompetitionRepository struct {
	db *sqlx.DB
}

func NewPostgresCompetitionRepository(db *sqlx.DB) CompetitionRepository {
	return &postgresCompetitionRepository{db: db}
}

func (r *postgresCompetitionRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const competitionColumns = `id, name, game, organizer_id, mode, status, capacity, entry_fee, joined_count,
	current_prize_pool, prize_distribution, start_time, end_time, room_id, room_password,
	pool_recalculated_at, winner_declared_at, cancel_reason, created_at`

func (r *postgresCompetitionRepository) Create(ctx context.Context, c *models.Competition) error {
	query := `
		INSERT INTO competitions (name, game, organizer_id, mode, status, capacity, entry_fee,
			current_prize_pool, prize_distribution, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`

	err := r.db.QueryRowxContext(ctx, query,
		c.Name,
		c.Game,
		c.OrganizerID,
		c.Mode,
		c.Status,
		c.Capacity,
		c.EntryFee,
		c.CurrentPrizePool,
		c.DistributionJSON,
		c.StartTime,
		c.EndTime,
	).Scan(&c.ID, &c.CreatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" && pqErr.Constraint == "competitions_organizer_id_fkey" {
			return ErrCompetitionInvalidOrg
		}
		return fmt.Errorf("failed to create competition: %w", err)
	}
	return nil
}

func (r *postgresCompetitionRepository) findOne(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) (*models.Competition, error) {
	var c models.Competition
	if err := r.getExecutor(exec).GetContext(ctx, &c, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCompetitionNotFound
		}
		return nil, fmt.Errorf("failed to find competition: %w", err)
	}
	if err := c.DecodeDistribution(); err != nil {
		return nil, fmt.Errorf("failed to decode prize distribution for competition %d: %w", c.ID, err)
	}
	return &c, nil
}

func (r *postgresCompetitionRepository) GetByID(ctx context.Context, id int) (*models.Competition, error) {
	query := fmt.Sprintf(`SELECT %s FROM competitions WHERE id = $1`, competitionColumns)
	return r.findOne(ctx, nil, query, id)
}

func (r *postgresCompetitionRepository) LockByID(ctx context.Context, exec SQLExecutor, id int) (*models.Competition, error) {
	query := fmt.Sprintf(`SELECT %s FROM competitions WHERE id = $1 FOR UPDATE`, competitionColumns)
	return r.findOne(ctx, exec, query, id)
}

func (r *postgresCompetitionRepository) List(ctx context.Context, filter ListCompetitionsFilter) ([]models.Competition, error) {
	var conditions []string
	var args []interface{}

	if filter.OrganizerID != nil {
		args = append(args, *filter.OrganizerID)
		conditions = append(conditions, fmt.Sprintf("organizer_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Game != nil {
		args = append(args, *filter.Game)
		conditions = append(conditions, fmt.Sprintf("game = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	args = append(args, limit)
	limitClause := fmt.Sprintf(" LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	offsetClause := fmt.Sprintf(" OFFSET $%d", len(args))

	query := fmt.Sprintf(`SELECT %s FROM competitions%s ORDER BY start_time ASC%s%s`,
		competitionColumns, where, limitClause, offsetClause)

	rows := make([]models.Competition, 0)
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list competitions: %w", err)
	}
	for i := range rows {
		if err := rows[i].DecodeDistribution(); err != nil {
			return nil, fmt.Errorf("failed to decode prize distribution for competition %d: %w", rows[i].ID, err)
		}
	}
	return rows, nil
}

func (r *postgresCompetitionRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.CompetitionStatus) error {
	query := `UPDATE competitions SET status = $1 WHERE id = $2`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update competition status: %w", err)
	}
	return checkAffectedRows(result, ErrCompetitionNotFound)
}

func (r *postgresCompetitionRepository) AdjustJoinedAndPool(ctx context.Context, exec SQLExecutor, id int, joinedDelta int, poolDelta int64) error {
	query := `
		UPDATE competitions
		SET joined_count = joined_count + $1, current_prize_pool = current_prize_pool + $2
		WHERE id = $3`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, joinedDelta, poolDelta, id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23514" {
			return ErrCompetitionCapacityHit
		}
		return fmt.Errorf("failed to adjust competition counters: %w", err)
	}
	return checkAffectedRows(result, ErrCompetitionNotFound)
}

func (r *postgresCompetitionRepository) SetRecalculatedPool(ctx context.Context, exec SQLExecutor, id int, pool int64, at time.Time) error {
	query := `
		UPDATE competitions
		SET current_prize_pool = $1, pool_recalculated_at = $2
		WHERE id = $3 AND pool_recalculated_at IS NULL`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, pool, at, id)
	if err != nil {
		return fmt.Errorf("failed to set recalculated pool: %w", err)
	}
	return checkAffectedRows(result, ErrCompetitionRecalcConflict)
}

func (r *postgresCompetitionRepository) SetRoomCredentials(ctx context.Context, id int, roomID, roomPassword string) error {
	query := `UPDATE competitions SET room_id = $1, room_password = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, roomID, roomPassword, id)
	if err != nil {
		return fmt.Errorf("failed to set competition room credentials: %w", err)
	}
	return checkAffectedRows(result, ErrCompetitionNotFound)
}

func (r *postgresCompetitionRepository) MarkWinnersDeclared(ctx context.Context, exec SQLExecutor, id int, at time.Time) error {
	query := `UPDATE competitions SET winner_declared_at = $1 WHERE id = $2 AND winner_declared_at IS NULL`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("failed to mark winners declared: %w", err)
	}
	return checkAffectedRows(result, ErrCompetitionDeclareConflict)
}

func (r *postgresCompetitionRepository) MarkCancelled(ctx context.Context, exec SQLExecutor, id int, reason string) error {
	query := `UPDATE competitions SET status = 'cancelled', cancel_reason = $1 WHERE id = $2`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, reason, id)
	if err != nil {
		return fmt.Errorf("failed to mark competition cancelled: %w", err)
	}
	return checkAffectedRows(result, ErrCompetitionNotFound)
}

func (r *postgresCompetitionRepository) ListDueForStatusUpdate(ctx context.Context, now time.Time) ([]*models.Competition, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM competitions
		WHERE (status = 'upcoming' AND start_time <= $1)
		   OR (status = 'ongoing' AND end_time <= $1)
		ORDER BY start_time ASC`, competitionColumns)

	rows := make([]models.Competition, 0)
	if err := r.db.SelectContext(ctx, &rows, query, now); err != nil {
		return nil, fmt.Errorf("failed to list competitions due for status update: %w", err)
	}
	out := make([]*models.Competition, 0, len(rows))
	for i := range rows {
		if err := rows[i].DecodeDistribution(); err != nil {
			return nil, fmt.Errorf("failed to decode prize distribution for competition %d: %w", rows[i].ID, err)
		}
		out = append(out, &rows[i])
	}
	return out, nil
}

func (r *postgresCompetitionRepository) Counts(ctx context.Context) (int, int, error) {
	var row struct {
		Total  int `db:"total"`
		Active int `db:"active"`
	}
	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status IN ('upcoming', 'ongoing')) AS active
		FROM competitions`
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		return 0, 0, fmt.Errorf("failed to count competitions: %w", err)
	}
	return row.Total, row.Active, nil
}

func (r *postgresCompetitionRepository) SumEscrowedPools(ctx context.Context) (int64, error) {
	var sum int64
	query := `
		SELECT COALESCE(SUM(current_prize_pool), 0)
		FROM competitions
		WHERE status IN ('upcoming', 'ongoing')`
	if err := r.db.GetContext(ctx, &sum, query); err != nil {
		return 0, fmt.Errorf("failed to sum escrowed prize pools: %w", err)
	}
	return sum, nil
}
