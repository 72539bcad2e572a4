package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/khelarena/economy-engine/models"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomStatusConflict covers both setting credentials twice and
	// declaring a winner on a room that is not live.
	ErrRoomStatusConflict = errors.New("room is not in the expected status")
	// ErrRoomWinnerConflict means winner_team_id was already set; it is
	// immutable once written.
	ErrRoomWinnerConflict = errors.New("room winner already declared")
)

type RoomRepository interface {
	CreateBatch(ctx context.Context, exec SQLExecutor, rooms []*models.Room) error
	GetByID(ctx context.Context, id int) (*models.Room, error)
	LockByID(ctx context.Context, exec SQLExecutor, id int) (*models.Room, error)
	ListByRound(ctx context.Context, exec SQLExecutor, tournamentID, roundNumber int) ([]models.Room, error)
	// RoundCounts reports total and completed rooms for a round, for the
	// next-round gate and the client-visible completion fraction.
	RoundCounts(ctx context.Context, exec SQLExecutor, tournamentID, roundNumber int) (total int, completed int, err error)
	SetCredentials(ctx context.Context, exec SQLExecutor, roomID int, credID, credPass string, scheduled *time.Time) error
	// SetWinner stamps the winner and completes the room in one statement;
	// the WHERE clause makes a second declaration lose.
	SetWinner(ctx context.Context, exec SQLExecutor, roomID, teamID int) error
}

type postgresRoomRepository struct {
	db *sqlx.DB
}

func NewPostgresRoomRepository(db *sqlx.DB) RoomRepository {
	return &postgresRoomRepository{db: db}
}

func (r *postgresRoomRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const roomColumns = `id, tournament_id, round_number, room_number, assigned_team_ids, status,
	credential_id, credential_pass, scheduled_time, winner_team_id, created_at`

func (r *postgresRoomRepository) CreateBatch(ctx context.Context, exec SQLExecutor, rooms []*models.Room) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO rooms (tournament_id, round_number, room_number, assigned_team_ids, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	for _, room := range rooms {
		err := executor.QueryRowxContext(ctx, query,
			room.TournamentID,
			room.RoundNumber,
			room.RoomNumber,
			room.AssignedTeamIDs,
			room.Status,
		).Scan(&room.ID, &room.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create room %d of round %d: %w", room.RoomNumber, room.RoundNumber, err)
		}
	}
	return nil
}

func (r *postgresRoomRepository) findOne(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) (*models.Room, error) {
	var room models.Room
	if err := r.getExecutor(exec).GetContext(ctx, &room, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to find room: %w", err)
	}
	return &room, nil
}

func (r *postgresRoomRepository) GetByID(ctx context.Context, id int) (*models.Room, error) {
	query := fmt.Sprintf(`SELECT %s FROM rooms WHERE id = $1`, roomColumns)
	return r.findOne(ctx, nil, query, id)
}

func (r *postgresRoomRepository) LockByID(ctx context.Context, exec SQLExecutor, id int) (*models.Room, error) {
	query := fmt.Sprintf(`SELECT %s FROM rooms WHERE id = $1 FOR UPDATE`, roomColumns)
	return r.findOne(ctx, exec, query, id)
}

func (r *postgresRoomRepository) ListByRound(ctx context.Context, exec SQLExecutor, tournamentID, roundNumber int) ([]models.Room, error) {
	rooms := make([]models.Room, 0)
	query := fmt.Sprintf(`
		SELECT %s FROM rooms
		WHERE tournament_id = $1 AND round_number = $2
		ORDER BY room_number ASC`, roomColumns)
	if err := r.getExecutor(exec).SelectContext(ctx, &rooms, query, tournamentID, roundNumber); err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return rooms, nil
}

func (r *postgresRoomRepository) RoundCounts(ctx context.Context, exec SQLExecutor, tournamentID, roundNumber int) (int, int, error) {
	var row struct {
		Total     int `db:"total"`
		Completed int `db:"completed"`
	}
	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'completed') AS completed
		FROM rooms
		WHERE tournament_id = $1 AND round_number = $2`
	if err := r.getExecutor(exec).GetContext(ctx, &row, query, tournamentID, roundNumber); err != nil {
		return 0, 0, fmt.Errorf("failed to count rooms: %w", err)
	}
	return row.Total, row.Completed, nil
}

func (r *postgresRoomRepository) SetCredentials(ctx context.Context, exec SQLExecutor, roomID int, credID, credPass string, scheduled *time.Time) error {
	query := `
		UPDATE rooms
		SET credential_id = $1, credential_pass = $2, scheduled_time = $3, status = 'credentials_set'
		WHERE id = $4 AND status = 'waiting'`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, credID, credPass, scheduled, roomID)
	if err != nil {
		return fmt.Errorf("failed to set room credentials: %w", err)
	}
	return checkAffectedRows(result, ErrRoomStatusConflict)
}

func (r *postgresRoomRepository) SetWinner(ctx context.Context, exec SQLExecutor, roomID, teamID int) error {
	query := `
		UPDATE rooms
		SET winner_team_id = $1, status = 'completed'
		WHERE id = $2 AND winner_team_id IS NULL AND status = 'credentials_set'`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, teamID, roomID)
	if err != nil {
		return fmt.Errorf("failed to set room winner: %w", err)
	}
	return checkAffectedRows(result, ErrRoomWinnerConflict)
}
