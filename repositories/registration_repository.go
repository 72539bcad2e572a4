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
	ErrRegistrationNotFound = errors.New("registration not found")
	// ErrRegistrationConflict is the unique-constraint view of a duplicate
	// join: one account registers for one competition at most once.
	ErrRegistrationConflict           = errors.New("account is already registered for this competition")
	ErrRegistrationCompetitionInvalid = errors.New("registration competition conflict or invalid")
	ErrRegistrationAccountInvalid     = errors.New("registration account conflict or invalid")
)

type RegistrationRepository interface {
	Create(ctx context.Context, exec SQLExecutor, reg *models.Registration) error
	FindByAccountAndCompetition(ctx context.Context, exec SQLExecutor, accountID, competitionID int) (*models.Registration, error)
	ListByCompetition(ctx context.Context, exec SQLExecutor, competitionID int) ([]models.Registration, error)
	ListByTeamName(ctx context.Context, exec SQLExecutor, competitionID int, teamName string) ([]models.Registration, error)
	Delete(ctx context.Context, exec SQLExecutor, id int) error
}

type postgresRegistrationRepository struct {
	db *sqlx.DB
}

func NewPostgresRegistrationRepository(db *sqlx.DB) RegistrationRepository {
	return &postgresRegistrationRepository{db: db}
}

func (r *postgresRegistrationRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const registrationColumns = `id, competition_id, account_id, team_name, paid_fee, created_at`

func (r *postgresRegistrationRepository) Create(ctx context.Context, exec SQLExecutor, reg *models.Registration) error {
	query := `
		INSERT INTO registrations (competition_id, account_id, team_name, paid_fee)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.getExecutor(exec).QueryRowxContext(ctx, query,
		reg.CompetitionID,
		reg.AccountID,
		reg.TeamName,
		reg.PaidFee,
	).Scan(&reg.ID, &reg.CreatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code {
			case "23505":
				if pqErr.Constraint == "registrations_competition_account_key" {
					return ErrRegistrationConflict
				}
			case "23503":
				switch pqErr.Constraint {
				case "registrations_competition_id_fkey":
					return ErrRegistrationCompetitionInvalid
				case "registrations_account_id_fkey":
					return ErrRegistrationAccountInvalid
				}
			}
		}
		return fmt.Errorf("failed to create registration: %w", err)
	}
	return nil
}

func (r *postgresRegistrationRepository) FindByAccountAndCompetition(ctx context.Context, exec SQLExecutor, accountID, competitionID int) (*models.Registration, error) {
	var reg models.Registration
	query := fmt.Sprintf(`SELECT %s FROM registrations WHERE account_id = $1 AND competition_id = $2`, registrationColumns)
	if err := r.getExecutor(exec).GetContext(ctx, &reg, query, accountID, competitionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to find registration: %w", err)
	}
	return &reg, nil
}

func (r *postgresRegistrationRepository) ListByCompetition(ctx context.Context, exec SQLExecutor, competitionID int) ([]models.Registration, error) {
	regs := make([]models.Registration, 0)
	query := fmt.Sprintf(`
		SELECT %s FROM registrations
		WHERE competition_id = $1
		ORDER BY created_at ASC, id ASC`, registrationColumns)
	if err := r.getExecutor(exec).SelectContext(ctx, &regs, query, competitionID); err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	return regs, nil
}

func (r *postgresRegistrationRepository) ListByTeamName(ctx context.Context, exec SQLExecutor, competitionID int, teamName string) ([]models.Registration, error) {
	regs := make([]models.Registration, 0)
	query := fmt.Sprintf(`
		SELECT %s FROM registrations
		WHERE competition_id = $1 AND team_name = $2
		ORDER BY created_at ASC, id ASC`, registrationColumns)
	if err := r.getExecutor(exec).SelectContext(ctx, &regs, query, competitionID, teamName); err != nil {
		return nil, fmt.Errorf("failed to list registrations by team: %w", err)
	}
	return regs, nil
}

func (r *postgresRegistrationRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	result, err := r.getExecutor(exec).ExecContext(ctx, `DELETE FROM registrations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete registration: %w", err)
	}
	return checkAffectedRows(result, ErrRegistrationNotFound)
}
