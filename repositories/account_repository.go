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
	ErrAccountNotFound        = errors.New("account not found")
	ErrAccountBalanceNegative = errors.New("account balance would go negative")
)

type AccountRepository interface {
	Create(ctx context.Context, exec SQLExecutor, userID int) error
	GetByUserID(ctx context.Context, userID int) (*models.Account, error)
	// LockByUserID takes a row lock on the account for the lifetime of the
	// surrounding transaction, serializing concurrent balance mutations.
	LockByUserID(ctx context.Context, exec SQLExecutor, userID int) (*models.Account, error)
	// ApplyDelta shifts one pool by delta. The WHERE clause refuses to
	// drive a balance negative even if the service-level check was raced.
	ApplyDelta(ctx context.Context, exec SQLExecutor, userID int, pool models.BalancePool, delta int64) error
	SetFlags(ctx context.Context, exec SQLExecutor, userID int, frozen, banned bool) error
	CountFlagged(ctx context.Context) (frozen int, banned int, err error)
}

type postgresAccountRepository struct {
	db *sqlx.DB
}

func NewPostgresAccountRepository(db *sqlx.DB) AccountRepository {
	return &postgresAccountRepository{db: db}
}

func (r *postgresAccountRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const accountColumns = `user_id, spendable_balance, withdrawable_balance, frozen, banned, created_at, updated_at`

func (r *postgresAccountRepository) Create(ctx context.Context, exec SQLExecutor, userID int) error {
	query := `INSERT INTO accounts (user_id) VALUES ($1)`
	_, err := r.getExecutor(exec).ExecContext(ctx, query, userID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to create account for user %d: %w", userID, err)
	}
	return nil
}

func (r *postgresAccountRepository) GetByUserID(ctx context.Context, userID int) (*models.Account, error) {
	var a models.Account
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE user_id = $1`, accountColumns)
	if err := r.db.GetContext(ctx, &a, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &a, nil
}

func (r *postgresAccountRepository) LockByUserID(ctx context.Context, exec SQLExecutor, userID int) (*models.Account, error) {
	var a models.Account
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE user_id = $1 FOR UPDATE`, accountColumns)
	if err := r.getExecutor(exec).GetContext(ctx, &a, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}
	return &a, nil
}

func (r *postgresAccountRepository) ApplyDelta(ctx context.Context, exec SQLExecutor, userID int, pool models.BalancePool, delta int64) error {
	column := "spendable_balance"
	if pool == models.PoolWithdrawable {
		column = "withdrawable_balance"
	}
	query := fmt.Sprintf(`
		UPDATE accounts
		SET %[1]s = %[1]s + $1, updated_at = NOW()
		WHERE user_id = $2 AND %[1]s + $1 >= 0`, column)

	result, err := r.getExecutor(exec).ExecContext(ctx, query, delta, userID)
	if err != nil {
		return fmt.Errorf("failed to apply balance delta: %w", err)
	}
	return checkAffectedRows(result, ErrAccountBalanceNegative)
}

func (r *postgresAccountRepository) SetFlags(ctx context.Context, exec SQLExecutor, userID int, frozen, banned bool) error {
	query := `UPDATE accounts SET frozen = $1, banned = $2, updated_at = NOW() WHERE user_id = $3`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, frozen, banned, userID)
	if err != nil {
		return fmt.Errorf("failed to set account flags: %w", err)
	}
	return checkAffectedRows(result, ErrAccountNotFound)
}

func (r *postgresAccountRepository) CountFlagged(ctx context.Context) (int, int, error) {
	var row struct {
		Frozen int `db:"frozen"`
		Banned int `db:"banned"`
	}
	query := `
		SELECT
			COUNT(*) FILTER (WHERE frozen) AS frozen,
			COUNT(*) FILTER (WHERE banned) AS banned
		FROM accounts`
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		return 0, 0, fmt.Errorf("failed to count flagged accounts: %w", err)
	}
	return row.Frozen, row.Banned, nil
}
