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
	ErrLedgerEntryNotFound  = errors.New("ledger entry not found")
	ErrLedgerInvalidAccount = errors.New("ledger entry references an unknown account")
	// ErrLedgerStatusConflict means the entry was not in the expected
	// status, typically because a concurrent admin action got there first.
	ErrLedgerStatusConflict = errors.New("ledger entry status conflict")
)

type LedgerRepository interface {
	Insert(ctx context.Context, exec SQLExecutor, entry *models.LedgerEntry) error
	LockByID(ctx context.Context, exec SQLExecutor, id int) (*models.LedgerEntry, error)
	// UpdateStatus transitions from exactly the given status, so a
	// concurrent approve/reject loses instead of double-applying.
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, from, to models.LedgerStatus) error
	ListByAccount(ctx context.Context, accountID, limit, offset int) ([]models.LedgerEntry, error)
	// SumEffectiveByAccountAndPool replays the ledger for one pool. It
	// counts completed entries plus pending and rejected withdrawal
	// debits: a withdrawal hold debits the balance at request time, and
	// a rejection reverses it through a separate completed refund entry
	// rather than by un-counting the hold. The account row balances must
	// always equal this sum.
	SumEffectiveByAccountAndPool(ctx context.Context, exec SQLExecutor, accountID int, pool models.BalancePool) (int64, error)
	ListPendingWithdrawals(ctx context.Context, limit, offset int) ([]models.LedgerEntry, error)
	PendingWithdrawalStats(ctx context.Context) (count int, total int64, err error)
}

type postgresLedgerRepository struct {
	db *sqlx.DB
}

func NewPostgresLedgerRepository(db *sqlx.DB) LedgerRepository {
	return &postgresLedgerRepository{db: db}
}

func (r *postgresLedgerRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const ledgerColumns = `id, account_id, kind, pool, amount, status, reason, destination, related_entity, related_entity_id, created_at`

func (r *postgresLedgerRepository) Insert(ctx context.Context, exec SQLExecutor, e *models.LedgerEntry) error {
	query := `
		INSERT INTO ledger_entries (account_id, kind, pool, amount, status, reason, destination, related_entity, related_entity_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`

	err := r.getExecutor(exec).QueryRowxContext(ctx, query,
		e.AccountID,
		e.Kind,
		e.Pool,
		e.Amount,
		e.Status,
		e.Reason,
		e.Destination,
		e.RelatedEntity,
		e.RelatedEntityID,
	).Scan(&e.ID, &e.CreatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return ErrLedgerInvalidAccount
		}
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return nil
}

func (r *postgresLedgerRepository) LockByID(ctx context.Context, exec SQLExecutor, id int) (*models.LedgerEntry, error) {
	var e models.LedgerEntry
	query := fmt.Sprintf(`SELECT %s FROM ledger_entries WHERE id = $1 FOR UPDATE`, ledgerColumns)
	if err := r.getExecutor(exec).GetContext(ctx, &e, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLedgerEntryNotFound
		}
		return nil, fmt.Errorf("failed to lock ledger entry: %w", err)
	}
	return &e, nil
}

func (r *postgresLedgerRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, from, to models.LedgerStatus) error {
	query := `UPDATE ledger_entries SET status = $1 WHERE id = $2 AND status = $3`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, to, id, from)
	if err != nil {
		return fmt.Errorf("failed to update ledger entry status: %w", err)
	}
	return checkAffectedRows(result, ErrLedgerStatusConflict)
}

func (r *postgresLedgerRepository) ListByAccount(ctx context.Context, accountID, limit, offset int) ([]models.LedgerEntry, error) {
	entries := make([]models.LedgerEntry, 0)
	query := fmt.Sprintf(`
		SELECT %s FROM ledger_entries
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, ledgerColumns)
	if err := r.db.SelectContext(ctx, &entries, query, accountID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	return entries, nil
}

func (r *postgresLedgerRepository) SumEffectiveByAccountAndPool(ctx context.Context, exec SQLExecutor, accountID int, pool models.BalancePool) (int64, error) {
	var sum int64
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM ledger_entries
		WHERE account_id = $1 AND pool = $2
		  AND (status = 'completed' OR (kind = 'withdrawal' AND status IN ('pending', 'rejected')))`
	if err := r.getExecutor(exec).GetContext(ctx, &sum, query, accountID, pool); err != nil {
		return 0, fmt.Errorf("failed to sum ledger entries: %w", err)
	}
	return sum, nil
}

func (r *postgresLedgerRepository) ListPendingWithdrawals(ctx context.Context, limit, offset int) ([]models.LedgerEntry, error) {
	entries := make([]models.LedgerEntry, 0)
	query := fmt.Sprintf(`
		SELECT %s FROM ledger_entries
		WHERE kind = 'withdrawal' AND status = 'pending'
		ORDER BY created_at ASC
		LIMIT $1 OFFSET $2`, ledgerColumns)
	if err := r.db.SelectContext(ctx, &entries, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list pending withdrawals: %w", err)
	}
	return entries, nil
}

func (r *postgresLedgerRepository) PendingWithdrawalStats(ctx context.Context) (int, int64, error) {
	var row struct {
		Count int   `db:"count"`
		Total int64 `db:"total"`
	}
	query := `
		SELECT COUNT(*) AS count, COALESCE(SUM(-amount), 0) AS total
		FROM ledger_entries
		WHERE kind = 'withdrawal' AND status = 'pending'`
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		return 0, 0, fmt.Errorf("failed to get pending withdrawal stats: %w", err)
	}
	return row.Count, row.Total, nil
}
