package services

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/khelarena/economy-engine/repositories"
)

// TxManager runs a function inside one database transaction. Every
// money-moving operation in this package goes through it: either the
// whole state transition commits or none of it does.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(tx repositories.SQLExecutor) error) error
}

type sqlTxManager struct {
	db *sqlx.DB
}

func NewSQLTxManager(db *sqlx.DB) TxManager {
	return &sqlTxManager{db: db}
}

func (m *sqlTxManager) WithinTx(ctx context.Context, fn func(tx repositories.SQLExecutor) error) (err error) {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = fmt.Errorf("transaction processing error: %w (rollback also failed: %v)", err, rbErr)
			}
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			err = fmt.Errorf("failed to commit transaction: %w", cErr)
		}
	}()

	err = fn(tx)
	return err
}
