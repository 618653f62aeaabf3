package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

type txKey struct{}

// querier is the part of *sqlx.DB and *sqlx.Tx the Store needs.
type querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// TxManager runs functions inside a database transaction carried by the context.
// Store methods called with that context join the transaction.
type TxManager struct {
	db     *sqlx.DB
	logger *slog.Logger
}

func NewTxManager(db *sqlx.DB, logger *slog.Logger) *TxManager {
	return &TxManager{db: db, logger: logger}
}

// Do commits when fn returns nil and rolls back otherwise. A nested call joins the
// outer transaction.
func (m *TxManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			m.logger.Warn("tx rollback failed", "error", err)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
