package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// SnapshotTxOptions gives a read-only view where every statement sees the
// same committed state.
var SnapshotTxOptions = pgx.TxOptions{
	IsoLevel:   pgx.RepeatableRead,
	AccessMode: pgx.ReadOnly,
}

// InTx runs fn inside a read-write transaction.
// See InTxWithOptions.
func (db *DB) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.InTxWithOptions(ctx, pgx.TxOptions{}, fn)
}

// InSnapshot runs fn inside a read-only REPEATABLE READ transaction.
func (db *DB) InSnapshot(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.InTxWithOptions(ctx, SnapshotTxOptions, fn)
}

// InTxWithOptions runs fn inside a transaction and commits when fn returns nil.
//
// The transaction is opened on the Scope already in ctx, or on a connection
// acquired for the call when there is none. The context passed to fn carries
// the transaction, so repositories called from fn participate in it.
// A call made while a transaction is already open joins that transaction
// and leaves commit or rollback to the outermost caller.
func (db *DB) InTxWithOptions(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context) error) error {
	scope, ok := GetScope(ctx)
	if ok && scope.InTransaction() {
		return fn(ctx)
	}

	if !ok {
		acquired, err := db.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("failed to acquire connection: %w", err)
		}
		defer acquired.Close()
		scope = acquired
	}

	tx, err := scope.Conn.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// No-op after a successful commit.
		_ = tx.Rollback(context.Background())
	}()

	txCtx := SetScope(ctx, &Scope{Conn: scope.Conn, tx: tx})
	if err := fn(txCtx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
