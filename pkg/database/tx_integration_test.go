//go:build integration

package database_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/herbtrace/pkg/database"
	"github.com/ekaya-inc/herbtrace/pkg/testhelpers"
)

const readOnlyTransaction = "25006"

var errAbort = errors.New("abort")

func setup(t *testing.T) *testhelpers.TestDB {
	t.Helper()
	tdb := testhelpers.GetTestDB(t)
	tdb.Truncate(t)
	return tdb
}

func insertCollector(ctx context.Context, collectorID string) error {
	q, ok := database.GetQuerier(ctx)
	if !ok {
		return errors.New("no database scope in context")
	}
	_, err := q.Exec(ctx, `INSERT INTO collectors (collector_id, name) VALUES ($1, 'Ramesh Kumar')`, collectorID)
	return err
}

func countCollectors(t *testing.T, tdb *testhelpers.TestDB) int {
	t.Helper()
	var n int
	require.NoError(t, tdb.DB.QueryRow(context.Background(), `SELECT count(*) FROM collectors`).Scan(&n))
	return n
}

func TestInTx_CommitsOnSuccess(t *testing.T) {
	tdb := setup(t)

	err := tdb.DB.InTx(context.Background(), func(ctx context.Context) error {
		scope, ok := database.GetScope(ctx)
		require.True(t, ok)
		assert.True(t, scope.InTransaction())
		return insertCollector(ctx, "COL001")
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countCollectors(t, tdb))
}

func TestInTx_RollsBackOnError(t *testing.T) {
	tdb := setup(t)
	ctx := tdb.Scoped(t)

	err := tdb.DB.InTx(ctx, func(ctx context.Context) error {
		if err := insertCollector(ctx, "COL001"); err != nil {
			return err
		}
		return errAbort
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errAbort))
	assert.Equal(t, 0, countCollectors(t, tdb))

	// The request scope is usable again after the rollback.
	scope, ok := database.GetScope(ctx)
	require.True(t, ok)
	assert.False(t, scope.InTransaction())
	require.NoError(t, insertCollector(ctx, "COL002"))
	assert.Equal(t, 1, countCollectors(t, tdb))
}

func TestInTx_NestedCallJoinsOuterTransaction(t *testing.T) {
	tdb := setup(t)
	ctx := tdb.Scoped(t)

	err := tdb.DB.InTx(ctx, func(outer context.Context) error {
		outerScope, _ := database.GetScope(outer)

		innerErr := tdb.DB.InTx(outer, func(inner context.Context) error {
			innerScope, _ := database.GetScope(inner)
			if innerScope != outerScope {
				t.Errorf("nested call opened a new scope")
			}
			return insertCollector(inner, "COL001")
		})
		if innerErr != nil {
			return innerErr
		}
		// The inner call must not have committed.
		if n := countCollectors(t, tdb); n != 0 {
			t.Errorf("expected inner write to stay uncommitted, saw %d collectors", n)
		}
		return errAbort
	})
	require.True(t, errors.Is(err, errAbort))
	assert.Equal(t, 0, countCollectors(t, tdb))
}

func TestInTx_NestedErrorPropagates(t *testing.T) {
	tdb := setup(t)

	err := tdb.DB.InTx(context.Background(), func(outer context.Context) error {
		if err := insertCollector(outer, "COL001"); err != nil {
			return err
		}
		return tdb.DB.InTx(outer, func(context.Context) error { return errAbort })
	})
	require.True(t, errors.Is(err, errAbort))
	assert.Equal(t, 0, countCollectors(t, tdb))
}

func TestInSnapshot_RejectsWrites(t *testing.T) {
	tdb := setup(t)

	err := tdb.DB.InSnapshot(context.Background(), func(ctx context.Context) error {
		return insertCollector(ctx, "COL001")
	})
	require.Error(t, err)
	var pgErr *pgconn.PgError
	require.True(t, errors.As(err, &pgErr))
	assert.Equal(t, readOnlyTransaction, pgErr.Code)
	assert.Equal(t, 0, countCollectors(t, tdb))
}

func TestInSnapshot_SeesOneCommittedState(t *testing.T) {
	tdb := setup(t)
	ctx := tdb.Scoped(t)
	require.NoError(t, insertCollector(ctx, "COL001"))

	var before, after int
	err := tdb.DB.InSnapshot(ctx, func(ctx context.Context) error {
		q, _ := database.GetQuerier(ctx)
		if err := q.QueryRow(ctx, `SELECT count(*) FROM collectors`).Scan(&before); err != nil {
			return err
		}

		// Committed on another pooled connection while the snapshot is open.
		if _, err := tdb.DB.Exec(context.Background(),
			`INSERT INTO collectors (collector_id, name) VALUES ('COL002', 'Sita Devi')`); err != nil {
			return err
		}

		return q.QueryRow(ctx, `SELECT count(*) FROM collectors`).Scan(&after)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, before)
	assert.Equal(t, 1, after)
	assert.Equal(t, 2, countCollectors(t, tdb))
}
