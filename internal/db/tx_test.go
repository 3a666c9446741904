package db

import (
	"context"
	"errors"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return New(mock), mock
}

func TestWithinTx_Commit(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO t`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := db.WithinTx(context.Background(), func(ctx context.Context) error {
		require.True(t, InTx(ctx))
		_, err := db.Conn(ctx).Exec(ctx, `INSERT INTO t VALUES (1)`)
		return err
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_RollbackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := db.WithinTx(context.Background(), func(ctx context.Context) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_RollbackOnPanic(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	require.Panics(t, func() {
		_ = db.WithinTx(context.Background(), func(ctx context.Context) error {
			panic("kaboom")
		})
	})
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_NestedJoinsOuter(t *testing.T) {
	db, mock := newMockDB(t)
	inner := errors.New("inner failed")

	// Exactly one BEGIN and one ROLLBACK: the inner call must not open its own unit.
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO t`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectRollback()

	err := db.WithinTx(context.Background(), func(ctx context.Context) error {
		if _, err := db.Conn(ctx).Exec(ctx, `INSERT INTO t VALUES (1)`); err != nil {
			return err
		}
		return db.WithinTx(ctx, func(ctx context.Context) error {
			return inner
		})
	})
	require.ErrorIs(t, err, inner)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_BeginError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin().WillReturnError(errors.New("no conn"))

	called := false
	err := db.WithinTx(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	require.Error(t, err)
	require.False(t, called)
}

func TestConn_OutsideTxUsesPool(t *testing.T) {
	db, _ := newMockDB(t)
	require.False(t, InTx(context.Background()))
	require.Equal(t, db.Pool, db.Conn(context.Background()))
}
