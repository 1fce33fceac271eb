package sql

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/ormapi/dialect"
)

func TestDriver_ExecQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	drv := OpenDB(dialect.Postgres, db)
	assert.Equal(t, dialect.Postgres, drv.Dialect())

	mock.ExpectExec("UPDATE users").WithArgs("a8m").WillReturnResult(sqlmock.NewResult(0, 2))
	var res Result
	require.NoError(t, drv.Exec(context.Background(), "UPDATE users SET name = $1", []any{"a8m"}, &res))
	n, err := res.RowsAffected()
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	rows := &Rows{}
	require.NoError(t, drv.Query(context.Background(), "SELECT 1", []any{}, rows))
	require.NoError(t, rows.Close())

	assert.Error(t, drv.Query(context.Background(), "SELECT 1", []any{}, nil), "rows must be *Rows")
	assert.Error(t, drv.Exec(context.Background(), "SELECT 1", "bad", nil), "args must be []any")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunTx(t *testing.T) {
	ctx := context.Background()
	t.Run("commit", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		drv := OpenDB(dialect.MySQL, db)
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()
		err = RunTx(ctx, drv, func(tx dialect.Tx) error {
			return tx.Exec(ctx, "INSERT INTO users DEFAULT VALUES", []any{}, nil)
		})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("rollback on error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		drv := OpenDB(dialect.MySQL, db)
		mock.ExpectBegin()
		mock.ExpectRollback()
		boom := errors.New("boom")
		err = RunTx(ctx, drv, func(dialect.Tx) error { return boom })
		require.ErrorIs(t, err, boom)
		require.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("rollback on panic", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		drv := OpenDB(dialect.MySQL, db)
		mock.ExpectBegin()
		mock.ExpectRollback()
		assert.Panics(t, func() {
			_ = RunTx(ctx, drv, func(dialect.Tx) error { panic("boom") })
		})
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStatsDriver(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	drv := NewStatsDriver(OpenDB(dialect.SQLite, db), WithLogger(logger), WithDebug(), WithSlowThreshold(time.Hour))
	ctx := context.Background()

	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	rows := &Rows{}
	require.NoError(t, drv.Query(ctx, "SELECT 1", []any{}, rows))
	require.NoError(t, rows.Close())

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM users").WillReturnError(errors.New("locked"))
	mock.ExpectRollback()
	err = RunTx(ctx, drv, func(tx dialect.Tx) error {
		return tx.Exec(ctx, "DELETE FROM users", []any{}, nil)
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	s := drv.QueryStats().Snapshot()
	assert.EqualValues(t, 1, s.Queries)
	assert.EqualValues(t, 1, s.Execs)
	assert.EqualValues(t, 1, s.Transactions)
	assert.EqualValues(t, 1, s.Rollbacks)
	assert.EqualValues(t, 1, s.Errors)
	assert.Zero(t, s.SlowQueries)
	assert.Contains(t, buf.String(), "sql statement")
	assert.Contains(t, s.String(), "queries=1")
}
