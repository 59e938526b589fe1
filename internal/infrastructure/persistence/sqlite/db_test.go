package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWithTransaction_Commit(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO notes").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	db := NewDB(sqlDB, zap.NewNop())
	err = db.WithTransaction(context.Background(), func(ctx context.Context) error {
		require.NotNil(t, TxFromContext(ctx))
		_, err := ExecutorFor(ctx, sqlDB).ExecContext(ctx, "INSERT INTO notes (id) VALUES (?)", "n1")
		return err
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransaction_RollbackOnError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	db := NewDB(sqlDB, zap.NewNop())
	boom := errors.New("boom")
	err = db.WithTransaction(context.Background(), func(ctx context.Context) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransaction_NestedJoinsOuter(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()

	db := NewDB(sqlDB, zap.NewNop())
	err = db.WithTransaction(context.Background(), func(outer context.Context) error {
		return db.WithTransaction(outer, func(inner context.Context) error {
			assert.Same(t, TxFromContext(outer), TxFromContext(inner))
			return nil
		})
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransaction_RollbackOnPanic(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	db := NewDB(sqlDB, zap.NewNop())
	assert.Panics(t, func() {
		_ = db.WithTransaction(context.Background(), func(ctx context.Context) error {
			panic("kaboom")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutorFor_OutsideTransaction(t *testing.T) {
	sqlDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	assert.Same(t, sqlDB, ExecutorFor(context.Background(), sqlDB))
}
