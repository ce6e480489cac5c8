package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dara-labs/control-plane/pkg/contracts"
	"github.com/dara-labs/control-plane/pkg/store"
)

// newMockStore builds a store over sqlmock with the schema migration
// expectations already satisfied.
func newMockStore(t *testing.T) (*store.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	for i := 0; i < 8; i++ {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS").
			WillReturnResult(sqlmock.NewResult(0, 0))
	}
	st, err := store.New(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st, mock
}

func TestTxCommitsOnSuccess(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE runs SET").
		WithArgs(string(contracts.RunCompleted), 3, sqlmock.AnyArg(), "run-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := st.Tx(context.Background(), func(tx *store.Tx) error {
		return tx.UpdateRun("run-1", contracts.RunCompleted, 3, contracts.NowUTC())
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxRollsBackOnStatementError(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE runs SET").
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	err := st.Tx(context.Background(), func(tx *store.Tx) error {
		return tx.UpdateRun("run-1", contracts.RunCompleted, 3, contracts.NowUTC())
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrStore))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxBeginFailure(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin().WillReturnError(errors.New("database is locked"))

	err := st.Tx(context.Background(), func(tx *store.Tx) error { return nil })
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrStore))
}
