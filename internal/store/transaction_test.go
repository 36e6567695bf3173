package store_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewviz/reportd/internal/domain"
	"github.com/crewviz/reportd/internal/platform/postgres"
	"github.com/crewviz/reportd/internal/store"
	"github.com/google/uuid"
)

func TestRunInTransaction(t *testing.T) {
	t.Parallel()

	t.Run("commits when the function succeeds", func(t *testing.T) {
		t.Parallel()

		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO report_jobs`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		job, err := domain.NewReportJob(uuid.New(), domain.ReportTypeTask, domain.FormatCSV, domain.ReportParams{})
		require.NoError(t, err)

		jobs := postgres.NewJobStore(db)
		err = store.RunInTransaction(context.Background(), db, func(ctx context.Context, tx *sql.Tx) error {
			return jobs.WithTx(tx).CreateJob(ctx, job)
		})
		require.NoError(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when the function fails", func(t *testing.T) {
		t.Parallel()

		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectBegin()
		mock.ExpectRollback()

		sentinel := errors.New("boom")
		err = store.RunInTransaction(context.Background(), db, func(ctx context.Context, tx *sql.Tx) error {
			return sentinel
		})
		assert.ErrorIs(t, err, sentinel)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wraps begin failure in ErrTransactionFailed", func(t *testing.T) {
		t.Parallel()

		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectBegin().WillReturnError(errors.New("connection lost"))

		err = store.RunInTransaction(context.Background(), db, func(ctx context.Context, tx *sql.Tx) error {
			t.Fatal("function should not run")
			return nil
		})
		assert.ErrorIs(t, err, store.ErrTransactionFailed)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back and re-panics on panic", func(t *testing.T) {
		t.Parallel()

		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectBegin()
		mock.ExpectRollback()

		assert.Panics(t, func() {
			_ = store.RunInTransaction(context.Background(), db, func(ctx context.Context, tx *sql.Tx) error {
				panic("unexpected")
			})
		})

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
