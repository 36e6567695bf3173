package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewviz/reportd/internal/domain"
	"github.com/crewviz/reportd/internal/store"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func jobRows(job *domain.ReportJob) *sqlmock.Rows {
	params, _ := job.MarshalParams()
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "report_type", "format", "params",
		"status", "created_at", "completed_at", "result_path", "error_message",
	})
	var completedAt any
	if job.CompletedAt != nil {
		completedAt = *job.CompletedAt
	}
	rows.AddRow(
		job.ID.String(), job.UserID.String(), string(job.Type), string(job.Format), params,
		string(job.Status), job.CreatedAt, completedAt, job.ResultPath, job.ErrorMsg,
	)
	return rows
}

func testJob(t *testing.T, status domain.JobStatus) *domain.ReportJob {
	t.Helper()
	job, err := domain.NewReportJob(uuid.New(), domain.ReportTypeTask, domain.FormatCSV, domain.ReportParams{
		From: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	job.Status = status
	return job
}

func TestJobStore_CreateJob(t *testing.T) {
	t.Run("inserts a pending job", func(t *testing.T) {
		db, mock := newMockDB(t)
		s := NewJobStore(db)
		job := testJob(t, domain.JobStatusPending)

		mock.ExpectExec("INSERT INTO report_jobs").
			WithArgs(job.ID, job.UserID, job.Type, job.Format, sqlmock.AnyArg(), job.Status, job.CreatedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := s.CreateJob(context.Background(), job)

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects an invalid job without touching the database", func(t *testing.T) {
		db, mock := newMockDB(t)
		s := NewJobStore(db)
		job := testJob(t, domain.JobStatusPending)
		job.Type = domain.ReportType("bogus")

		err := s.CreateJob(context.Background(), job)

		assert.ErrorIs(t, err, store.ErrInvalidEntity)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestJobStore_ClaimOldestPending(t *testing.T) {
	t.Run("claims and returns the oldest pending job", func(t *testing.T) {
		db, mock := newMockDB(t)
		s := NewJobStore(db)
		job := testJob(t, domain.JobStatusProcessing)

		mock.ExpectQuery("UPDATE report_jobs").
			WithArgs(string(domain.JobStatusProcessing), string(domain.JobStatusPending)).
			WillReturnRows(jobRows(job))

		claimed, err := s.ClaimOldestPending(context.Background())

		require.NoError(t, err)
		assert.Equal(t, job.ID, claimed.ID)
		assert.Equal(t, domain.JobStatusProcessing, claimed.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty queue yields ErrNoPendingJobs", func(t *testing.T) {
		db, mock := newMockDB(t)
		s := NewJobStore(db)

		mock.ExpectQuery("UPDATE report_jobs").
			WillReturnError(sql.ErrNoRows)

		_, err := s.ClaimOldestPending(context.Background())

		assert.ErrorIs(t, err, store.ErrNoPendingJobs)
	})
}

func TestJobStore_FinishTransitions(t *testing.T) {
	t.Run("complete succeeds for a processing job", func(t *testing.T) {
		db, mock := newMockDB(t)
		s := NewJobStore(db)
		jobID := uuid.New()

		mock.ExpectExec("UPDATE report_jobs").
			WithArgs(string(domain.JobStatusCompleted), "results/out.csv", "", sqlmock.AnyArg(), jobID, string(domain.JobStatusProcessing)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := s.CompleteJob(context.Background(), jobID, "results/out.csv")

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("complete on a non-processing job is an invalid transition", func(t *testing.T) {
		db, mock := newMockDB(t)
		s := NewJobStore(db)

		mock.ExpectExec("UPDATE report_jobs").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := s.CompleteJob(context.Background(), uuid.New(), "results/out.csv")

		assert.ErrorIs(t, err, store.ErrInvalidStatusTransition)
	})

	t.Run("fail records the error message", func(t *testing.T) {
		db, mock := newMockDB(t)
		s := NewJobStore(db)
		jobID := uuid.New()

		mock.ExpectExec("UPDATE report_jobs").
			WithArgs(string(domain.JobStatusFailed), "", "fetch failed", sqlmock.AnyArg(), jobID, string(domain.JobStatusProcessing)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := s.FailJob(context.Background(), jobID, "fetch failed")

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestJobStore_FailStaleProcessing(t *testing.T) {
	t.Run("fails every processing job and reports the count", func(t *testing.T) {
		db, mock := newMockDB(t)
		s := NewJobStore(db)

		mock.ExpectExec("UPDATE report_jobs").
			WithArgs(string(domain.JobStatusFailed), "interrupted", sqlmock.AnyArg(), string(domain.JobStatusProcessing)).
			WillReturnResult(sqlmock.NewResult(0, 3))

		count, err := s.FailStaleProcessing(context.Background(), "interrupted")

		require.NoError(t, err)
		assert.Equal(t, int64(3), count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nothing stale is a zero count, not an error", func(t *testing.T) {
		db, mock := newMockDB(t)
		s := NewJobStore(db)

		mock.ExpectExec("UPDATE report_jobs").
			WillReturnResult(sqlmock.NewResult(0, 0))

		count, err := s.FailStaleProcessing(context.Background(), "interrupted")

		require.NoError(t, err)
		assert.Zero(t, count)
	})
}

func TestJobStore_GetJob(t *testing.T) {
	t.Run("scopes lookup to the owning user", func(t *testing.T) {
		db, mock := newMockDB(t)
		s := NewJobStore(db)
		job := testJob(t, domain.JobStatusCompleted)

		mock.ExpectQuery("SELECT (.+) FROM report_jobs").
			WithArgs(job.ID, job.UserID).
			WillReturnRows(jobRows(job))

		got, err := s.GetJob(context.Background(), job.UserID, job.ID)

		require.NoError(t, err)
		assert.Equal(t, job.ID, got.ID)
	})

	t.Run("another user's job is not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		s := NewJobStore(db)

		mock.ExpectQuery("SELECT (.+) FROM report_jobs").
			WillReturnError(sql.ErrNoRows)

		_, err := s.GetJob(context.Background(), uuid.New(), uuid.New())

		assert.ErrorIs(t, err, store.ErrJobNotFound)
	})
}

func TestJobStore_ListJobsByUser(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewJobStore(db)
	userID := uuid.New()

	newer := testJob(t, domain.JobStatusPending)
	newer.UserID = userID
	older := testJob(t, domain.JobStatusCompleted)
	older.UserID = userID
	older.CreatedAt = newer.CreatedAt.Add(-time.Hour)

	rows := jobRows(newer)
	params, _ := older.MarshalParams()
	rows.AddRow(
		older.ID.String(), older.UserID.String(), string(older.Type), string(older.Format), params,
		string(older.Status), older.CreatedAt, nil, older.ResultPath, older.ErrorMsg,
	)

	mock.ExpectQuery("SELECT (.+) FROM report_jobs").
		WithArgs(userID).
		WillReturnRows(rows)

	jobs, err := s.ListJobsByUser(context.Background(), userID)

	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, newer.ID, jobs[0].ID)
	assert.Equal(t, older.ID, jobs[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
