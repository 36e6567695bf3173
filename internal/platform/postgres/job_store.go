package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/crewviz/reportd/internal/domain"
	"github.com/crewviz/reportd/internal/platform/logger"
	"github.com/crewviz/reportd/internal/store"
	"github.com/google/uuid"
)

// JobStore implements the store.ReportJobStore interface using PostgreSQL.
type JobStore struct {
	db store.DBTX
}

// NewJobStore creates a new JobStore.
func NewJobStore(db store.DBTX) *JobStore {
	return &JobStore{db: db}
}

// WithTx returns a new JobStore that uses the provided transaction.
func (s *JobStore) WithTx(tx *sql.Tx) store.ReportJobStore {
	return &JobStore{db: tx}
}

// jobColumns is the scan order shared by every query in this store.
const jobColumns = `id, user_id, report_type, format, params, status, created_at, completed_at, result_path, error_message`

// CreateJob persists a new job in pending status.
func (s *JobStore) CreateJob(ctx context.Context, job *domain.ReportJob) error {
	log := logger.FromContext(ctx)

	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	params, err := job.MarshalParams()
	if err != nil {
		return err
	}

	query := `
		INSERT INTO report_jobs (id, user_id, report_type, format, params, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = s.db.ExecContext(ctx, query,
		job.ID,
		job.UserID,
		job.Type,
		job.Format,
		params,
		job.Status,
		job.CreatedAt,
	)
	if err != nil {
		log.Error("failed to create report job",
			"job_id", job.ID,
			"report_type", job.Type,
			"error", err)
		return MapError(err)
	}

	return nil
}

// GetJob retrieves a single job scoped to the owning user. A job owned
// by another user is indistinguishable from a missing one.
func (s *JobStore) GetJob(ctx context.Context, userID, jobID uuid.UUID) (*domain.ReportJob, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM report_jobs
		WHERE id = $1 AND user_id = $2
	`
	job, err := scanJob(s.db.QueryRowContext(ctx, query, jobID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get report job: %w", MapError(err))
	}
	return job, nil
}

// ListJobsByUser returns the user's jobs, most recent first.
func (s *JobStore) ListJobsByUser(ctx context.Context, userID uuid.UUID) ([]*domain.ReportJob, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT ` + jobColumns + `
		FROM report_jobs
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		log.Error("failed to list report jobs",
			"user_id", userID,
			"error", err)
		return nil, fmt.Errorf("failed to list report jobs: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var jobs []*domain.ReportJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating report job rows: %w", err)
	}

	return jobs, nil
}

// ClaimOldestPending atomically claims the oldest pending job by moving
// it to processing in a single conditional update. FOR UPDATE SKIP LOCKED
// guarantees that concurrent claimers never receive the same row; a
// contended row is simply skipped, which surfaces here as ErrNoPendingJobs.
func (s *JobStore) ClaimOldestPending(ctx context.Context) (*domain.ReportJob, error) {
	log := logger.FromContext(ctx)

	query := `
		UPDATE report_jobs
		SET status = $1
		WHERE id = (
			SELECT id
			FROM report_jobs
			WHERE status = $2
			ORDER BY created_at, id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobColumns
	job, err := scanJob(s.db.QueryRowContext(ctx, query,
		domain.JobStatusProcessing,
		domain.JobStatusPending,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNoPendingJobs
		}
		log.Error("failed to claim pending job", "error", err)
		return nil, fmt.Errorf("failed to claim pending job: %w", MapError(err))
	}

	log.Debug("claimed pending job",
		"job_id", job.ID,
		"report_type", job.Type)
	return job, nil
}

// CompleteJob transitions a processing job to completed.
func (s *JobStore) CompleteJob(ctx context.Context, jobID uuid.UUID, resultPath string) error {
	return s.finishJob(ctx, jobID, domain.JobStatusCompleted, resultPath, "")
}

// FailJob transitions a processing job to failed, capturing the error message.
func (s *JobStore) FailJob(ctx context.Context, jobID uuid.UUID, errorMsg string) error {
	return s.finishJob(ctx, jobID, domain.JobStatusFailed, "", errorMsg)
}

// FailStaleProcessing fails every job still marked processing. Called at
// worker startup before the loop begins claiming, so nothing is
// legitimately in flight when it runs.
func (s *JobStore) FailStaleProcessing(ctx context.Context, errorMsg string) (int64, error) {
	log := logger.FromContext(ctx)

	query := `
		UPDATE report_jobs
		SET status = $1, error_message = $2, completed_at = $3
		WHERE status = $4
	`
	result, err := s.db.ExecContext(ctx, query,
		domain.JobStatusFailed,
		errorMsg,
		time.Now().UTC(),
		domain.JobStatusProcessing,
	)
	if err != nil {
		log.Error("failed to fail stale processing jobs", "error", err)
		return 0, fmt.Errorf("failed to fail stale processing jobs: %w", MapError(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected, nil
}

// finishJob applies a terminal transition. The status guard in the WHERE
// clause enforces the forward-only lifecycle at the storage level: a job
// that is not in processing state cannot be finished.
func (s *JobStore) finishJob(ctx context.Context, jobID uuid.UUID, status domain.JobStatus, resultPath, errorMsg string) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE report_jobs
		SET status = $1, result_path = $2, error_message = $3, completed_at = $4
		WHERE id = $5 AND status = $6
	`
	result, err := s.db.ExecContext(ctx, query,
		status,
		resultPath,
		errorMsg,
		time.Now().UTC(),
		jobID,
		domain.JobStatusProcessing,
	)
	if err != nil {
		log.Error("failed to finish report job",
			"job_id", jobID,
			"status", status,
			"error", err)
		return fmt.Errorf("failed to finish report job: %w", MapError(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: job %s is not in processing state", store.ErrInvalidStatusTransition, jobID)
	}

	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanJob.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.ReportJob, error) {
	var (
		job         domain.ReportJob
		params      []byte
		completedAt sql.NullTime
		resultPath  sql.NullString
		errorMsg    sql.NullString
	)
	if err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.Type,
		&job.Format,
		&params,
		&job.Status,
		&job.CreatedAt,
		&completedAt,
		&resultPath,
		&errorMsg,
	); err != nil {
		return nil, err
	}

	if err := job.UnmarshalParams(params); err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	job.ResultPath = resultPath.String
	job.ErrorMsg = errorMsg.String

	return &job, nil
}
