package store

import (
	"context"
	"database/sql"

	"github.com/crewviz/reportd/internal/domain"
	"github.com/google/uuid"
)

// ReportJobStore defines the interface for report job persistence.
//
// The store is the single coordination point between request handlers
// (which create and list jobs) and the background worker (which claims
// and completes them). Mutual exclusion between executors is achieved
// through ClaimOldestPending's atomic conditional update, not through
// in-process locking, so the contract remains correct even if the worker
// were scaled beyond one instance sharing the same database.
type ReportJobStore interface {
	// CreateJob persists a new job in pending status.
	// Returns ErrInvalidEntity (wrapping the validation detail) if the job
	// fails domain validation.
	CreateJob(ctx context.Context, job *domain.ReportJob) error

	// GetJob retrieves a single job by ID, scoped to the owning user.
	// Returns ErrJobNotFound if the job does not exist or belongs to a
	// different user; callers cannot distinguish the two cases.
	GetJob(ctx context.Context, userID, jobID uuid.UUID) (*domain.ReportJob, error)

	// ListJobsByUser returns the user's jobs ordered most recent first.
	// Never returns another user's jobs.
	ListJobsByUser(ctx context.Context, userID uuid.UUID) ([]*domain.ReportJob, error)

	// ClaimOldestPending atomically transitions the oldest pending job
	// (ordered by creation time, ties broken by ID) to processing and
	// returns it. The claim must be a single conditional storage operation:
	// concurrent callers never receive the same job. Returns
	// ErrNoPendingJobs when the queue is empty.
	ClaimOldestPending(ctx context.Context) (*domain.ReportJob, error)

	// CompleteJob transitions a processing job to completed, recording the
	// result location and completion time.
	// Returns ErrInvalidStatusTransition if the job is not in processing state.
	CompleteJob(ctx context.Context, jobID uuid.UUID, resultPath string) error

	// FailJob transitions a processing job to failed, recording the error
	// message and completion time.
	// Returns ErrInvalidStatusTransition if the job is not in processing state.
	FailJob(ctx context.Context, jobID uuid.UUID, errorMsg string) error

	// FailStaleProcessing marks every processing job as failed with the
	// given error message and returns the number of jobs updated. With a
	// single worker, any job still in processing at worker startup was
	// abandoned by a previous run and will never reach a terminal state
	// on its own. Jobs are failed rather than re-queued: the lifecycle is
	// forward-only, and the owner can re-enqueue from the recorded error.
	FailStaleProcessing(ctx context.Context, errorMsg string) (int64, error)

	// WithTx returns a new ReportJobStore instance that uses the provided
	// transaction. The transaction should be created and managed by the
	// caller via RunInTransaction.
	WithTx(tx *sql.Tx) ReportJobStore
}
