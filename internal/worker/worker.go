// Package worker runs the background report job loop.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crewviz/reportd/internal/domain"
	"github.com/crewviz/reportd/internal/export"
	"github.com/crewviz/reportd/internal/redact"
	"github.com/crewviz/reportd/internal/service/report"
	"github.com/crewviz/reportd/internal/store"
)

// ResultWriter persists an encoded report payload and returns its
// storage location.
type ResultWriter interface {
	Write(jobID uuid.UUID, format domain.ReportFormat, data []byte) (string, error)
}

// Config holds worker configuration.
type Config struct {
	// PollInterval is the cadence between claim attempts.
	PollInterval time.Duration
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{PollInterval: 5 * time.Second}
}

// Worker claims and executes pending report jobs one at a time on a
// fixed cadence. Mutual exclusion with any other executor comes entirely
// from the store's atomic claim; the worker holds no in-process locks
// around job state. The design assumes a single worker instance, but the
// claim discipline keeps it correct if that ever changes.
type Worker struct {
	jobs       store.ReportJobStore
	fetcher    report.RowFetcher
	results    ResultWriter
	config     Config
	logger     *slog.Logger
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// New creates a Worker.
func New(jobs store.ReportJobStore, fetcher report.RowFetcher, results ResultWriter, config Config, logger *slog.Logger) *Worker {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig().PollInterval
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for Worker")
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Worker{
		jobs:       jobs,
		fetcher:    fetcher,
		results:    results,
		config:     config,
		logger:     logger.With(slog.String("component", "report_worker")),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// staleJobMessage is recorded on jobs found still in processing at
// startup. Such jobs were interrupted by a crash or unclean shutdown
// and would otherwise stay in processing forever.
const staleJobMessage = "report generation was interrupted by a worker restart"

// Start recovers jobs abandoned by a previous run, then launches the
// background loop.
func (w *Worker) Start() {
	w.recoverStaleJobs()
	w.wg.Add(1)
	go w.run()
	w.logger.Info("report worker started",
		slog.Duration("poll_interval", w.config.PollInterval))
}

// recoverStaleJobs fails jobs left in processing by a previous run.
// They are failed rather than re-queued: the job lifecycle is forward
// only, and the owner can re-enqueue from the recorded error.
func (w *Worker) recoverStaleJobs() {
	count, err := w.jobs.FailStaleProcessing(w.ctx, staleJobMessage)
	if err != nil {
		w.logger.Error("failed to recover stale processing jobs", "error", err)
		return
	}
	if count > 0 {
		w.logger.Info("recovered stale processing jobs", slog.Int64("count", count))
	}
}

// Stop requests shutdown and waits for the loop to exit. An in-flight
// job finishes or fails normally; only further claiming stops.
func (w *Worker) Stop() {
	w.cancelFunc()
	w.wg.Wait()
	w.logger.Info("report worker stopped")
}

// run drains the queue on every tick. Cancellation is checked between
// jobs, never mid-job.
func (w *Worker) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.drainPending()
		}
	}
}

// drainPending processes jobs until the queue is empty, a storage error
// occurs, or cancellation is requested.
func (w *Worker) drainPending() {
	for {
		select {
		case <-w.ctx.Done():
			return
		default:
		}

		processed, err := w.ProcessNextPendingJob(w.ctx)
		if err != nil {
			// Storage-level trouble; back off until the next tick.
			w.logger.Error("claim attempt failed", "error", err)
			return
		}
		if !processed {
			return
		}
	}
}

// ProcessNextPendingJob atomically claims the oldest pending job and
// executes it to a terminal state. It returns true if a job was
// processed (completed or failed) and false if the queue was empty.
//
// Job-level failures are terminal for that job and are never returned:
// the error is recorded on the job and the loop keeps running. Only
// storage errors on the claim itself are returned.
func (w *Worker) ProcessNextPendingJob(ctx context.Context) (bool, error) {
	job, err := w.jobs.ClaimOldestPending(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNoPendingJobs) {
			return false, nil
		}
		return false, fmt.Errorf("failed to claim pending job: %w", err)
	}

	log := w.logger.With(
		slog.String("job_id", job.ID.String()),
		slog.String("report_type", string(job.Type)),
		slog.String("format", string(job.Format)))
	log.Info("processing report job")

	// A claimed job must reach completed or failed even if the loop is
	// cancelled mid-job; cancellation only stops further claiming. Detach
	// the job's context so the terminal write cannot be aborted by Stop.
	jobCtx := context.WithoutCancel(ctx)

	if err := w.execute(jobCtx, job); err != nil {
		log.Error("report job failed", "error", err)
		// The stored message is user-visible via job polling; redact
		// anything that could leak queries or infrastructure detail.
		if failErr := w.jobs.FailJob(jobCtx, job.ID, redact.Error(err)); failErr != nil {
			log.Error("failed to mark job as failed", "error", failErr)
		}
		return true, nil
	}

	log.Info("report job completed")
	return true, nil
}

// execute runs one claimed job: fetch rows under the scope captured at
// enqueue time, encode, persist the payload, and complete the job.
func (w *Worker) execute(ctx context.Context, job *domain.ReportJob) error {
	table, err := w.fetcher.FetchReportRows(ctx, job.Type, job.Params)
	if err != nil {
		return fmt.Errorf("data access failed: %w", err)
	}

	data, err := export.Encode(job.Format, table.Title, table.Headers, table.Rows)
	if err != nil {
		return fmt.Errorf("encoding failed: %w", err)
	}

	path, err := w.results.Write(job.ID, job.Format, data)
	if err != nil {
		return fmt.Errorf("failed to store result: %w", err)
	}

	if err := w.jobs.CompleteJob(ctx, job.ID, path); err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	return nil
}
