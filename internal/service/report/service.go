// Package report implements the reporting service: job enqueueing,
// preset management, and the cached interactive view path.
package report

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/crewviz/reportd/internal/cache"
	"github.com/crewviz/reportd/internal/domain"
	"github.com/crewviz/reportd/internal/store"
)

// Table is the tabular result of a report computation.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// RowFetcher is the data-access collaborator that computes report rows.
// Implementations must apply the scope as a hard filter regardless of
// what the caller passes elsewhere (defense in depth).
type RowFetcher interface {
	FetchReportRows(ctx context.Context, reportType domain.ReportType, params domain.ReportParams) (*Table, error)
}

// Service orchestrates report jobs, presets, and interactive views.
// The db handle backs cross-store transactions; single-store operations
// go through the stores directly.
type Service struct {
	db      *sql.DB
	jobs    store.ReportJobStore
	presets store.PresetStore
	fetcher RowFetcher
	cache   *cache.Cache
	viewTTL time.Duration
	logger  *slog.Logger
}

// NewService creates a report service.
func NewService(
	db *sql.DB,
	jobs store.ReportJobStore,
	presets store.PresetStore,
	fetcher RowFetcher,
	reportCache *cache.Cache,
	viewTTL time.Duration,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for report.Service")
	}
	return &Service{
		db:      db,
		jobs:    jobs,
		presets: presets,
		fetcher: fetcher,
		cache:   reportCache,
		viewTTL: viewTTL,
		logger:  logger.With(slog.String("component", "report_service")),
	}
}

// EnqueueJob validates the request and creates a pending report job.
// The caller's scope is already embedded in params by the HTTP layer, so
// a later role change never alters the output of this job. FormatView is
// rejected here: native views are served interactively, never exported.
func (s *Service) EnqueueJob(ctx context.Context, userID uuid.UUID, reportType domain.ReportType, format domain.ReportFormat, params domain.ReportParams) (uuid.UUID, error) {
	if format == domain.FormatView {
		return uuid.Nil, fmt.Errorf("%w: native view reports are served interactively", domain.ErrInvalidReportFormat)
	}

	job, err := domain.NewReportJob(userID, reportType, format, params)
	if err != nil {
		return uuid.Nil, err
	}

	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return uuid.Nil, fmt.Errorf("failed to enqueue report job: %w", err)
	}

	s.logger.Info("report job enqueued",
		slog.String("job_id", job.ID.String()),
		slog.String("user_id", userID.String()),
		slog.String("report_type", string(reportType)),
		slog.String("format", string(format)))

	return job.ID, nil
}

// EnqueueJobFromPreset creates a pending job from one of the caller's
// saved presets. The preset supplies the report type and date range;
// the scope comes from the caller's current token, not the one captured
// when the preset was saved, so a role change since saving cannot widen
// the job's visibility. The preset read and the job insert run in one
// transaction: a preset deleted concurrently can never produce a job.
func (s *Service) EnqueueJobFromPreset(ctx context.Context, userID, presetID uuid.UUID, format domain.ReportFormat, scope domain.Scope) (uuid.UUID, error) {
	if format == domain.FormatView {
		return uuid.Nil, fmt.Errorf("%w: native view reports are served interactively", domain.ErrInvalidReportFormat)
	}

	var jobID uuid.UUID
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		preset, err := s.presets.WithTx(tx).GetPreset(ctx, userID, presetID)
		if err != nil {
			return err
		}

		params := preset.Params
		params.Scope = scope

		job, err := domain.NewReportJob(userID, preset.Type, format, params)
		if err != nil {
			return err
		}
		if err := s.jobs.WithTx(tx).CreateJob(ctx, job); err != nil {
			return fmt.Errorf("failed to enqueue report job: %w", err)
		}
		jobID = job.ID
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}

	s.logger.Info("report job enqueued from preset",
		slog.String("job_id", jobID.String()),
		slog.String("user_id", userID.String()),
		slog.String("preset_id", presetID.String()),
		slog.String("format", string(format)))

	return jobID, nil
}

// ListJobs returns the caller's jobs, most recent first.
func (s *Service) ListJobs(ctx context.Context, userID uuid.UUID) ([]*domain.ReportJob, error) {
	return s.jobs.ListJobsByUser(ctx, userID)
}

// GetJob returns one of the caller's jobs for status polling.
func (s *Service) GetJob(ctx context.Context, userID, jobID uuid.UUID) (*domain.ReportJob, error) {
	return s.jobs.GetJob(ctx, userID, jobID)
}

// SavePreset stores a named filter configuration for the caller.
func (s *Service) SavePreset(ctx context.Context, userID uuid.UUID, name string, reportType domain.ReportType, params domain.ReportParams) (*domain.ReportPreset, error) {
	preset, err := domain.NewReportPreset(userID, name, reportType, params)
	if err != nil {
		return nil, err
	}
	if err := s.presets.CreatePreset(ctx, preset); err != nil {
		return nil, fmt.Errorf("failed to save report preset: %w", err)
	}
	return preset, nil
}

// ListPresets returns the caller's presets.
func (s *Service) ListPresets(ctx context.Context, userID uuid.UUID) ([]*domain.ReportPreset, error) {
	return s.presets.ListPresetsByUser(ctx, userID)
}

// DeletePreset removes one of the caller's presets.
func (s *Service) DeletePreset(ctx context.Context, userID, presetID uuid.UUID) error {
	return s.presets.DeletePreset(ctx, userID, presetID)
}

// ViewReport serves the interactive report path. Results are cached per
// (type, filter) key with single-flight semantics, so a burst of
// identical dashboard requests computes the rows once.
func (s *Service) ViewReport(ctx context.Context, reportType domain.ReportType, params domain.ReportParams) (*Table, error) {
	if !domain.ValidReportType(reportType) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidReportType, reportType)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	key, err := viewCacheKey(reportType, params)
	if err != nil {
		return nil, err
	}

	return cache.GetOrCreateSafe(ctx, s.cache, key, s.viewTTL,
		func(ctx context.Context) (*Table, error) {
			return s.fetcher.FetchReportRows(ctx, reportType, params)
		})
}

// InvalidateCategory evicts every cached view for the given report type.
// Entity writes call this because the key space is parameterized by
// filters and individual keys cannot be enumerated at write time.
func (s *Service) InvalidateCategory(reportType domain.ReportType) {
	s.cache.RemoveByPrefix(CategoryPrefix(reportType))
}

// CategoryPrefix returns the cache namespace for a report type,
// e.g. "report:tasks:".
func CategoryPrefix(reportType domain.ReportType) string {
	return fmt.Sprintf("report:%s:", categoryName(reportType))
}

func categoryName(reportType domain.ReportType) string {
	switch reportType {
	case domain.ReportTypeTask:
		return "tasks"
	case domain.ReportTypeProject:
		return "projects"
	case domain.ReportTypeDepartment:
		return "departments"
	case domain.ReportTypeAudit:
		return "audit"
	case domain.ReportTypeEstimateAccuracy:
		return "estimates"
	default:
		return string(reportType)
	}
}

// viewCacheKey builds "report:<category>:<filter-hash>". The hash covers
// the full parameter set including scope, so differently-scoped callers
// never share an entry.
func viewCacheKey(reportType domain.ReportType, params domain.ReportParams) (string, error) {
	payload, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to build cache key: %w", err)
	}
	sum := sha256.Sum256(payload)
	return CategoryPrefix(reportType) + hex.EncodeToString(sum[:16]), nil
}
