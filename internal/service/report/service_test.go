package report

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewviz/reportd/internal/cache"
	"github.com/crewviz/reportd/internal/domain"
	"github.com/crewviz/reportd/internal/store"
	"github.com/crewviz/reportd/internal/store/storetest"
)

// stubFetcher counts invocations and returns a canned table or error.
type stubFetcher struct {
	calls atomic.Int64
	table *Table
	err   error
}

func (f *stubFetcher) FetchReportRows(_ context.Context, _ domain.ReportType, _ domain.ReportParams) (*Table, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.table, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, fetcher RowFetcher) (*Service, *storetest.JobStore, *storetest.PresetStore) {
	t.Helper()
	svc, jobs, presets, _ := newTestServiceTx(t, fetcher)
	return svc, jobs, presets
}

// newTestServiceTx additionally exposes the mocked database handle for
// tests that exercise the transactional paths.
func newTestServiceTx(t *testing.T, fetcher RowFetcher) (*Service, *storetest.JobStore, *storetest.PresetStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	jobs := storetest.NewJobStore()
	presets := storetest.NewPresetStore()
	svc := NewService(db, jobs, presets, fetcher, cache.New(testLogger()), time.Minute, testLogger())
	return svc, jobs, presets, mock
}

func params() domain.ReportParams {
	return domain.ReportParams{
		From: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestService_EnqueueJob(t *testing.T) {
	t.Parallel()

	t.Run("creates a pending job", func(t *testing.T) {
		t.Parallel()

		svc, jobs, _ := newTestService(t, &stubFetcher{})
		userID := uuid.New()

		jobID, err := svc.EnqueueJob(context.Background(), userID, domain.ReportTypeTask, domain.FormatCSV, params())

		require.NoError(t, err)
		stored, ok := jobs.Snapshot(jobID)
		require.True(t, ok)
		assert.Equal(t, domain.JobStatusPending, stored.Status)
		assert.Equal(t, userID, stored.UserID)
	})

	t.Run("rejects unknown report type", func(t *testing.T) {
		t.Parallel()

		svc, _, _ := newTestService(t, &stubFetcher{})

		_, err := svc.EnqueueJob(context.Background(), uuid.New(), domain.ReportType("payroll"), domain.FormatCSV, params())

		assert.ErrorIs(t, err, domain.ErrInvalidReportType)
	})

	t.Run("rejects unknown format", func(t *testing.T) {
		t.Parallel()

		svc, _, _ := newTestService(t, &stubFetcher{})

		_, err := svc.EnqueueJob(context.Background(), uuid.New(), domain.ReportTypeTask, domain.ReportFormat("xlsx"), params())

		assert.ErrorIs(t, err, domain.ErrInvalidReportFormat)
	})

	t.Run("rejects native view format for export jobs", func(t *testing.T) {
		t.Parallel()

		svc, _, _ := newTestService(t, &stubFetcher{})

		_, err := svc.EnqueueJob(context.Background(), uuid.New(), domain.ReportTypeTask, domain.FormatView, params())

		assert.ErrorIs(t, err, domain.ErrInvalidReportFormat)
	})

	t.Run("store failure surfaces to the caller", func(t *testing.T) {
		t.Parallel()

		svc, jobs, _ := newTestService(t, &stubFetcher{})
		jobs.CreateErr = errors.New("connection refused")

		_, err := svc.EnqueueJob(context.Background(), uuid.New(), domain.ReportTypeTask, domain.FormatCSV, params())

		assert.Error(t, err)
	})
}

func TestService_EnqueueJobFromPreset(t *testing.T) {
	t.Parallel()

	t.Run("prefills type and range from the preset, scope from the caller", func(t *testing.T) {
		t.Parallel()

		svc, jobs, _, mock := newTestServiceTx(t, &stubFetcher{})
		owner := uuid.New()

		savedDept := uuid.New()
		saved := params()
		saved.Scope.DepartmentID = &savedDept
		preset, err := svc.SavePreset(context.Background(), owner, "monthly audit", domain.ReportTypeAudit, saved)
		require.NoError(t, err)

		mock.ExpectBegin()
		mock.ExpectCommit()

		currentDept := uuid.New()
		scope := domain.Scope{DepartmentID: &currentDept}
		jobID, err := svc.EnqueueJobFromPreset(context.Background(), owner, preset.ID, domain.FormatPDF, scope)
		require.NoError(t, err)

		stored, ok := jobs.Snapshot(jobID)
		require.True(t, ok)
		assert.Equal(t, domain.JobStatusPending, stored.Status)
		assert.Equal(t, domain.ReportTypeAudit, stored.Type)
		assert.Equal(t, domain.FormatPDF, stored.Format)
		assert.Equal(t, saved.From, stored.Params.From)
		assert.Equal(t, saved.To, stored.Params.To)
		// The job carries the caller's current scope, not the scope that
		// happened to be saved with the preset.
		require.NotNil(t, stored.Params.Scope.DepartmentID)
		assert.Equal(t, currentDept, *stored.Params.Scope.DepartmentID)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("another user's preset is not found and rolls back", func(t *testing.T) {
		t.Parallel()

		svc, _, _, mock := newTestServiceTx(t, &stubFetcher{})
		owner, other := uuid.New(), uuid.New()

		preset, err := svc.SavePreset(context.Background(), owner, "monthly tasks", domain.ReportTypeTask, params())
		require.NoError(t, err)

		mock.ExpectBegin()
		mock.ExpectRollback()

		_, err = svc.EnqueueJobFromPreset(context.Background(), other, preset.ID, domain.FormatCSV, domain.Scope{})
		assert.ErrorIs(t, err, store.ErrPresetNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects native view format before touching storage", func(t *testing.T) {
		t.Parallel()

		svc, _, _, mock := newTestServiceTx(t, &stubFetcher{})

		_, err := svc.EnqueueJobFromPreset(context.Background(), uuid.New(), uuid.New(), domain.FormatView, domain.Scope{})
		assert.ErrorIs(t, err, domain.ErrInvalidReportFormat)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestService_ListJobs_ScopeIsolation(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t, &stubFetcher{})
	userA, userB := uuid.New(), uuid.New()

	// Interleave enqueues for both users.
	var aJobs []uuid.UUID
	for i := 0; i < 3; i++ {
		idA, err := svc.EnqueueJob(context.Background(), userA, domain.ReportTypeTask, domain.FormatCSV, params())
		require.NoError(t, err)
		aJobs = append(aJobs, idA)

		_, err = svc.EnqueueJob(context.Background(), userB, domain.ReportTypeProject, domain.FormatTSV, params())
		require.NoError(t, err)
	}

	listed, err := svc.ListJobs(context.Background(), userA)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	for _, job := range listed {
		assert.Equal(t, userA, job.UserID)
		assert.Contains(t, aJobs, job.ID)
	}
}

func TestService_GetJob(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t, &stubFetcher{})
	owner, other := uuid.New(), uuid.New()

	jobID, err := svc.EnqueueJob(context.Background(), owner, domain.ReportTypeAudit, domain.FormatPDF, params())
	require.NoError(t, err)

	job, err := svc.GetJob(context.Background(), owner, jobID)
	require.NoError(t, err)
	assert.Equal(t, jobID, job.ID)

	_, err = svc.GetJob(context.Background(), other, jobID)
	assert.ErrorIs(t, err, store.ErrJobNotFound)
}

func TestService_ViewReport(t *testing.T) {
	t.Parallel()

	table := &Table{Title: "Tasks", Headers: []string{"id"}, Rows: [][]string{{"1"}}}

	t.Run("caches the first computation", func(t *testing.T) {
		t.Parallel()

		fetcher := &stubFetcher{table: table}
		svc, _, _ := newTestService(t, fetcher)

		for i := 0; i < 5; i++ {
			got, err := svc.ViewReport(context.Background(), domain.ReportTypeTask, params())
			require.NoError(t, err)
			assert.Equal(t, table, got)
		}

		assert.Equal(t, int64(1), fetcher.calls.Load(), "identical views must hit the cache")
	})

	t.Run("different filters compute separately", func(t *testing.T) {
		t.Parallel()

		fetcher := &stubFetcher{table: table}
		svc, _, _ := newTestService(t, fetcher)

		_, err := svc.ViewReport(context.Background(), domain.ReportTypeTask, params())
		require.NoError(t, err)

		other := params()
		other.To = other.To.AddDate(0, 1, 0)
		_, err = svc.ViewReport(context.Background(), domain.ReportTypeTask, other)
		require.NoError(t, err)

		assert.Equal(t, int64(2), fetcher.calls.Load())
	})

	t.Run("differently scoped callers never share an entry", func(t *testing.T) {
		t.Parallel()

		fetcher := &stubFetcher{table: table}
		svc, _, _ := newTestService(t, fetcher)

		deptA, deptB := uuid.New(), uuid.New()

		scopedA := params()
		scopedA.Scope.DepartmentID = &deptA
		scopedB := params()
		scopedB.Scope.DepartmentID = &deptB

		_, err := svc.ViewReport(context.Background(), domain.ReportTypeTask, scopedA)
		require.NoError(t, err)
		_, err = svc.ViewReport(context.Background(), domain.ReportTypeTask, scopedB)
		require.NoError(t, err)

		assert.Equal(t, int64(2), fetcher.calls.Load())
	})

	t.Run("fetcher error is not cached", func(t *testing.T) {
		t.Parallel()

		fetcher := &stubFetcher{err: errors.New("database timeout")}
		svc, _, _ := newTestService(t, fetcher)

		_, err := svc.ViewReport(context.Background(), domain.ReportTypeTask, params())
		require.Error(t, err)

		fetcher.err = nil
		fetcher.table = table
		got, err := svc.ViewReport(context.Background(), domain.ReportTypeTask, params())
		require.NoError(t, err)
		assert.Equal(t, table, got)
	})

	t.Run("rejects unknown report type", func(t *testing.T) {
		t.Parallel()

		svc, _, _ := newTestService(t, &stubFetcher{table: table})

		_, err := svc.ViewReport(context.Background(), domain.ReportType("payroll"), params())

		assert.ErrorIs(t, err, domain.ErrInvalidReportType)
	})
}

func TestService_InvalidateCategory(t *testing.T) {
	t.Parallel()

	table := &Table{Title: "Tasks", Headers: []string{"id"}}
	fetcher := &stubFetcher{table: table}
	svc, _, _ := newTestService(t, fetcher)

	// Warm the task and project caches.
	_, err := svc.ViewReport(context.Background(), domain.ReportTypeTask, params())
	require.NoError(t, err)
	_, err = svc.ViewReport(context.Background(), domain.ReportTypeProject, params())
	require.NoError(t, err)
	require.Equal(t, int64(2), fetcher.calls.Load())

	// A task write invalidates only the task namespace.
	svc.InvalidateCategory(domain.ReportTypeTask)

	_, err = svc.ViewReport(context.Background(), domain.ReportTypeProject, params())
	require.NoError(t, err)
	assert.Equal(t, int64(2), fetcher.calls.Load(), "project view must still be cached")

	_, err = svc.ViewReport(context.Background(), domain.ReportTypeTask, params())
	require.NoError(t, err)
	assert.Equal(t, int64(3), fetcher.calls.Load(), "task view must be recomputed")
}

func TestService_Presets(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t, &stubFetcher{})
	owner, other := uuid.New(), uuid.New()

	preset, err := svc.SavePreset(context.Background(), owner, "monthly tasks", domain.ReportTypeTask, params())
	require.NoError(t, err)

	t.Run("duplicate name rejected", func(t *testing.T) {
		_, err := svc.SavePreset(context.Background(), owner, "monthly tasks", domain.ReportTypeTask, params())
		assert.ErrorIs(t, err, store.ErrPresetNameExists)
	})

	t.Run("list is scoped to the owner", func(t *testing.T) {
		listed, err := svc.ListPresets(context.Background(), owner)
		require.NoError(t, err)
		require.Len(t, listed, 1)
		assert.Equal(t, preset.ID, listed[0].ID)

		empty, err := svc.ListPresets(context.Background(), other)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("delete is scoped to the owner", func(t *testing.T) {
		err := svc.DeletePreset(context.Background(), other, preset.ID)
		assert.ErrorIs(t, err, store.ErrPresetNotFound)

		err = svc.DeletePreset(context.Background(), owner, preset.ID)
		require.NoError(t, err)
	})
}

func TestCategoryPrefix(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "report:tasks:", CategoryPrefix(domain.ReportTypeTask))
	assert.Equal(t, "report:projects:", CategoryPrefix(domain.ReportTypeProject))
	assert.Equal(t, "report:departments:", CategoryPrefix(domain.ReportTypeDepartment))
	assert.Equal(t, "report:audit:", CategoryPrefix(domain.ReportTypeAudit))
	assert.Equal(t, "report:estimates:", CategoryPrefix(domain.ReportTypeEstimateAccuracy))
}
