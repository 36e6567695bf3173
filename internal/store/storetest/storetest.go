// Package storetest provides in-memory store implementations for tests.
package storetest

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crewviz/reportd/internal/domain"
	"github.com/crewviz/reportd/internal/store"
)

// JobStore is an in-memory store.ReportJobStore. The claim operation is
// serialized by a mutex, matching the atomicity the SQL implementation
// gets from its conditional update.
type JobStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*domain.ReportJob

	// CreateErr, when set, is returned by CreateJob.
	CreateErr error
	// ClaimErr, when set, is returned by ClaimOldestPending.
	ClaimErr error
}

// NewJobStore creates an empty in-memory job store.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[uuid.UUID]*domain.ReportJob)}
}

// CreateJob stores a copy of the job.
func (s *JobStore) CreateJob(_ context.Context, job *domain.ReportJob) error {
	if s.CreateErr != nil {
		return s.CreateErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

// GetJob returns a copy of the job if owned by userID.
func (s *JobStore) GetJob(_ context.Context, userID, jobID uuid.UUID) (*domain.ReportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok || job.UserID != userID {
		return nil, store.ErrJobNotFound
	}
	copied := *job
	return &copied, nil
}

// ListJobsByUser returns the user's jobs, most recent first.
func (s *JobStore) ListJobsByUser(_ context.Context, userID uuid.UUID) ([]*domain.ReportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var jobs []*domain.ReportJob
	for _, job := range s.jobs {
		if job.UserID == userID {
			copied := *job
			jobs = append(jobs, &copied)
		}
	}
	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
		}
		return jobs[i].ID.String() > jobs[j].ID.String()
	})
	return jobs, nil
}

// ClaimOldestPending claims the oldest pending job under the store mutex.
func (s *JobStore) ClaimOldestPending(_ context.Context) (*domain.ReportJob, error) {
	if s.ClaimErr != nil {
		return nil, s.ClaimErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var oldest *domain.ReportJob
	for _, job := range s.jobs {
		if job.Status != domain.JobStatusPending {
			continue
		}
		if oldest == nil ||
			job.CreatedAt.Before(oldest.CreatedAt) ||
			(job.CreatedAt.Equal(oldest.CreatedAt) && job.ID.String() < oldest.ID.String()) {
			oldest = job
		}
	}
	if oldest == nil {
		return nil, store.ErrNoPendingJobs
	}

	oldest.Status = domain.JobStatusProcessing
	copied := *oldest
	return &copied, nil
}

// CompleteJob transitions a processing job to completed.
func (s *JobStore) CompleteJob(_ context.Context, jobID uuid.UUID, resultPath string) error {
	return s.finish(jobID, domain.JobStatusCompleted, resultPath, "")
}

// FailJob transitions a processing job to failed.
func (s *JobStore) FailJob(_ context.Context, jobID uuid.UUID, errorMsg string) error {
	return s.finish(jobID, domain.JobStatusFailed, "", errorMsg)
}

// FailStaleProcessing fails every processing job.
func (s *JobStore) FailStaleProcessing(_ context.Context, errorMsg string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	var n int64
	for _, job := range s.jobs {
		if job.Status != domain.JobStatusProcessing {
			continue
		}
		job.Status = domain.JobStatusFailed
		job.CompletedAt = &now
		job.ErrorMsg = errorMsg
		n++
	}
	return n, nil
}

func (s *JobStore) finish(jobID uuid.UUID, status domain.JobStatus, resultPath, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok || job.Status != domain.JobStatusProcessing {
		return store.ErrInvalidStatusTransition
	}
	now := time.Now().UTC()
	job.Status = status
	job.CompletedAt = &now
	job.ResultPath = resultPath
	job.ErrorMsg = errorMsg
	return nil
}

// WithTx returns the store itself; transactions are a no-op in memory.
func (s *JobStore) WithTx(_ *sql.Tx) store.ReportJobStore { return s }

// Snapshot returns a copy of the stored job for assertions.
func (s *JobStore) Snapshot(jobID uuid.UUID) (domain.ReportJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return domain.ReportJob{}, false
	}
	return *job, true
}

// PresetStore is an in-memory store.PresetStore.
type PresetStore struct {
	mu      sync.Mutex
	presets map[uuid.UUID]*domain.ReportPreset
}

// NewPresetStore creates an empty in-memory preset store.
func NewPresetStore() *PresetStore {
	return &PresetStore{presets: make(map[uuid.UUID]*domain.ReportPreset)}
}

// CreatePreset stores a copy of the preset, enforcing per-user name uniqueness.
func (s *PresetStore) CreatePreset(_ context.Context, preset *domain.ReportPreset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.presets {
		if existing.UserID == preset.UserID && existing.Name == preset.Name {
			return store.ErrPresetNameExists
		}
	}
	copied := *preset
	s.presets[preset.ID] = &copied
	return nil
}

// GetPreset returns a copy of the preset if owned by userID.
func (s *PresetStore) GetPreset(_ context.Context, userID, presetID uuid.UUID) (*domain.ReportPreset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	preset, ok := s.presets[presetID]
	if !ok || preset.UserID != userID {
		return nil, store.ErrPresetNotFound
	}
	copied := *preset
	return &copied, nil
}

// ListPresetsByUser returns the user's presets ordered by name.
func (s *PresetStore) ListPresetsByUser(_ context.Context, userID uuid.UUID) ([]*domain.ReportPreset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var presets []*domain.ReportPreset
	for _, preset := range s.presets {
		if preset.UserID == userID {
			copied := *preset
			presets = append(presets, &copied)
		}
	}
	sort.Slice(presets, func(i, j int) bool { return presets[i].Name < presets[j].Name })
	return presets, nil
}

// DeletePreset removes the preset if owned by userID.
func (s *PresetStore) DeletePreset(_ context.Context, userID, presetID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	preset, ok := s.presets[presetID]
	if !ok || preset.UserID != userID {
		return store.ErrPresetNotFound
	}
	delete(s.presets, presetID)
	return nil
}

// WithTx returns the store itself; transactions are a no-op in memory.
func (s *PresetStore) WithTx(_ *sql.Tx) store.PresetStore { return s }
