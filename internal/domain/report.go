package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ReportType identifies which reporting dataset a job or view draws from.
type ReportType string

// Supported report types.
const (
	ReportTypeTask             ReportType = "task"
	ReportTypeProject          ReportType = "project"
	ReportTypeDepartment       ReportType = "department"
	ReportTypeAudit            ReportType = "audit"
	ReportTypeEstimateAccuracy ReportType = "estimate_accuracy"
)

// ReportFormat identifies the output encoding of a report job.
type ReportFormat string

// Supported report formats. FormatView is the interactive (non-export)
// rendering and produces no encoded payload.
const (
	FormatCSV  ReportFormat = "csv"
	FormatTSV  ReportFormat = "tsv"
	FormatPDF  ReportFormat = "pdf"
	FormatView ReportFormat = "view"
)

// ValidReportType reports whether t is one of the enumerated report types.
func ValidReportType(t ReportType) bool {
	switch t {
	case ReportTypeTask, ReportTypeProject, ReportTypeDepartment,
		ReportTypeAudit, ReportTypeEstimateAccuracy:
		return true
	}
	return false
}

// ValidReportFormat reports whether f is one of the enumerated formats.
func ValidReportFormat(f ReportFormat) bool {
	switch f {
	case FormatCSV, FormatTSV, FormatPDF, FormatView:
		return true
	}
	return false
}

// Scope restricts a report to the data a caller is authorized to see.
// Nil fields mean "unrestricted" on that axis. The scope is captured at
// enqueue time and stored with the job so a later role change does not
// alter the output of historical jobs.
type Scope struct {
	DepartmentID *uuid.UUID `json:"department_id,omitempty"`
	ProjectID    *uuid.UUID `json:"project_id,omitempty"`
}

// ReportParams are the filter parameters for a report run.
type ReportParams struct {
	From  time.Time `json:"from"`
	To    time.Time `json:"to"`
	Scope Scope     `json:"scope"`
}

// Validate checks that the parameter range is well formed.
func (p ReportParams) Validate() error {
	if !p.To.IsZero() && !p.From.IsZero() && p.To.Before(p.From) {
		return fmt.Errorf("%w: date range end precedes start", ErrValidation)
	}
	return nil
}

// JobStatus represents the lifecycle state of a report job.
type JobStatus string

// Job lifecycle states. Completed and Failed are terminal.
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// CanTransitionTo reports whether moving from s to next is a legal,
// forward-only lifecycle transition. A job never returns to Pending and
// never leaves a terminal state.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusProcessing
	case JobStatusProcessing:
		return next == JobStatusCompleted || next == JobStatusFailed
	}
	return false
}

// Terminal reports whether s is a terminal state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// ReportJob is a unit of deferred report generation. Jobs are created by
// an interactive request, mutated only by the worker, and never deleted.
type ReportJob struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Type        ReportType
	Format      ReportFormat
	Params      ReportParams
	Status      JobStatus
	CreatedAt   time.Time
	CompletedAt *time.Time
	ResultPath  string
	ErrorMsg    string
}

// NewReportJob creates a Pending job for the given user, capturing the
// caller's scope inside params at creation time.
func NewReportJob(userID uuid.UUID, reportType ReportType, format ReportFormat, params ReportParams) (*ReportJob, error) {
	job := &ReportJob{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      reportType,
		Format:    format,
		Params:    params,
		Status:    JobStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return job, nil
}

// Validate checks all invariants of the job entity.
func (j *ReportJob) Validate() error {
	if j.ID == uuid.Nil {
		return fmt.Errorf("%w: job ID cannot be nil", ErrValidation)
	}
	if j.UserID == uuid.Nil {
		return fmt.Errorf("%w: user ID cannot be nil", ErrValidation)
	}
	if !ValidReportType(j.Type) {
		return fmt.Errorf("%w: %q", ErrInvalidReportType, j.Type)
	}
	if !ValidReportFormat(j.Format) {
		return fmt.Errorf("%w: %q", ErrInvalidReportFormat, j.Format)
	}
	return j.Params.Validate()
}

// MarshalParams serializes the job parameters for storage.
func (j *ReportJob) MarshalParams() ([]byte, error) {
	data, err := json.Marshal(j.Params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report params: %w", err)
	}
	return data, nil
}

// UnmarshalParams deserializes stored parameters into the job.
func (j *ReportJob) UnmarshalParams(data []byte) error {
	if err := json.Unmarshal(data, &j.Params); err != nil {
		return fmt.Errorf("%w: report params payload", ErrInvalidFormat)
	}
	return nil
}

// ReportPreset is a saved, named filter configuration bound to a user
// and report type. Presets pre-fill the job creation flow.
type ReportPreset struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Name      string
	Type      ReportType
	Params    ReportParams
	CreatedAt time.Time
}

// NewReportPreset creates a preset owned by the given user.
func NewReportPreset(userID uuid.UUID, name string, reportType ReportType, params ReportParams) (*ReportPreset, error) {
	preset := &ReportPreset{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      name,
		Type:      reportType,
		Params:    params,
		CreatedAt: time.Now().UTC(),
	}
	if err := preset.Validate(); err != nil {
		return nil, err
	}
	return preset, nil
}

// Validate checks all invariants of the preset entity.
func (p *ReportPreset) Validate() error {
	if p.ID == uuid.Nil {
		return fmt.Errorf("%w: preset ID cannot be nil", ErrValidation)
	}
	if p.UserID == uuid.Nil {
		return fmt.Errorf("%w: user ID cannot be nil", ErrValidation)
	}
	if p.Name == "" {
		return fmt.Errorf("%w: preset name cannot be empty", ErrEmptyName)
	}
	if len(p.Name) > 100 {
		return fmt.Errorf("%w: preset name exceeds 100 characters", ErrValidation)
	}
	if !ValidReportType(p.Type) {
		return fmt.Errorf("%w: %q", ErrInvalidReportType, p.Type)
	}
	return p.Params.Validate()
}
