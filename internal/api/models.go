package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/crewviz/reportd/internal/domain"
)

// Common request/response structures

// CreateJobRequest defines the payload for enqueueing a report job.
// The caller's scope is never part of the payload: it is taken from the
// authenticated token and embedded server-side. When PresetID is set,
// the report type and date range come from the saved preset and the
// Type/From/To fields are ignored.
type CreateJobRequest struct {
	Type     string     `json:"type,omitempty" validate:"required_without=PresetID"`
	Format   string     `json:"format"         validate:"required"`
	PresetID *uuid.UUID `json:"preset_id,omitempty"`
	From     time.Time  `json:"from,omitempty"`
	To       time.Time  `json:"to,omitempty"`
}

// JobResponse defines the representation of a report job returned to
// clients. ErrorMsg is already sanitized by the worker before storage.
type JobResponse struct {
	ID          uuid.UUID  `json:"id"`
	Type        string     `json:"type"`
	Format      string     `json:"format"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// NewJobResponse converts a domain job to its API representation.
func NewJobResponse(job *domain.ReportJob) JobResponse {
	return JobResponse{
		ID:          job.ID,
		Type:        string(job.Type),
		Format:      string(job.Format),
		Status:      string(job.Status),
		CreatedAt:   job.CreatedAt,
		CompletedAt: job.CompletedAt,
		Error:       job.ErrorMsg,
	}
}

// CreateJobResponse defines the response for a successfully enqueued job.
type CreateJobResponse struct {
	JobID  uuid.UUID `json:"job_id"`
	Status string    `json:"status"`
}

// CreatePresetRequest defines the payload for saving a report preset.
type CreatePresetRequest struct {
	Name string    `json:"name" validate:"required,max=100"`
	Type string    `json:"type" validate:"required"`
	From time.Time `json:"from,omitempty"`
	To   time.Time `json:"to,omitempty"`
}

// PresetResponse defines the representation of a saved preset.
type PresetResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	From      time.Time `json:"from,omitempty"`
	To        time.Time `json:"to,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewPresetResponse converts a domain preset to its API representation.
func NewPresetResponse(preset *domain.ReportPreset) PresetResponse {
	return PresetResponse{
		ID:        preset.ID,
		Name:      preset.Name,
		Type:      string(preset.Type),
		From:      preset.Params.From,
		To:        preset.Params.To,
		CreatedAt: preset.CreatedAt,
	}
}

// ViewResponse defines the interactive report rendering.
type ViewResponse struct {
	Title   string     `json:"title"`
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}
