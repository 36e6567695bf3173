// Package api provides HTTP handlers for the reporting API.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/crewviz/reportd/internal/api/shared"
	"github.com/crewviz/reportd/internal/domain"
	"github.com/crewviz/reportd/internal/export"
	"github.com/crewviz/reportd/internal/platform/logger"
	"github.com/crewviz/reportd/internal/platform/results"
	"github.com/crewviz/reportd/internal/service/report"
)

// ReportHandler handles report-related HTTP requests.
type ReportHandler struct {
	service *report.Service
	results *results.FileStore
	logger  *slog.Logger
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(
	service *report.Service,
	resultStore *results.FileStore,
	logger *slog.Logger,
) *ReportHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for ReportHandler")
	}

	return &ReportHandler{
		service: service,
		results: resultStore,
		logger:  logger.With(slog.String("component", "report_handler")),
	}
}

// requestScope pulls the authenticated user ID and scope out of the
// request context. A request that passed the auth middleware always has
// both; a missing value means the route is misconfigured.
func requestScope(w http.ResponseWriter, r *http.Request, log *slog.Logger) (uuid.UUID, domain.Scope, bool) {
	userID, ok := r.Context().Value(shared.UserIDContextKey).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		log.Warn("user ID not found or invalid in request context")
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
		return uuid.Nil, domain.Scope{}, false
	}
	scope, _ := r.Context().Value(shared.ScopeContextKey).(domain.Scope)
	return userID, scope, true
}

// CreateJob handles POST /reports/jobs requests. It validates the
// payload, binds the caller's scope into the job parameters, and
// enqueues a pending job for the worker.
func (h *ReportHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, scope, ok := requestScope(w, r, log)
	if !ok {
		return
	}

	var req CreateJobRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		log.Debug("invalid request body", slog.String("error", err.Error()))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request: format plus either type or preset_id is required")
		return
	}

	var jobID uuid.UUID
	var err error
	if req.PresetID != nil {
		jobID, err = h.service.EnqueueJobFromPreset(r.Context(), userID,
			*req.PresetID, domain.ReportFormat(req.Format), scope)
	} else {
		params := domain.ReportParams{
			From:  req.From,
			To:    req.To,
			Scope: scope,
		}
		jobID, err = h.service.EnqueueJob(r.Context(), userID,
			domain.ReportType(req.Type), domain.ReportFormat(req.Format), params)
	}
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, CreateJobResponse{
		JobID:  jobID,
		Status: string(domain.JobStatusPending),
	})
}

// ListJobs handles GET /reports/jobs requests, returning the caller's
// jobs most recent first.
func (h *ReportHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, _, ok := requestScope(w, r, log)
	if !ok {
		return
	}

	jobs, err := h.service.ListJobs(r.Context(), userID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), "Failed to list report jobs", err)
		return
	}

	responses := make([]JobResponse, 0, len(jobs))
	for _, job := range jobs {
		responses = append(responses, NewJobResponse(job))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, responses)
}

// GetJob handles GET /reports/jobs/{id} requests for status polling.
// Jobs are scoped to their owner: another user's job ID behaves exactly
// like a nonexistent one.
func (h *ReportHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, _, ok := requestScope(w, r, log)
	if !ok {
		return
	}

	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid job ID")
		return
	}

	job, err := h.service.GetJob(r.Context(), userID, jobID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, NewJobResponse(job))
}

// DownloadResult handles GET /reports/jobs/{id}/download requests,
// streaming the encoded artifact of a completed job.
func (h *ReportHandler) DownloadResult(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, _, ok := requestScope(w, r, log)
	if !ok {
		return
	}

	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid job ID")
		return
	}

	job, err := h.service.GetJob(r.Context(), userID, jobID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	if job.Status != domain.JobStatusCompleted || job.ResultPath == "" {
		shared.RespondWithError(w, r, http.StatusConflict, "Report job has no result to download")
		return
	}

	data, err := h.results.Read(job.ResultPath)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to read report result", err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType(job.Format))
	w.Header().Set("Content-Disposition", `attachment; filename="`+job.ResultPath+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Error("failed to write report result", slog.String("error", err.Error()))
	}
}

// ViewReport handles GET /reports/view requests: the interactive,
// cached report path. Parameters come from the query string.
func (h *ReportHandler) ViewReport(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	_, scope, ok := requestScope(w, r, log)
	if !ok {
		return
	}

	reportType := domain.ReportType(r.URL.Query().Get("type"))

	params := domain.ReportParams{Scope: scope}
	var err error
	if params.From, err = parseDateParam(r, "from"); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid 'from' date, expected RFC 3339")
		return
	}
	if params.To, err = parseDateParam(r, "to"); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid 'to' date, expected RFC 3339")
		return
	}

	table, err := h.service.ViewReport(r.Context(), reportType, params)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, ViewResponse{
		Title:   table.Title,
		Headers: table.Headers,
		Rows:    table.Rows,
	})
}

// CreatePreset handles POST /reports/presets requests.
func (h *ReportHandler) CreatePreset(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, scope, ok := requestScope(w, r, log)
	if !ok {
		return
	}

	var req CreatePresetRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request: name and type are required")
		return
	}

	params := domain.ReportParams{
		From:  req.From,
		To:    req.To,
		Scope: scope,
	}

	preset, err := h.service.SavePreset(r.Context(), userID, req.Name, domain.ReportType(req.Type), params)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, NewPresetResponse(preset))
}

// ListPresets handles GET /reports/presets requests.
func (h *ReportHandler) ListPresets(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, _, ok := requestScope(w, r, log)
	if !ok {
		return
	}

	presets, err := h.service.ListPresets(r.Context(), userID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), "Failed to list report presets", err)
		return
	}

	responses := make([]PresetResponse, 0, len(presets))
	for _, preset := range presets {
		responses = append(responses, NewPresetResponse(preset))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, responses)
}

// DeletePreset handles DELETE /reports/presets/{id} requests. Deletion
// is scoped to the owner; deleting another user's preset reports 404.
func (h *ReportHandler) DeletePreset(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, _, ok := requestScope(w, r, log)
	if !ok {
		return
	}

	presetID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid preset ID")
		return
	}

	if err := h.service.DeletePreset(r.Context(), userID, presetID); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parseDateParam parses an optional RFC 3339 query parameter. An absent
// parameter yields the zero time, which the domain treats as unbounded.
func parseDateParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errors.New("malformed date parameter")
	}
	return t, nil
}
