package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rahulnat/sentinelq/internal/api/response"
	"github.com/rahulnat/sentinelq/internal/scheduler"
	"github.com/rahulnat/sentinelq/pkg/models"
)

// JobService defines the scheduler surface the handlers depend on.
type JobService interface {
	Submit(jobType models.JobType, data models.Payload, opts scheduler.SubmitOptions) (uuid.UUID, error)
	Get(jobID uuid.UUID) (*models.Job, error)
	List(filter scheduler.ListFilter) []*models.Job
	Cancel(jobID uuid.UUID) bool
	Batches(jobID uuid.UUID) ([]*models.JobBatch, error)
	ProgressHistory(jobID uuid.UUID) ([]models.ProgressUpdate, error)
	GetStats() scheduler.Stats
	Cleanup(olderThan time.Duration) int
}

type submitRequest struct {
	Type         string                       `json:"type"`
	Data         models.Payload               `json:"data"`
	Priority     string                       `json:"priority"`
	Dependencies []string                     `json:"dependencies"`
	Tags         []string                     `json:"tags"`
	Requirements *models.ResourceRequirements `json:"resource_requirements"`
	BatchSize    int                          `json:"batch_size"`
	Retry        *retryPolicyRequest          `json:"retry_policy"`
	ParentJobID  string                       `json:"parent_job_id"`
}

type retryPolicyRequest struct {
	Strategy    string `json:"strategy"`
	MaxAttempts int    `json:"max_attempts"`
	BaseDelayMS int    `json:"base_delay_ms"`
}

// NewSubmitJobHandler returns an http.HandlerFunc for POST /api/v1/jobs.
func NewSubmitJobHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if req.Type == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "type is required", nil)
			return
		}

		opts := scheduler.SubmitOptions{
			Priority:     models.Priority(req.Priority),
			Tags:         req.Tags,
			Requirements: req.Requirements,
			BatchSize:    req.BatchSize,
		}

		if req.Priority != "" && !opts.Priority.Valid() {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"priority must be one of: low, medium, high, critical", nil)
			return
		}

		for _, dep := range req.Dependencies {
			id, err := uuid.Parse(dep)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"dependencies must be valid job ids", nil)
				return
			}
			opts.Dependencies = append(opts.Dependencies, id)
		}

		if req.ParentJobID != "" {
			id, err := uuid.Parse(req.ParentJobID)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"parent_job_id must be a valid job id", nil)
				return
			}
			opts.ParentJobID = &id
		}

		if req.Retry != nil {
			opts.Retry = &models.RetryPolicy{
				Strategy:    models.BackoffStrategy(req.Retry.Strategy),
				MaxAttempts: req.Retry.MaxAttempts,
				BaseDelay:   time.Duration(req.Retry.BaseDelayMS) * time.Millisecond,
			}
		}

		jobID, err := svc.Submit(models.JobType(req.Type), req.Data, opts)
		if err != nil {
			switch {
			case errors.Is(err, scheduler.ErrUnknownJobType):
				response.Error(w, http.StatusBadRequest, "UNKNOWN_JOB_TYPE", err.Error(), nil)
			case errors.Is(err, scheduler.ErrMissingDataset):
				response.Error(w, http.StatusBadRequest, "MISSING_DATASET", err.Error(), nil)
			case errors.Is(err, scheduler.ErrUnknownDependency):
				response.Error(w, http.StatusBadRequest, "UNKNOWN_DEPENDENCY", err.Error(), nil)
			case errors.Is(err, scheduler.ErrSchedulerClosed):
				response.Error(w, http.StatusServiceUnavailable, "SCHEDULER_UNAVAILABLE",
					"The scheduler is shutting down", nil)
			default:
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
			}
			return
		}

		response.Accepted(w, map[string]string{"job_id": jobID.String()})
	}
}

// NewGetJobHandler returns an http.HandlerFunc for GET /api/v1/jobs/{jobID}.
func NewGetJobHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, ok := jobIDParam(w, r)
		if !ok {
			return
		}

		job, err := svc.Get(jobID)
		if err != nil {
			response.Error(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "Job not found", nil)
			return
		}
		response.JSON(w, job)
	}
}

// NewListJobsHandler returns an http.HandlerFunc for GET /api/v1/jobs.
func NewListJobsHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		filter := scheduler.ListFilter{
			Status: q.Get("status"),
			Type:   models.JobType(q.Get("type")),
		}
		if tags, ok := q["tag"]; ok {
			filter.Tags = tags
		}
		if parent := q.Get("parent_job_id"); parent != "" {
			id, err := uuid.Parse(parent)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"parent_job_id must be a valid job id", nil)
				return
			}
			filter.ParentJobID = &id
		}

		page := queryInt(q.Get("page"), 1)
		limit := queryInt(q.Get("limit"), 20)
		if limit > 100 {
			limit = 100
		}

		jobs := svc.List(filter)
		total := len(jobs)

		start := (page - 1) * limit
		if start > total {
			start = total
		}
		end := start + limit
		if end > total {
			end = total
		}

		response.Collection(w, jobs[start:end], response.PaginationMeta{
			Page:    page,
			Limit:   limit,
			Total:   total,
			HasNext: end < total,
		})
	}
}

// NewCancelJobHandler returns an http.HandlerFunc for DELETE /api/v1/jobs/{jobID}.
func NewCancelJobHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, ok := jobIDParam(w, r)
		if !ok {
			return
		}

		if _, err := svc.Get(jobID); err != nil {
			response.Error(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "Job not found", nil)
			return
		}

		if !svc.Cancel(jobID) {
			response.Error(w, http.StatusConflict, "JOB_NOT_CANCELLABLE",
				"Job has already reached a terminal state", nil)
			return
		}

		job, err := svc.Get(jobID)
		if err != nil {
			response.Error(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "Job not found", nil)
			return
		}
		response.JSON(w, job)
	}
}

// NewJobBatchesHandler returns an http.HandlerFunc for GET /api/v1/jobs/{jobID}/batches.
func NewJobBatchesHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, ok := jobIDParam(w, r)
		if !ok {
			return
		}

		batches, err := svc.Batches(jobID)
		if err != nil {
			response.Error(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "Job not found", nil)
			return
		}
		response.JSON(w, batches)
	}
}

// NewJobProgressHandler returns an http.HandlerFunc for GET /api/v1/jobs/{jobID}/progress.
func NewJobProgressHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, ok := jobIDParam(w, r)
		if !ok {
			return
		}

		history, err := svc.ProgressHistory(jobID)
		if err != nil {
			response.Error(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "Job not found", nil)
			return
		}

		job, err := svc.Get(jobID)
		if err != nil {
			response.Error(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "Job not found", nil)
			return
		}

		response.JSON(w, map[string]any{
			"job_id":   jobID.String(),
			"status":   job.Status,
			"progress": job.Progress,
			"history":  history,
		})
	}
}

// NewStatsHandler returns an http.HandlerFunc for GET /api/v1/stats.
func NewStatsHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, svc.GetStats())
	}
}

// NewCleanupHandler returns an http.HandlerFunc for POST /api/v1/admin/cleanup.
// defaultRetention applies when the request does not name a cutoff.
func NewCleanupHandler(svc JobService, defaultRetention time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		olderThan := defaultRetention

		var req struct {
			OlderThan string `json:"older_than"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.OlderThan != "" {
			d, err := time.ParseDuration(req.OlderThan)
			if err != nil || d < 0 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"older_than must be a valid duration, e.g. \"24h\"", nil)
				return
			}
			olderThan = d
		}

		removed := svc.Cleanup(olderThan)
		response.JSON(w, map[string]any{
			"removed":    removed,
			"older_than": olderThan.String(),
		})
	}
}

func jobIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "jobID")
	id, err := uuid.Parse(raw)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
			"jobID must be a valid UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
