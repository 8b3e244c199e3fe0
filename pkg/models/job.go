package models

import (
	"time"

	"github.com/google/uuid"
)

// Job statuses. A job is terminal once it reaches completed, failed, or
// cancelled; failed jobs may re-enter pending while retry attempts remain.
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
	JobStatusCancelled = "cancelled"
)

// JobType is a closed enumeration of supported job kinds. Handlers are
// registered per type; submission is rejected for unregistered types.
type JobType string

const (
	TypeLargeDatasetRiskAssessment  JobType = "large_dataset_risk_assessment"
	TypeBatchPatternValidation      JobType = "batch_pattern_validation"
	TypeComplianceFrameworkAnalysis JobType = "compliance_framework_analysis"
	TypeSentimentAnalysis           JobType = "sentiment_analysis"
	TypePIIScan                     JobType = "pii_scan"
)

// Priority is the primary scheduling tie-break; higher priorities dispatch first.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Rank maps a priority to an integer for queue ordering. Unknown values
// rank as medium.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityHigh:
		return 2
	case PriorityCritical:
		return 3
	default:
		return 1
	}
}

// Valid reports whether p is one of the four known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Payload is the opaque job payload. Dataset is the collection subject to
// batching; Params carries handler-specific settings (pattern lists,
// framework names, thresholds).
type Payload struct {
	Dataset []any          `json:"dataset,omitempty"`
	Params  map[string]any `json:"params,omitempty"`
}

// ResourceRequirements is the estimated footprint a job consumes while running.
type ResourceRequirements struct {
	MemoryMB int     `json:"memory_mb"`
	CPUCores float64 `json:"cpu_cores"`
}

// BackoffStrategy selects how retry delay grows with the attempt number.
type BackoffStrategy string

const (
	BackoffFixed       BackoffStrategy = "fixed"
	BackoffLinear      BackoffStrategy = "linear"
	BackoffExponential BackoffStrategy = "exponential"
)

// RetryPolicy configures failure handling for a job at submission time.
type RetryPolicy struct {
	Strategy    BackoffStrategy `json:"strategy"`
	MaxAttempts int             `json:"max_attempts"`
	BaseDelay   time.Duration   `json:"base_delay"`
}

// RetryInfo tracks retry state per job. Attempts counts handler executions,
// first run included, so Attempts never exceeds MaxAttempts.
type RetryInfo struct {
	Attempts     int             `json:"attempts"`
	MaxAttempts  int             `json:"max_attempts"`
	Strategy     BackoffStrategy `json:"strategy"`
	BaseDelay    time.Duration   `json:"base_delay"`
	LastRetryAt  *time.Time      `json:"last_retry_at,omitempty"`
	RetryReasons []string        `json:"retry_reasons,omitempty"`
}

// Job is a submitted unit of work tracked through its lifecycle. All fields
// are mutated only by the scheduler; accessors hand out deep copies.
type Job struct {
	ID           uuid.UUID            `json:"id"`
	Type         JobType              `json:"type"`
	Status       string               `json:"status"`
	Priority     Priority             `json:"priority"`
	Data         Payload              `json:"data"`
	Progress     int                  `json:"progress"`
	Dependencies []uuid.UUID          `json:"dependencies,omitempty"`
	Tags         []string             `json:"tags,omitempty"`
	Requirements ResourceRequirements `json:"resource_requirements"`
	Retry        RetryInfo            `json:"retry_info"`
	BatchSize    int                  `json:"batch_size,omitempty"`
	ParentJobID  *uuid.UUID           `json:"parent_job_id,omitempty"`
	ChildJobIDs  []uuid.UUID          `json:"child_job_ids,omitempty"`
	Error        string               `json:"error,omitempty"`
	Result       any                  `json:"result,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	StartedAt    *time.Time           `json:"started_at,omitempty"`
	CompletedAt  *time.Time           `json:"completed_at,omitempty"`
}

// Terminal reports whether the job has reached a final state.
func (j *Job) Terminal() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Clone returns a deep copy safe to hand to callers.
func (j *Job) Clone() *Job {
	c := *j
	c.Dependencies = append([]uuid.UUID(nil), j.Dependencies...)
	c.Tags = append([]string(nil), j.Tags...)
	c.ChildJobIDs = append([]uuid.UUID(nil), j.ChildJobIDs...)
	c.Retry.RetryReasons = append([]string(nil), j.Retry.RetryReasons...)
	c.Data.Dataset = append([]any(nil), j.Data.Dataset...)
	if j.Data.Params != nil {
		c.Data.Params = make(map[string]any, len(j.Data.Params))
		for k, v := range j.Data.Params {
			c.Data.Params[k] = v
		}
	}
	if j.ParentJobID != nil {
		p := *j.ParentJobID
		c.ParentJobID = &p
	}
	if j.Retry.LastRetryAt != nil {
		t := *j.Retry.LastRetryAt
		c.Retry.LastRetryAt = &t
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
