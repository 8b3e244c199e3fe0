package models

import (
	"time"

	"github.com/google/uuid"
)

// ProgressUpdate is one entry in a job's replayable progress history,
// retained oldest-first until the job is evicted by cleanup.
type ProgressUpdate struct {
	JobID     uuid.UUID      `json:"job_id"`
	Progress  int            `json:"progress"`
	Stage     string         `json:"stage"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
