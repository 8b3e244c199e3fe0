package models

import (
	"time"

	"github.com/google/uuid"
)

// JobBatch is one contiguous slice of a batched job's dataset. The union of
// all batches' DataSlice fields, in BatchNumber order, equals the parent
// job's dataset exactly.
type JobBatch struct {
	ID           uuid.UUID  `json:"batch_id"`
	ParentJobID  uuid.UUID  `json:"parent_job_id"`
	BatchNumber  int        `json:"batch_number"`
	TotalBatches int        `json:"total_batches"`
	DataSlice    []any      `json:"data_slice"`
	Status       string     `json:"status"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Result       any        `json:"result,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// Clone returns a deep copy safe to hand to callers.
func (b *JobBatch) Clone() *JobBatch {
	c := *b
	c.DataSlice = append([]any(nil), b.DataSlice...)
	if b.StartedAt != nil {
		t := *b.StartedAt
		c.StartedAt = &t
	}
	if b.CompletedAt != nil {
		t := *b.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
