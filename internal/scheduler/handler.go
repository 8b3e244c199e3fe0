package scheduler

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rahulnat/sentinelq/pkg/models"
)

// Task is the unit handed to a registered handler: the whole dataset for a
// non-batched job, or one batch's slice for each batch of a batched job.
type Task struct {
	JobID       uuid.UUID
	Type        models.JobType
	Params      map[string]any
	Dataset     []any
	BatchID     uuid.UUID // zero for non-batched execution
	BatchNumber int

	// Report lets non-batched handlers push progress updates; nil during
	// batch execution, where the scheduler computes progress itself.
	Report func(progress int, stage string)
}

// Handler executes one job or one batch and returns its result. Handler
// errors are captured as job state; they never crash the scheduler.
type Handler func(ctx context.Context, task Task) (any, error)

// invokeHandler contains panics at the orchestrator boundary and converts
// them to ordinary handler errors.
func invokeHandler(ctx context.Context, h Handler, task Task) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, task)
}
