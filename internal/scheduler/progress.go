package scheduler

import (
	"time"

	"github.com/google/uuid"
	"github.com/rahulnat/sentinelq/pkg/models"
)

// progressTracker retains each job's ordered progress history, oldest first,
// until the job is evicted by cleanup. Not safe for concurrent use; the
// scheduler guards it with its own mutex.
type progressTracker struct {
	history map[uuid.UUID][]models.ProgressUpdate
}

func newProgressTracker() *progressTracker {
	return &progressTracker{history: make(map[uuid.UUID][]models.ProgressUpdate)}
}

// clampProgress bounds p to [0, 100].
func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func (t *progressTracker) append(jobID uuid.UUID, progress int, stage string, metadata map[string]any) models.ProgressUpdate {
	u := models.ProgressUpdate{
		JobID:     jobID,
		Progress:  clampProgress(progress),
		Stage:     stage,
		Metadata:  metadata,
		Timestamp: time.Now().UTC(),
	}
	t.history[jobID] = append(t.history[jobID], u)
	return u
}

// snapshot returns a copy of the job's history.
func (t *progressTracker) snapshot(jobID uuid.UUID) []models.ProgressUpdate {
	h := t.history[jobID]
	out := make([]models.ProgressUpdate, len(h))
	copy(out, h)
	return out
}

func (t *progressTracker) remove(jobID uuid.UUID) {
	delete(t.history, jobID)
}
