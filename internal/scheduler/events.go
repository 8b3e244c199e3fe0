package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rahulnat/sentinelq/pkg/models"
)

// Listener receives lifecycle events. Listeners register at construction and
// are invoked fire-and-forget; a panicking listener never reaches the
// scheduler's control flow.
type Listener func(models.JobEvent)

// ResultCache memoizes per-batch results so retries can reuse batches that
// already finished. Satisfied by cache.Cache.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// AuditLogger persists lifecycle transitions for compliance reporting.
// Failures are logged and swallowed; they never abort scheduling.
type AuditLogger interface {
	Record(ctx context.Context, evt models.AuditEvent) error
}

// Notifier pushes real-time updates to clients. Publish must not block.
type Notifier interface {
	Publish(n models.JobNotification)
}

// publish fans a lifecycle event out to listeners and the notifier. job is a
// snapshot taken under the scheduler lock.
func (s *Scheduler) publish(t models.EventType, job *models.Job, stage string, metadata map[string]any) {
	evt := models.JobEvent{
		Type:      t,
		JobID:     job.ID,
		JobType:   job.Type,
		Status:    job.Status,
		Progress:  job.Progress,
		Stage:     stage,
		Metadata:  metadata,
		Timestamp: time.Now().UTC(),
	}
	for _, l := range s.listeners {
		go invokeListener(l, evt)
	}
	if s.notifier != nil {
		n := models.JobNotification{
			JobID:    job.ID,
			Type:     job.Type,
			Progress: job.Progress,
			Status:   job.Status,
			Stage:    stage,
			Metadata: metadata,
		}
		go func() {
			defer func() { _ = recover() }()
			s.notifier.Publish(n)
		}()
	}
}

func invokeListener(l Listener, evt models.JobEvent) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event listener panicked", "event", evt.Type, "job_id", evt.JobID, "error", r)
		}
	}()
	l(evt)
}

// auditRecord reports a lifecycle transition to the audit collaborator,
// log-and-continue on failure.
func (s *Scheduler) auditRecord(eventType string, jobID uuid.UUID, severity string, details map[string]any) {
	if s.audit == nil {
		return
	}
	evt := models.AuditEvent{
		ID:        uuid.New(),
		EventType: eventType,
		JobID:     jobID,
		Severity:  severity,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	}
	go func() {
		defer func() { _ = recover() }()
		if err := s.audit.Record(context.Background(), evt); err != nil {
			slog.Error("audit write failed", "event_type", eventType, "job_id", jobID, "error", err)
		}
	}()
}
