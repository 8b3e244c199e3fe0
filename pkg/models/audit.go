package models

import (
	"time"

	"github.com/google/uuid"
)

// Audit event types recorded for compliance reporting.
const (
	AuditJobCreated        = "job_created"
	AuditJobStarted        = "job_started"
	AuditJobCompleted      = "job_completed"
	AuditJobFailed         = "job_failed"
	AuditJobRetryScheduled = "job_retry_scheduled"
	AuditJobCancelled      = "job_cancelled"
)

// Audit severities.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// AuditEvent is a structured lifecycle record persisted by the audit store.
// Write failures never abort scheduling; callers log and continue.
type AuditEvent struct {
	ID        uuid.UUID      `db:"id"         json:"id"`
	EventType string         `db:"event_type" json:"event_type"`
	JobID     uuid.UUID      `db:"job_id"     json:"job_id"`
	Severity  string         `db:"severity"   json:"severity"`
	Details   map[string]any `db:"details"    json:"details,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}
