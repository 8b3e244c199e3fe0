package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies a scheduler lifecycle event.
type EventType string

const (
	EventJobAdded                 EventType = "job:added"
	EventJobStarted               EventType = "job:started"
	EventJobProgress              EventType = "job:progress"
	EventJobCompleted             EventType = "job:completed"
	EventJobFailed                EventType = "job:failed"
	EventJobRetrying              EventType = "job:retrying"
	EventJobCancelled             EventType = "job:cancelled"
	EventJobDependenciesSatisfied EventType = "job:dependencies_satisfied"
)

// JobEvent is emitted to registered listeners on every lifecycle transition.
type JobEvent struct {
	Type      EventType      `json:"type"`
	JobID     uuid.UUID      `json:"job_id"`
	JobType   JobType        `json:"job_type"`
	Status    string         `json:"status"`
	Progress  int            `json:"progress"`
	Stage     string         `json:"stage,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// JobNotification is the fire-and-forget payload pushed to the notification
// collaborator for real-time client updates.
type JobNotification struct {
	JobID    uuid.UUID      `json:"job_id"`
	Type     JobType        `json:"type"`
	Progress int            `json:"progress"`
	Status   string         `json:"status"`
	Stage    string         `json:"stage,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
