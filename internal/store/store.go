package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rahulnat/sentinelq/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	RecordAuditEvent(ctx context.Context, evt *models.AuditEvent) error
	ListAuditEvents(ctx context.Context, filter AuditFilter) ([]*models.AuditEvent, int, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID) error
}

// AuditFilter narrows audit-event queries.
type AuditFilter struct {
	JobID     *uuid.UUID
	EventType string
	Severity  string
	Since     time.Time
	Page      int
	Limit     int
}

// AuditRecorder adapts a Store to the scheduler's audit collaborator contract.
type AuditRecorder struct {
	store Store
}

// NewAuditRecorder creates the scheduler-facing adapter.
func NewAuditRecorder(s Store) *AuditRecorder {
	return &AuditRecorder{store: s}
}

// Record persists one lifecycle transition. The scheduler logs and continues
// on error; the adapter never needs to retry.
func (r *AuditRecorder) Record(ctx context.Context, evt models.AuditEvent) error {
	return r.store.RecordAuditEvent(ctx, &evt)
}
