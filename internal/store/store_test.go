package store_test

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rahulnat/sentinelq/internal/store"
	"github.com/rahulnat/sentinelq/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool + cleanup.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("sentinelq_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Run migrations
	err = store.RunMigrations(connStr, migrationsDir())
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

func auditEvent(jobID uuid.UUID, eventType, severity string, at time.Time) *models.AuditEvent {
	return &models.AuditEvent{
		ID:        uuid.New(),
		EventType: eventType,
		JobID:     jobID,
		Severity:  severity,
		Details:   map[string]any{"attempt": float64(1)},
		CreatedAt: at,
	}
}

// --- Audit Event Tests ---

func TestRecordAndListAuditEvents(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	jobID := uuid.New()
	now := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, s.RecordAuditEvent(ctx, auditEvent(jobID, models.AuditJobCreated, models.SeverityInfo, now.Add(-2*time.Minute))))
	require.NoError(t, s.RecordAuditEvent(ctx, auditEvent(jobID, models.AuditJobStarted, models.SeverityInfo, now.Add(-time.Minute))))
	require.NoError(t, s.RecordAuditEvent(ctx, auditEvent(jobID, models.AuditJobFailed, models.SeverityError, now)))
	require.NoError(t, s.RecordAuditEvent(ctx, auditEvent(uuid.New(), models.AuditJobCreated, models.SeverityInfo, now)))

	events, total, err := s.ListAuditEvents(ctx, store.AuditFilter{})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, events, 4)

	// Newest first
	assert.Equal(t, models.AuditJobFailed, events[0].EventType)
	assert.Equal(t, map[string]any{"attempt": float64(1)}, events[0].Details)
}

func TestListAuditEvents_FilterByJob(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	jobID := uuid.New()
	now := time.Now().UTC()
	require.NoError(t, s.RecordAuditEvent(ctx, auditEvent(jobID, models.AuditJobCreated, models.SeverityInfo, now)))
	require.NoError(t, s.RecordAuditEvent(ctx, auditEvent(uuid.New(), models.AuditJobCreated, models.SeverityInfo, now)))

	events, total, err := s.ListAuditEvents(ctx, store.AuditFilter{JobID: &jobID})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, events, 1)
	assert.Equal(t, jobID, events[0].JobID)
}

func TestListAuditEvents_FilterByTypeAndSeverity(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	jobID := uuid.New()
	now := time.Now().UTC()
	require.NoError(t, s.RecordAuditEvent(ctx, auditEvent(jobID, models.AuditJobFailed, models.SeverityError, now)))
	require.NoError(t, s.RecordAuditEvent(ctx, auditEvent(jobID, models.AuditJobRetryScheduled, models.SeverityWarning, now)))
	require.NoError(t, s.RecordAuditEvent(ctx, auditEvent(jobID, models.AuditJobCompleted, models.SeverityInfo, now)))

	events, total, err := s.ListAuditEvents(ctx, store.AuditFilter{EventType: models.AuditJobFailed})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, events, 1)

	events, total, err = s.ListAuditEvents(ctx, store.AuditFilter{Severity: models.SeverityWarning})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, models.AuditJobRetryScheduled, events[0].EventType)
}

func TestListAuditEvents_SinceAndPagination(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	jobID := uuid.New()
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.RecordAuditEvent(ctx,
			auditEvent(jobID, models.AuditJobCreated, models.SeverityInfo, base.Add(time.Duration(i)*time.Minute))))
	}

	events, total, err := s.ListAuditEvents(ctx, store.AuditFilter{Since: base.Add(3 * time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, events, 2)

	events, total, err = s.ListAuditEvents(ctx, store.AuditFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, events, 2)

	events, total, err = s.ListAuditEvents(ctx, store.AuditFilter{Page: 3, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, events, 1)
}

func TestAuditRecorder_Record(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	recorder := store.NewAuditRecorder(s)
	evt := auditEvent(uuid.New(), models.AuditJobCancelled, models.SeverityInfo, time.Now().UTC())
	require.NoError(t, recorder.Record(ctx, *evt))

	_, total, err := s.ListAuditEvents(ctx, store.AuditFilter{EventType: models.AuditJobCancelled})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

// --- API Key Tests ---

func newAPIKey(name, prefix string, scopes []string) *models.APIKey {
	now := time.Now().UTC()
	return &models.APIKey{
		ID:        uuid.New(),
		Name:      name,
		KeyHash:   "$2a$10$fakehashfortesting1234567890",
		KeyPrefix: prefix,
		Scopes:    scopes,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreateAndGetAPIKey(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	key := newAPIKey("ci-runner", "sq_abcd12", []string{"read", "write"})
	require.NoError(t, s.CreateAPIKey(ctx, key))

	keys, err := s.GetAPIKeyByPrefix(ctx, "sq_abcd12")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, key.ID, keys[0].ID)
	assert.Equal(t, "ci-runner", keys[0].Name)
	assert.Equal(t, []string{"read", "write"}, keys[0].Scopes)
	assert.Nil(t, keys[0].LastUsedAt)
}

func TestGetAPIKeyByPrefix_NoMatch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	keys, err := s.GetAPIKeyByPrefix(context.Background(), "sq_nosuch")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestGetAPIKeyByPrefix_MultipleSamePrefix(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	require.NoError(t, s.CreateAPIKey(ctx, newAPIKey("first", "sq_shared", []string{"read"})))
	require.NoError(t, s.CreateAPIKey(ctx, newAPIKey("second", "sq_shared", []string{"read"})))

	keys, err := s.GetAPIKeyByPrefix(ctx, "sq_shared")
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestCreateAPIKey_DuplicateID(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	key := newAPIKey("original", "sq_dupe12", []string{"read"})
	require.NoError(t, s.CreateAPIKey(ctx, key))

	clone := *key
	clone.Name = "imposter"
	err := s.CreateAPIKey(ctx, &clone)
	assert.ErrorIs(t, err, store.ErrDuplicateKey)
}

func TestUpdateAPIKeyLastUsed(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	key := newAPIKey("worker", "sq_used12", []string{"read"})
	require.NoError(t, s.CreateAPIKey(ctx, key))
	require.NoError(t, s.UpdateAPIKeyLastUsed(ctx, key.ID))

	keys, err := s.GetAPIKeyByPrefix(ctx, "sq_used12")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	require.NotNil(t, keys[0].LastUsedAt)
	assert.WithinDuration(t, time.Now().UTC(), *keys[0].LastUsedAt, time.Minute)
}

func TestListAPIKeys(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	require.NoError(t, s.CreateAPIKey(ctx, newAPIKey("one", "sq_list01", []string{"read"})))
	require.NoError(t, s.CreateAPIKey(ctx, newAPIKey("two", "sq_list02", []string{"admin"})))

	keys, err := s.ListAPIKeys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestRevokeAPIKey(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	key := newAPIKey("doomed", "sq_gone12", []string{"read"})
	require.NoError(t, s.CreateAPIKey(ctx, key))
	require.NoError(t, s.RevokeAPIKey(ctx, key.ID))

	// Revoked keys no longer resolve by prefix
	keys, err := s.GetAPIKeyByPrefix(ctx, "sq_gone12")
	require.NoError(t, err)
	assert.Empty(t, keys)

	// Revoking twice is a not-found
	err = s.RevokeAPIKey(ctx, key.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRevokeAPIKey_Unknown(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	err := s.RevokeAPIKey(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	assert.NoError(t, s.Ping(context.Background()))
}
