package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rahulnat/sentinelq/internal/cache"
	"github.com/rahulnat/sentinelq/internal/config"
	"github.com/rahulnat/sentinelq/internal/scheduler"
	"github.com/rahulnat/sentinelq/internal/store"
	"github.com/rahulnat/sentinelq/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─── mock store ──────────────────────────────────────────────────────────────

type testStore struct {
	pingErr error
}

func (s *testStore) Ping(_ context.Context) error { return s.pingErr }
func (s *testStore) RecordAuditEvent(_ context.Context, _ *models.AuditEvent) error {
	return nil
}
func (s *testStore) ListAuditEvents(_ context.Context, _ store.AuditFilter) ([]*models.AuditEvent, int, error) {
	return nil, 0, nil
}
func (s *testStore) GetAPIKeyByPrefix(_ context.Context, _ string) ([]*models.APIKey, error) {
	return nil, nil
}
func (s *testStore) UpdateAPIKeyLastUsed(_ context.Context, _ uuid.UUID) error { return nil }
func (s *testStore) CreateAPIKey(_ context.Context, _ *models.APIKey) error    { return nil }
func (s *testStore) ListAPIKeys(_ context.Context) ([]*models.APIKey, error)   { return nil, nil }
func (s *testStore) RevokeAPIKey(_ context.Context, _ uuid.UUID) error         { return nil }

var _ store.Store = (*testStore)(nil)

// ─── mock cache ──────────────────────────────────────────────────────────────

type testCache struct {
	pingErr error
}

func (c *testCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (c *testCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (c *testCache) Delete(_ context.Context, _ string) error                         { return nil }
func (c *testCache) Ping(_ context.Context) error                                     { return c.pingErr }
func (c *testCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}

var _ cache.Cache = (*testCache)(nil)

// ─── health handler tests ───────────────────────────────────────────────────

func TestHealthHandler_AllOK(t *testing.T) {
	h := healthHandler(&testStore{}, &testCache{})

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	data := body["data"].(map[string]any)
	assert.Equal(t, "ok", data["status"])
	services := data["services"].(map[string]any)
	assert.Equal(t, "ok", services["database"])
	assert.Equal(t, "ok", services["cache"])
}

func TestHealthHandler_DatabaseDegraded(t *testing.T) {
	h := healthHandler(&testStore{pingErr: errors.New("connection refused")}, &testCache{})

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "DEGRADED", errObj["code"])
}

func TestHealthHandler_CacheDegraded(t *testing.T) {
	h := healthHandler(&testStore{}, &testCache{pingErr: errors.New("redis down")})

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealthHandler_BothDegraded(t *testing.T) {
	h := healthHandler(
		&testStore{pingErr: errors.New("db down")},
		&testCache{pingErr: errors.New("redis down")},
	)

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

// ─── run() config validation tests ──────────────────────────────────────────

func TestRun_FailsOnMissingConfig(t *testing.T) {
	for _, key := range []string{"DATABASE_URL", "REDIS_URL"} {
		t.Setenv(key, "")
	}

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestRun_FailsOnInvalidDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "not-a-valid-url")
	t.Setenv("REDIS_URL", "redis://localhost:6379")

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect database")
}

// ─── scheduler config mapping tests ─────────────────────────────────────────

func TestSchedulerConfig_MapsEnvKnobs(t *testing.T) {
	sc := config.SchedulerConfig{
		MaxConcurrentJobs:      8,
		MaxMemoryMB:            16384,
		MaxCPUCores:            12,
		AutoBatchThreshold:     2000,
		DefaultBatchSize:       250,
		AdmissionRetryInterval: 250 * time.Millisecond,
		DefaultMaxAttempts:     5,
		DefaultBackoff:         2 * time.Second,
		BatchResultTTL:         time.Hour,
		Retention:              48 * time.Hour,
	}

	cfg := schedulerConfig(sc)

	assert.Equal(t, 8, cfg.MaxConcurrentJobs)
	assert.Equal(t, 16384, cfg.MaxMemoryMB)
	assert.Equal(t, float64(12), cfg.MaxCPUCores)
	assert.Equal(t, 2000, cfg.AutoBatchThreshold)
	assert.Equal(t, 250, cfg.DefaultBatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.AdmissionRetryInterval)
	assert.Equal(t, 5, cfg.DefaultMaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.DefaultBackoff)
	assert.Equal(t, time.Hour, cfg.BatchResultTTL)
	// Engine-internal defaults survive the mapping
	assert.Equal(t, models.BackoffExponential, cfg.DefaultStrategy)
	assert.Equal(t, 3, cfg.MaxBatchConcurrency)
}

func TestRetentionLoop_DisabledWhenZero(t *testing.T) {
	sched := scheduler.New(scheduler.DefaultConfig())

	done := make(chan struct{})
	go func() {
		retentionLoop(context.Background(), sched, 0)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("retention loop should return immediately when retention is zero")
	}
}

func TestShutdownTimeout(t *testing.T) {
	assert.Equal(t, 30*time.Second, shutdownTimeout)
}
