package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rahulnat/sentinelq/internal/store"
	"github.com/rahulnat/sentinelq/pkg/models"
)

type mockAuditLister struct {
	listFn func(store.AuditFilter) ([]*models.AuditEvent, int, error)
}

func (m *mockAuditLister) ListAuditEvents(_ context.Context, f store.AuditFilter) ([]*models.AuditEvent, int, error) {
	return m.listFn(f)
}

var _ AuditLister = (*mockAuditLister)(nil)

func TestAuditEventsHandler_Success(t *testing.T) {
	jobID := uuid.New()
	var gotFilter store.AuditFilter
	lister := &mockAuditLister{
		listFn: func(f store.AuditFilter) ([]*models.AuditEvent, int, error) {
			gotFilter = f
			return []*models.AuditEvent{
				{ID: uuid.New(), EventType: models.AuditJobFailed, JobID: jobID, Severity: models.SeverityError},
			}, 1, nil
		},
	}

	h := NewAuditEventsHandler(lister)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/admin/audit?event_type=job_failed&severity=error&job_id="+jobID.String()+"&page=2&limit=10", nil)
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotFilter.EventType != models.AuditJobFailed {
		t.Errorf("unexpected event_type filter: %s", gotFilter.EventType)
	}
	if gotFilter.Severity != models.SeverityError {
		t.Errorf("unexpected severity filter: %s", gotFilter.Severity)
	}
	if gotFilter.JobID == nil || *gotFilter.JobID != jobID {
		t.Errorf("unexpected job_id filter: %v", gotFilter.JobID)
	}
	if gotFilter.Page != 2 || gotFilter.Limit != 10 {
		t.Errorf("unexpected pagination: page=%d limit=%d", gotFilter.Page, gotFilter.Limit)
	}

	var env struct {
		Data []map[string]any `json:"data"`
		Meta struct {
			Total   int  `json:"total"`
			HasNext bool `json:"has_next"`
		} `json:"meta"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(env.Data) != 1 {
		t.Fatalf("expected 1 event, got %d", len(env.Data))
	}
	if env.Meta.Total != 1 || env.Meta.HasNext {
		t.Errorf("unexpected meta: %+v", env.Meta)
	}
}

func TestAuditEventsHandler_SinceFilter(t *testing.T) {
	var gotFilter store.AuditFilter
	lister := &mockAuditLister{
		listFn: func(f store.AuditFilter) ([]*models.AuditEvent, int, error) {
			gotFilter = f
			return nil, 0, nil
		},
	}

	h := NewAuditEventsHandler(lister)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/audit?since=2026-08-01T00:00:00Z", nil)
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	want := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	if !gotFilter.Since.Equal(want) {
		t.Errorf("unexpected since: %v", gotFilter.Since)
	}
}

func TestAuditEventsHandler_EmptyResultIsArray(t *testing.T) {
	lister := &mockAuditLister{
		listFn: func(store.AuditFilter) ([]*models.AuditEvent, int, error) {
			return nil, 0, nil
		},
	}

	h := NewAuditEventsHandler(lister)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/audit", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var env struct {
		Data []any `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Data == nil {
		t.Error("expected empty array, got null")
	}
}

func TestAuditEventsHandler_BadJobID(t *testing.T) {
	h := NewAuditEventsHandler(&mockAuditLister{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/audit?job_id=nope", nil))

	status, code := parseErr(t, rec)
	if rec.Code != http.StatusBadRequest || status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if code != "INVALID_REQUEST" {
		t.Errorf("unexpected code: %s", code)
	}
}

func TestAuditEventsHandler_BadSince(t *testing.T) {
	h := NewAuditEventsHandler(&mockAuditLister{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/audit?since=yesterday", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAuditEventsHandler_StoreError(t *testing.T) {
	lister := &mockAuditLister{
		listFn: func(store.AuditFilter) ([]*models.AuditEvent, int, error) {
			return nil, 0, errors.New("connection refused")
		},
	}

	h := NewAuditEventsHandler(lister)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/audit", nil))

	status, code := parseErr(t, rec)
	if rec.Code != http.StatusInternalServerError || status != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if code != "INTERNAL_ERROR" {
		t.Errorf("unexpected code: %s", code)
	}
}
