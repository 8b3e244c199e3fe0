package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rahulnat/sentinelq/internal/api/response"
	"github.com/rahulnat/sentinelq/internal/store"
	"github.com/rahulnat/sentinelq/pkg/models"
)

// AuditLister is the slice of store.Store the audit handler needs.
type AuditLister interface {
	ListAuditEvents(ctx context.Context, filter store.AuditFilter) ([]*models.AuditEvent, int, error)
}

// NewAuditEventsHandler returns an http.HandlerFunc for GET /api/v1/admin/audit.
func NewAuditEventsHandler(lister AuditLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		filter := store.AuditFilter{
			EventType: q.Get("event_type"),
			Severity:  q.Get("severity"),
			Page:      queryInt(q.Get("page"), 1),
			Limit:     queryInt(q.Get("limit"), 50),
		}
		if filter.Limit > 200 {
			filter.Limit = 200
		}
		if raw := q.Get("job_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"job_id must be a valid job id", nil)
				return
			}
			filter.JobID = &id
		}
		if raw := q.Get("since"); raw != "" {
			since, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"since must be an RFC3339 timestamp", nil)
				return
			}
			filter.Since = since
		}

		events, total, err := lister.ListAuditEvents(r.Context(), filter)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to list audit events", nil)
			return
		}
		if events == nil {
			events = []*models.AuditEvent{}
		}

		response.Collection(w, events, response.PaginationMeta{
			Page:    filter.Page,
			Limit:   filter.Limit,
			Total:   total,
			HasNext: filter.Page*filter.Limit < total,
		})
	}
}
