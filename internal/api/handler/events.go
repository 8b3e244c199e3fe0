package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rahulnat/sentinelq/internal/api/response"
	"github.com/rahulnat/sentinelq/internal/notify"
)

// NewEventsHandler returns an http.HandlerFunc for GET /api/v1/events that
// streams job notifications over Server-Sent Events until the client
// disconnects.
func NewEventsHandler(hub *notify.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Streaming is not supported", nil)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		ch, cancel := hub.Subscribe()
		defer cancel()

		for {
			select {
			case <-r.Context().Done():
				return
			case n, open := <-ch:
				if !open {
					return
				}
				payload, err := json.Marshal(n)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "event: job\ndata: %s\n\n", payload)
				flusher.Flush()
			}
		}
	}
}
