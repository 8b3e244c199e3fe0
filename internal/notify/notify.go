// Package notify implements the push-notification collaborator: lifecycle
// updates are fanned out to subscribers for real-time client streaming.
// Delivery is fire-and-forget; a slow subscriber drops updates rather than
// blocking the scheduler.
package notify

import (
	"log/slog"
	"sync"

	"github.com/rahulnat/sentinelq/pkg/models"
)

// Notifier receives job update notifications. Publish must not block.
type Notifier interface {
	Publish(n models.JobNotification)
}

// Hub fans notifications out to subscriber channels.
type Hub struct {
	mu     sync.Mutex
	subs   map[int]chan models.JobNotification
	nextID int
	buffer int
}

// NewHub creates a Hub with the given per-subscriber buffer size.
func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = 16
	}
	return &Hub{
		subs:   make(map[int]chan models.JobNotification),
		buffer: buffer,
	}
}

// Subscribe registers a new subscriber. The returned cancel func must be
// called to release the subscription.
func (h *Hub) Subscribe() (<-chan models.JobNotification, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan models.JobNotification, h.buffer)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Publish delivers n to every subscriber whose buffer has room.
func (h *Hub) Publish(n models.JobNotification) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- n:
		default:
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// LogNotifier writes notifications to the structured log; useful as a
// development fallback when no client is connected.
type LogNotifier struct{}

func (LogNotifier) Publish(n models.JobNotification) {
	slog.Debug("job notification",
		"job_id", n.JobID,
		"type", n.Type,
		"status", n.Status,
		"progress", n.Progress,
		"stage", n.Stage,
	)
}

// Fanout publishes to multiple notifiers in order.
type Fanout []Notifier

func (f Fanout) Publish(n models.JobNotification) {
	for _, notifier := range f {
		notifier.Publish(n)
	}
}
