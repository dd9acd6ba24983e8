// Package realtime fans task change notifications out to connected clients
// so they can invalidate their task caches without polling.
package realtime

import (
	"sync"

	"github.com/google/uuid"
)

type Event struct {
	Action string    `json:"action"` // created | updated | deleted
	TaskID uuid.UUID `json:"task_id"`
}

// Hub is an in-process per-user broadcaster. Slow subscribers drop events
// rather than block publishers; a dropped event only delays a cache refresh
// until the next one.
type Hub struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uuid.UUID]map[chan Event]struct{})}
}

// Subscribe registers a listener for one user's task changes. The returned
// cancel func must be called when the listener goes away.
func (h *Hub) Subscribe(userID uuid.UUID) (<-chan Event, func()) {
	ch := make(chan Event, 16)

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[chan Event]struct{})
	}
	h.subs[userID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[userID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, userID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber of the task's owner.
func (h *Hub) Publish(userID uuid.UUID, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[userID] {
		select {
		case ch <- event:
		default:
		}
	}
}
