// Package notify delivers sync results to the live sessions and devices of
// a user.
package notify

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// EventTransactionsUpdate is sent after transactions of an item changed.
const EventTransactionsUpdate = "transactions update"

const defaultBuffer = 16

// Update is the payload of EventTransactionsUpdate.
type Update struct {
	ItemID        string `json:"itemId"`
	AddedCount    int    `json:"addedCount"`
	ModifiedCount int    `json:"modifiedCount"`
	RemovedCount  int    `json:"removedCount"`
}

// Event is one message for a session.
type Event struct {
	Name string
	Data any
}

// Session is one live connection of a user.
type Session struct {
	userID string
	events chan Event
}

// Events returns the channel the session receives events on. It is closed
// when the session is unsubscribed or the hub is closed.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Hub tracks live sessions per user.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[*Session]struct{}
	buffer   int
}

// NewHub creates a Hub. Each session buffers up to buffer events, a
// session that falls behind further misses events.
func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = defaultBuffer
	}

	return &Hub{
		sessions: make(map[string]map[*Session]struct{}),
		buffer:   buffer,
	}
}

// Subscribe opens a session for the user.
func (h *Hub) Subscribe(userID string) *Session {
	s := &Session{userID: userID, events: make(chan Event, h.buffer)}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sessions[userID] == nil {
		h.sessions[userID] = make(map[*Session]struct{})
	}
	h.sessions[userID][s] = struct{}{}

	return s
}

// Unsubscribe closes the session. Unsubscribing twice is a no-op.
func (h *Hub) Unsubscribe(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sessions := h.sessions[s.userID]
	if _, ok := sessions[s]; !ok {
		return
	}

	delete(sessions, s)
	if len(sessions) == 0 {
		delete(h.sessions, s.userID)
	}
	close(s.events)
}

// Publish sends the event to all sessions of the user without blocking.
// It returns the number of sessions the event was delivered to.
func (h *Hub) Publish(userID string, event Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for s := range h.sessions[userID] {
		select {
		case s.events <- event:
			delivered++
		default:
			log.Warn().Str("user", userID).Str("event", event.Name).Msg("session buffer full, dropping event")
		}
	}

	return delivered
}

// Sessions returns the number of live sessions of the user.
func (h *Hub) Sessions(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[userID])
}

// Close closes all sessions.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, sessions := range h.sessions {
		for s := range sessions {
			close(s.events)
		}
		delete(h.sessions, userID)
	}
}
