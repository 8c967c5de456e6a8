package auth

import (
	"log/slog"
	"sync"
)

const (
	SessionLogin  = "login"
	SessionLogout = "logout"
)

// SessionEvent announces a session lifecycle change for one user.
type SessionEvent struct {
	Type   string
	UserID string
}

// SessionHub broadcasts session events to explicit subscribers. Each
// subscriber holds its own channel and cancel function; there is no
// ambient registration.
type SessionHub struct {
	mu     sync.Mutex
	subs   map[uint64]chan SessionEvent
	nextID uint64
	closed bool
}

func NewSessionHub() *SessionHub {
	return &SessionHub{subs: make(map[uint64]chan SessionEvent)}
}

// Subscribe returns an event channel and a cancel function. After cancel
// returns, the channel is closed and receives nothing further.
func (h *SessionHub) Subscribe() (<-chan SessionEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan SessionEvent, 16)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.nextID++
	id := h.nextID
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish fans the event out to every subscriber. A subscriber that has
// fallen behind its buffer misses the event rather than blocking logins.
func (h *SessionHub) Publish(evt SessionEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- evt:
		default:
			slog.Warn("Session event dropped for slow subscriber",
				"type", evt.Type,
				"user_id", evt.UserID)
		}
	}
}

func (h *SessionHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
