package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// ─── Live Decision Feed ─────────────────────────────────────────────────────
// Terminal dashboards subscribe here to refresh the approval queue the
// moment a decision lands, instead of waiting for their next poll. The
// feed is a supplement: the polling observation contract stands on its
// own, and a client that never connects here loses nothing but latency.

// DecisionEvent is a single decision broadcast to feed subscribers.
type DecisionEvent struct {
	Type      string `json:"type"` // "issuance_decided", "redemption_finalized", "migration_decided"
	ID        string `json:"id"`
	StoreID   string `json:"store_id,omitempty"`
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

// DecisionHub manages subscriber channels for the live decision feed.
type DecisionHub struct {
	mu      sync.Mutex
	clients map[chan []byte]struct{}
}

// NewDecisionHub creates a new decision broadcast hub.
func NewDecisionHub() *DecisionHub {
	return &DecisionHub{
		clients: make(map[chan []byte]struct{}),
	}
}

// Broadcast sends a decision event to all connected clients.
func (h *DecisionHub) Broadcast(event DecisionEvent) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- data:
		default:
			// Client too slow — drop message
		}
	}
}

// Subscribe registers a new client. Returns the channel and an unsubscribe func.
func (h *DecisionHub) Subscribe() (chan []byte, func()) {
	ch := make(chan []byte, 32)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		if _, ok := h.clients[ch]; ok {
			delete(h.clients, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
}

// ClientCount returns the number of connected clients.
func (h *DecisionHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// HandleSSE serves the live decision feed via Server-Sent Events.
// GET /api/feed/decisions
func (h *DecisionHub) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	flusher.Flush()

	ch, unsub := h.Subscribe()
	defer unsub()

	for {
		select {
		case <-r.Context().Done():
			return
		case data, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: "))
			w.Write(data)
			w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}
