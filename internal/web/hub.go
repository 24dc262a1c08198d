package web

import (
	"sync"

	"github.com/baysumehmet/botdeck/internal/bot"
)

// hubBuffer is the per-subscriber channel depth. A subscriber that falls
// this far behind starts losing events rather than blocking the publishers.
const hubBuffer = 256

// Hub fans bot events out to websocket subscribers. It implements bot.Sink
// so it can sit directly in the manager's sink chain.
type Hub struct {
	mu   sync.Mutex
	subs map[chan bot.Event]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan bot.Event]struct{})}
}

// Publish delivers the event to every subscriber. Never blocks; slow
// subscribers drop events.
func (h *Hub) Publish(ev bot.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe registers a new event channel.
func (h *Hub) Subscribe() chan bot.Event {
	ch := make(chan bot.Event, hubBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (h *Hub) Unsubscribe(ch chan bot.Event) {
	if ch == nil {
		return
	}
	h.mu.Lock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
