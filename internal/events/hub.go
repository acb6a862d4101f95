package events

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
)

// subscriberBuffer is the number of pending events a subscriber may lag
// behind before events are dropped for it.
const subscriberBuffer = 16

// Hub fans events out to in-process subscribers such as SSE streams.
type Hub struct {
	mu      sync.Mutex
	clients map[chan []byte]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[chan []byte]struct{})}
}

// Subscribe registers a new subscriber. The caller must Unsubscribe.
func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, subscriberBuffer)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes ch and closes it.
func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
	h.mu.Unlock()
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Publish encodes evt and offers it to every subscriber. Slow subscribers
// miss the event rather than block the publisher.
func (h *Hub) Publish(_ context.Context, evt Event) error {
	b, err := evt.Encode()
	if err != nil {
		return eris.Wrap(err, "events: encode")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- b:
		default:
		}
	}
	return nil
}
