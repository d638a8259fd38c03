// Package dashboard implements a read-only operational pub/sub hub that
// mirrors coordinator events (membership transitions, multicast dispatch)
// to connected WebSocket observers.
//
// This is adapted from the teacher's server/internal/websocket package: the
// same single-writer event-loop design (register/unregister serialized
// through channels inside Run, Publish taking a short read-lock to copy the
// target set before sending outside it) that the multicast dispatch fabric
// itself uses for delivery (spec §4.4, §5) — here repurposed from a
// per-topic backup-job feed to a single broadcast feed of operational
// events. It never affects delivery or replay semantics: a slow or absent
// dashboard observer has zero effect on participants.
package dashboard

import "sync"

// Hub is the broadcast hub for dashboard observers. The zero value is not
// usable; construct with NewHub.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	stopped    chan struct{}
}

// NewHub creates an idle Hub. Call Run in a goroutine to start it.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		stopped:    make(chan struct{}),
	}
}

// doneSignal is the minimal interface Run needs from a context.Context,
// kept narrow so the package does not need to import context directly for
// this one use.
type doneSignal interface {
	Done() <-chan struct{}
}

// Run starts the hub's event loop. It must be called exactly once, in its
// own goroutine, and exits when ctx is cancelled.
func (h *Hub) Run(ctx doneSignal) {
	defer close(h.stopped)

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
			}
			h.clients = make(map[*Client]struct{})
			h.mu.Unlock()
			return
		}
	}
}

// Publish sends ev to every connected observer. Safe to call from any
// goroutine (the coordinator's dispatcher and request handlers). Observers
// whose send buffer is full are disconnected rather than allowed to stall
// the publisher.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- ev:
		default:
			select {
			case h.unregister <- c:
			default:
			}
		}
	}
}

// Subscribe registers client with the hub.
func (h *Hub) Subscribe(client *Client) {
	h.register <- client
}

// Unsubscribe removes client from the hub.
func (h *Hub) Unsubscribe(client *Client) {
	h.unregister <- client
}

// ObserverCount returns the number of currently connected observers.
func (h *Hub) ObserverCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
