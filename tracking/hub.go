// Copyright 2025 The SafeMap Authors
// SPDX-License-Identifier: Apache-2.0

package tracking

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/touristsafety/safemap/cluster"
)

// UpdateType is the only message type pushed to live clients.
const UpdateType = "update"

// Update is the message broadcast when a tourist moves.
type Update struct {
	Type    string         `json:"type"`
	Name    string         `json:"name"`
	Lat     float64        `json:"lat"`
	Lng     float64        `json:"lon"`
	Battery int            `json:"battery"`
	Status  cluster.Status `json:"status,omitempty"`
	At      time.Time      `json:"at"`
}

// NewUpdate builds the broadcast message for t's current state.
func NewUpdate(t *Tourist) Update {
	return Update{
		Type:    UpdateType,
		Name:    t.Name,
		Lat:     t.Lat,
		Lng:     t.Lng,
		Battery: t.Battery,
		Status:  t.Status,
		At:      t.UpdatedAt,
	}
}

// Publisher delivers updates to whoever is listening.
type Publisher interface {
	Publish(ctx context.Context, u Update) error
}

// Hub fans updates out to in-process subscribers. A subscriber that cannot
// keep up is disconnected instead of blocking the publisher.
type Hub struct {
	mu      sync.Mutex
	subs    map[*Subscription]struct{}
	buffer  int
	closed  bool
	dropped atomic.Int64
}

// NewHub creates a hub whose subscribers buffer up to buffer updates.
func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = 1
	}

	return &Hub{
		subs:   make(map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Subscription is one listener registered on a Hub.
type Subscription struct {
	hub  *Hub
	ch   chan Update
	once sync.Once
}

// Updates returns the channel the subscriber reads from. It is closed when
// the subscription ends.
func (s *Subscription) Updates() <-chan Update {
	return s.ch
}

// Close unregisters the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()

	s.hub.remove(s)
}

// Subscribe registers a new listener. Subscribing to a closed hub returns a
// subscription whose channel is already closed.
func (h *Hub) Subscribe() *Subscription {
	s := &Subscription{hub: h, ch: make(chan Update, h.buffer)}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		s.once.Do(func() { close(s.ch) })

		return s
	}

	h.subs[s] = struct{}{}

	return s
}

// remove must be called with h.mu held.
func (h *Hub) remove(s *Subscription) {
	delete(h.subs, s)
	s.once.Do(func() { close(s.ch) })
}

// Publish hands u to every subscriber without blocking. Subscribers whose
// buffer is full are dropped.
func (h *Hub) Publish(_ context.Context, u Update) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for s := range h.subs {
		select {
		case s.ch <- u:
		default:
			h.remove(s)
			h.dropped.Add(1)
		}
	}

	return nil
}

// Len returns the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.subs)
}

// Dropped returns how many subscribers were disconnected for falling behind.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Close ends every subscription. Later publishes are no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true

	for s := range h.subs {
		h.remove(s)
	}
}
