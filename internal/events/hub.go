// Package events broadcasts data changes to interested listeners such as
// the browser event stream.
package events

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event types.
const (
	TypeCreated        = "created"
	TypeUpdated        = "updated"
	TypeDeleted        = "deleted"
	TypeExternalChange = "external_change"
)

// Entity kinds.
const (
	EntityProject     = "project"
	EntityBox         = "box"
	EntityPlugin      = "plugin"
	EntityProvisioner = "provisioner"
	EntityTrigger     = "trigger"
)

// Event describes one change to stored data.
type Event struct {
	Type   string    `json:"type"`
	Entity string    `json:"entity"`
	ID     string    `json:"id,omitempty"`
	At     time.Time `json:"at"`
}

// Publisher accepts events. Publish must not block.
type Publisher interface {
	Publish(Event)
}

const defaultBuffer = 32

// Hub fans events out to subscribers. A subscriber whose buffer is full
// misses the event instead of stalling the publisher.
type Hub struct {
	mu     sync.RWMutex
	subs   map[chan Event]struct{}
	buffer int
	closed bool
	log    *zap.Logger
}

// NewHub returns an empty hub. log may be nil.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		subs:   make(map[chan Event]struct{}),
		buffer: defaultBuffer,
		log:    log,
	}
}

// Subscribe registers a listener. The returned cancel func unregisters it
// and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, h.buffer)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			if _, ok := h.subs[ch]; ok {
				delete(h.subs, ch)
				close(ch)
			}
			h.mu.Unlock()
		})
	}
}

// Publish delivers e to every subscriber with room in its buffer.
func (h *Hub) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- e:
		default:
			h.log.Debug("dropping event for slow subscriber",
				zap.String("type", e.Type), zap.String("entity", e.Entity))
		}
	}
}

// Subscribers returns the number of active subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close closes every subscriber channel. Later subscriptions get a closed
// channel and later publishes are no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		close(ch)
		delete(h.subs, ch)
	}
}
