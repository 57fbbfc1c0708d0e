package app

import (
	"sync"

	"quiz-attempt-service/internal/domain"
)

// Broadcaster receives group updates after a leaderboard change.
type Broadcaster interface {
	Publish(update domain.GroupUpdate)
}

// Hub fans group updates out to live subscribers, keyed by group.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan domain.GroupUpdate]struct{}
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[string]map[chan domain.GroupUpdate]struct{})}
}

// Subscribe returns a channel of updates for key.
// The caller must invoke the returned cancel function to avoid leaks.
func (h *Hub) Subscribe(key domain.GroupKey) (<-chan domain.GroupUpdate, func()) {
	ch := make(chan domain.GroupUpdate, 8)
	id := key.String()

	h.mu.Lock()
	subs, ok := h.subscribers[id]
	if !ok {
		subs = make(map[chan domain.GroupUpdate]struct{})
		h.subscribers[id] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs, ok := h.subscribers[id]
		if !ok {
			return
		}
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(h.subscribers, id)
		}
	}
	return ch, cancel
}

// Publish delivers update to every subscriber of its group. A subscriber
// that has fallen behind loses its oldest pending update.
func (h *Hub) Publish(update domain.GroupUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers[update.Key.String()] {
		select {
		case ch <- update:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- update
		}
	}
}

// Subscribers reports how many subscribers a group has.
func (h *Hub) Subscribers(key domain.GroupKey) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[key.String()])
}
