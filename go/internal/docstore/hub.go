package docstore

import (
	"sync"

	"github.com/rs/zerolog/log"
)

type watcher struct {
	match func(Change) bool
	dirty chan struct{}
}

func (w *watcher) notify() {
	select {
	case w.dirty <- struct{}{}:
	default:
		// a refresh is already pending
	}
}

// Hub fans store changes out to subscriptions and change listeners.
type Hub struct {
	mu        sync.RWMutex
	watchers  map[*watcher]struct{}
	listeners map[int]func(Change)
	nextID    int
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		watchers:  make(map[*watcher]struct{}),
		listeners: make(map[int]func(Change)),
	}
}

// Publish marks every matching subscription dirty and calls the listeners.
// Listeners run on the publishing goroutine and must not block.
func (h *Hub) Publish(c Change) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	matched := 0
	for w := range h.watchers {
		if w.match(c) {
			w.notify()
			matched++
		}
	}
	for _, fn := range h.listeners {
		fn(c)
	}

	log.Debug().
		Str("path", c.Path).
		Str("kind", string(c.Kind)).
		Int("subscriptions", matched).
		Msg("change published")
}

// Resync marks every subscription dirty, e.g. after the change feed lost its
// connection and notifications may have been missed.
func (h *Hub) Resync() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for w := range h.watchers {
		w.notify()
	}
}

// OnChange registers a listener and returns a function removing it.
func (h *Hub) OnChange(fn func(Change)) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}

// Subscriptions returns the number of live subscriptions.
func (h *Hub) Subscriptions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.watchers)
}

func (h *Hub) add(w *watcher) func() {
	h.mu.Lock()
	h.watchers[w] = struct{}{}
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.watchers, w)
		h.mu.Unlock()
	}
}
