package event

import (
	"sync"
)

type Handler[Event any] interface {
	OnEvent(e Event)
}

// HandlerFunc is an adapter to allow the use of ordinary
// functions as Handlers.
type HandlerFunc[Event any] func(Event)

// OnEvent calls f(e).
func (f HandlerFunc[Event]) OnEvent(e Event) {
	f(e)
}

// Bus fans every event out to all registered handlers. Each handler is
// invoked on its own goroutine, so a slow observer never blocks the caller.
type Bus[Event any] struct {
	handlersMu sync.RWMutex
	handlers   []Handler[Event]
}

func NewBus[Event any]() *Bus[Event] {
	return &Bus[Event]{
		handlersMu: sync.RWMutex{},
		handlers:   nil,
	}
}

func (b *Bus[Event]) AddHandler(h Handler[Event]) {
	b.handlersMu.Lock()
	b.handlers = append(b.handlers, h)
	b.handlersMu.Unlock()
}

// Notify dispatches e to every handler registered at the time of the call.
func (b *Bus[Event]) Notify(e Event) {
	b.handlersMu.RLock()
	// Copy handlers to prevent race conditions
	handlers := make([]Handler[Event], len(b.handlers))
	copy(handlers, b.handlers)
	b.handlersMu.RUnlock()

	// Execute handlers outside the lock
	for _, h := range handlers {
		go h.OnEvent(e)
	}
}
