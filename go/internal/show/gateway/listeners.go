package gateway

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/liveshow/go/internal/show/events"
)

// Handler receives decoded inbound events in delivery order.
type Handler interface {
	HandleEvent(ev events.Event)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ev events.Event)

func (f HandlerFunc) HandleEvent(ev events.Event) { f(ev) }

// Listeners is the registry transports deliver into. Registration is keyed,
// so attaching the same key twice replaces the handler instead of doubling
// every event.
type Listeners struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	order    []string
}

// NewListeners creates an empty registry.
func NewListeners() *Listeners {
	return &Listeners{handlers: make(map[string]Handler)}
}

// Register attaches h under key.
func (l *Listeners) Register(key string, h Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.handlers[key]; !exists {
		l.order = append(l.order, key)
	}
	l.handlers[key] = h

	log.Debug().Str("listener", key).Int("total_listeners", len(l.handlers)).Msg("listener registered")
}

// Unregister detaches the handler under key, if any.
func (l *Listeners) Unregister(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.handlers[key]; !exists {
		return
	}
	delete(l.handlers, key)
	for i, k := range l.order {
		if k == key {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of registered handlers.
func (l *Listeners) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.handlers)
}

// Deliver hands ev to every handler in registration order. Transports call it
// from a single goroutine, which keeps per-connection ordering.
func (l *Listeners) Deliver(ev events.Event) {
	l.mu.RLock()
	targets := make([]Handler, 0, len(l.order))
	for _, key := range l.order {
		targets = append(targets, l.handlers[key])
	}
	l.mu.RUnlock()

	for _, h := range targets {
		h.HandleEvent(ev)
	}
}

// deliverRaw decodes one named payload and delivers it. Undecodable payloads
// are logged and skipped so one broken event never blocks the next.
func (l *Listeners) deliverRaw(name string, data []byte) {
	ev, err := events.Decode(name, data)
	if errors.Is(err, events.ErrUnknownEvent) {
		log.Debug().Str("event", name).Msg("ignoring unknown event")
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("event", name).Msg("skipping undecodable event")
		return
	}
	log.Debug().Str("event", name).Msg("event received")
	l.Deliver(ev)
}
