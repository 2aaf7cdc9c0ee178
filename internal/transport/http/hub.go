package http

import (
	"sync"

	"github.com/rs/zerolog"

	"trivia-race-service/internal/domain"
)

const eventBuffer = 64

// Hub routes room events to the connection that owns a player id. It implements app.Notifier.
type Hub struct {
	log   zerolog.Logger
	mu    sync.RWMutex
	conns map[string]chan domain.Event
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log:   log,
		conns: make(map[string]chan domain.Event),
	}
}

// Send never blocks: if the connection is not keeping up the event is dropped.
func (h *Hub) Send(playerID string, event domain.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ch, ok := h.conns[playerID]
	if !ok {
		return
	}
	select {
	case ch <- event:
	default:
		h.log.Warn().Str("player", playerID).Str("event", event.Type).Msg("dropping event for slow connection")
	}
}

// Connected reports how many players currently have a live connection.
func (h *Hub) Connected() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) register(playerID string) <-chan domain.Event {
	ch := make(chan domain.Event, eventBuffer)
	h.mu.Lock()
	h.conns[playerID] = ch
	h.mu.Unlock()
	return ch
}

func (h *Hub) unregister(playerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.conns[playerID]; ok {
		delete(h.conns, playerID)
		close(ch)
	}
}
