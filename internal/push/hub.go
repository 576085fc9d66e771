// File: internal/push/hub.go
package push

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Subscription is one open push connection. Events arrive on C until the
// subscription is cancelled or the hub shuts down.
type Subscription struct {
	C      <-chan Event
	ch     chan Event
	cancel func()
}

// Close detaches the subscription from the hub.
func (s *Subscription) Close() {
	s.cancel()
}

// Hub is an in-memory push channel. A user may hold several subscriptions
// at once (multiple tabs or devices); an emit to the user reaches all of
// them. Sends never block: when a subscriber's buffer is full the event is
// dropped for that subscriber.
type Hub struct {
	mu         sync.RWMutex
	users      map[uuid.UUID]map[*Subscription]struct{}
	rooms      map[string]map[*Subscription]struct{}
	bufferSize int
	closed     bool
	logger     *zap.Logger
}

var _ Channel = (*Hub)(nil)

// NewHub creates a push hub. bufferSize is the per-subscriber channel
// buffer; a minimum of 1 is enforced so sends stay non-blocking.
func NewHub(bufferSize int, logger *zap.Logger) *Hub {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Hub{
		users:      make(map[uuid.UUID]map[*Subscription]struct{}),
		rooms:      make(map[string]map[*Subscription]struct{}),
		bufferSize: bufferSize,
		logger:     logger,
	}
}

// Subscribe opens a personal event stream for the given user.
func (h *Hub) Subscribe(userID uuid.UUID) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := h.newSubscriptionLocked()
	if h.closed {
		return sub
	}
	if h.users[userID] == nil {
		h.users[userID] = make(map[*Subscription]struct{})
	}
	h.users[userID][sub] = struct{}{}
	sub.cancel = func() { h.unsubscribe(userID, "", sub) }
	return sub
}

// SubscribeRoom opens an event stream for a named room.
func (h *Hub) SubscribeRoom(room string) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := h.newSubscriptionLocked()
	if h.closed {
		return sub
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Subscription]struct{})
	}
	h.rooms[room][sub] = struct{}{}
	sub.cancel = func() { h.unsubscribe(uuid.Nil, room, sub) }
	return sub
}

// EmitToUser delivers an event to every open subscription of one user.
func (h *Hub) EmitToUser(userID uuid.UUID, event string, payload interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	for sub := range h.users[userID] {
		h.send(sub, Event{Name: event, Payload: payload}, userID.String())
	}
}

// EmitToRoom delivers an event to every subscriber of a room.
func (h *Hub) EmitToRoom(room string, event string, payload interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	for sub := range h.rooms[room] {
		h.send(sub, Event{Name: event, Payload: payload}, room)
	}
}

// Close shuts the hub down and closes every subscriber channel. It is safe
// to call more than once.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, subs := range h.users {
		for sub := range subs {
			close(sub.ch)
		}
	}
	for _, subs := range h.rooms {
		for sub := range subs {
			close(sub.ch)
		}
	}
	h.users = make(map[uuid.UUID]map[*Subscription]struct{})
	h.rooms = make(map[string]map[*Subscription]struct{})
}

func (h *Hub) newSubscriptionLocked() *Subscription {
	ch := make(chan Event, h.bufferSize)
	sub := &Subscription{C: ch, ch: ch, cancel: func() {}}
	if h.closed {
		close(ch)
	}
	return sub
}

func (h *Hub) send(sub *Subscription, ev Event, target string) {
	select {
	case sub.ch <- ev:
	default:
		// Slow consumer. Dropping keeps emits non-blocking; the client
		// recovers state from the REST API on its next fetch.
		h.logger.Debug("Dropped push event for slow subscriber",
			zap.String("event", ev.Name), zap.String("target", target))
	}
}

func (h *Hub) unsubscribe(userID uuid.UUID, room string, sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	if room != "" {
		if subs := h.rooms[room]; subs != nil {
			if _, ok := subs[sub]; ok {
				delete(subs, sub)
				close(sub.ch)
			}
			if len(subs) == 0 {
				delete(h.rooms, room)
			}
		}
		return
	}
	if subs := h.users[userID]; subs != nil {
		if _, ok := subs[sub]; ok {
			delete(subs, sub)
			close(sub.ch)
		}
		if len(subs) == 0 {
			delete(h.users, userID)
		}
	}
}
