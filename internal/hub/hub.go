// Package hub fans task events out to the live sessions of each user.
//
// Every connection owns a Subscription with a bounded outbound queue and
// joins the room of the user it authenticated as. Publishing to a user
// enqueues the event on every subscription in that room without blocking;
// a subscription that cannot keep up is evicted, and its Done channel is
// closed so the transport can hang up and the client can resync.
package hub

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/adanyl0v/taskdock/internal/models"
)

const DefaultQueueSize = 64

var ErrUnknownConnection = errors.New("unknown connection")

type Subscription struct {
	ConnID string

	userID string
	events chan models.TaskEvent
	done   chan struct{}
	once   sync.Once
}

// Events yields the events published to the subscription's room in
// publish order.
func (s *Subscription) Events() <-chan models.TaskEvent {
	return s.events
}

// Done is closed once the subscription leaves the hub, either by
// Disconnect or by eviction.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) close() {
	s.once.Do(func() {
		close(s.done)
	})
}

// Forwarder receives every published event after local delivery, for
// relaying to other instances.
type Forwarder interface {
	Forward(ctx context.Context, userID string, evt models.TaskEvent) error
}

type Hub struct {
	logger    zerolog.Logger
	queueSize int

	mu        sync.Mutex
	subs      map[string]*Subscription
	rooms     map[string]map[string]*Subscription
	forwarder Forwarder
}

func New(logger zerolog.Logger, queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Hub{
		logger:    logger,
		queueSize: queueSize,
		subs:      make(map[string]*Subscription),
		rooms:     make(map[string]map[string]*Subscription),
	}
}

func (h *Hub) SetForwarder(f Forwarder) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.forwarder = f
}

// Connect registers a connection that has not joined a room yet. A second
// Connect with the same id returns the existing subscription.
func (h *Hub) Connect(connID string) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub, ok := h.subs[connID]; ok {
		return sub
	}
	sub := &Subscription{
		ConnID: connID,
		events: make(chan models.TaskEvent, h.queueSize),
		done:   make(chan struct{}),
	}
	h.subs[connID] = sub

	h.logger.Debug().
		Str("conn_id", connID).
		Msg("connection registered")
	return sub
}

// Join puts the connection into userID's room. Joining the same room again
// is a no-op; joining another room leaves the previous one.
func (h *Hub) Join(connID, userID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.subs[connID]
	if !ok {
		return ErrUnknownConnection
	}
	if sub.userID == userID {
		return nil
	}
	if sub.userID != "" {
		h.leaveLocked(sub)
	}

	room, ok := h.rooms[userID]
	if !ok {
		room = make(map[string]*Subscription)
		h.rooms[userID] = room
	}
	room[connID] = sub
	sub.userID = userID

	h.logger.Debug().
		Str("conn_id", connID).
		Str("user_id", userID).
		Msg("connection joined room")
	return nil
}

// Disconnect removes the connection from the hub and its room.
func (h *Hub) Disconnect(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.subs[connID]
	if !ok {
		return
	}
	h.removeLocked(sub)

	h.logger.Debug().
		Str("conn_id", connID).
		Msg("connection removed")
}

// Publish delivers evt to every session in userID's room and hands it to
// the forwarder, if any. It never blocks on a slow session.
func (h *Hub) Publish(ctx context.Context, userID string, evt models.TaskEvent) {
	forwarder := h.deliver(userID, evt)
	if forwarder == nil {
		return
	}

	err := forwarder.Forward(ctx, userID, evt)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("user_id", userID).
			Str("event", string(evt.Type)).
			Msg("failed to forward event")
	}
}

// Deliver is Publish without forwarding. The relay uses it for events
// that originated on another instance.
func (h *Hub) Deliver(userID string, evt models.TaskEvent) {
	h.deliver(userID, evt)
}

func (h *Hub) deliver(userID string, evt models.TaskEvent) Forwarder {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for _, sub := range h.rooms[userID] {
		select {
		case sub.events <- evt:
			delivered++
		default:
			h.logger.Warn().
				Str("conn_id", sub.ConnID).
				Str("user_id", userID).
				Msg("evicting slow subscription")
			h.removeLocked(sub)
		}
	}

	h.logger.Debug().
		Str("user_id", userID).
		Str("event", string(evt.Type)).
		Str("task_id", evt.Task.ID).
		Int("sessions", delivered).
		Msg("published event")
	return h.forwarder
}

func (h *Hub) ConnectionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) RoomCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}

// RoomSize returns the number of sessions joined to userID's room.
func (h *Hub) RoomSize(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[userID])
}

// Close removes every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subs {
		h.removeLocked(sub)
	}
}

func (h *Hub) removeLocked(sub *Subscription) {
	if sub.userID != "" {
		h.leaveLocked(sub)
	}
	delete(h.subs, sub.ConnID)
	sub.close()
}

func (h *Hub) leaveLocked(sub *Subscription) {
	room := h.rooms[sub.userID]
	delete(room, sub.ConnID)
	if len(room) == 0 {
		delete(h.rooms, sub.userID)
	}
	sub.userID = ""
}
