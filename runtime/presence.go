package runtime

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"gigchat/contract"
	"gigchat/domain"
	"gigchat/errors"
)

// connection is one attached client. A user may hold several
// simultaneous connections (multi-device); each owns its sink and its
// own set of room subscriptions.
type connection struct {
	id     string
	userID string
	sink   contract.ClientSink
	subs   map[domain.RoomID]*Subscription
}

// PresenceTracker tracks which connections are attached and which rooms
// they are subscribed to. It is the synchronization boundary for all
// presence state; nothing else touches these maps.
type PresenceTracker struct {
	mu       sync.RWMutex
	sessions map[string]*connection
	byUser   map[string]map[string]struct{}
	roomSubs map[domain.RoomID]map[string]*Subscription
	log      *slog.Logger
}

var _ contract.Presence = (*PresenceTracker)(nil)

func NewPresenceTracker(log *slog.Logger) *PresenceTracker {
	return &PresenceTracker{
		sessions: make(map[string]*connection),
		byUser:   make(map[string]map[string]struct{}),
		roomSubs: make(map[domain.RoomID]map[string]*Subscription),
		log:      log,
	}
}

// Attach registers a new live connection for a user and returns its id.
func (p *PresenceTracker) Attach(userID string, sink contract.ClientSink) string {
	connID := uuid.NewString()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions[connID] = &connection{
		id:     connID,
		userID: userID,
		sink:   sink,
		subs:   make(map[domain.RoomID]*Subscription),
	}
	if _, ok := p.byUser[userID]; !ok {
		p.byUser[userID] = make(map[string]struct{})
	}
	p.byUser[userID][connID] = struct{}{}
	p.log.Debug(fmt.Sprintf("Connection %s attached for user %s", connID, userID))
	return connID
}

// Detach removes a connection, cancelling all its subscription workers.
// Detaching an unknown connection is a no-op.
func (p *PresenceTracker) Detach(connID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	conn, ok := p.sessions[connID]
	if !ok {
		return
	}
	for roomID, sub := range conn.subs {
		sub.stop()
		p.removeRoomSubLocked(roomID, connID)
	}
	delete(p.sessions, connID)

	if conns, ok := p.byUser[conn.userID]; ok {
		delete(conns, connID)
		// No empty sets are left behind to avoid leaking user entries.
		if len(conns) == 0 {
			delete(p.byUser, conn.userID)
		}
	}
	p.log.Debug(fmt.Sprintf("Connection %s detached", connID))
}

// IsOnline is true iff at least one attached connection exists for the
// user.
func (p *PresenceTracker) IsOnline(userID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byUser[userID]) > 0
}

// UserOf resolves the user behind a connection.
func (p *PresenceTracker) UserOf(connID string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	conn, ok := p.sessions[connID]
	if !ok {
		return "", errors.NotFoundf("connection %s", connID)
	}
	return conn.userID, nil
}

// SinkOf returns a connection's outbound half.
func (p *PresenceTracker) SinkOf(connID string) (contract.ClientSink, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	conn, ok := p.sessions[connID]
	if !ok {
		return nil, errors.NotFoundf("connection %s", connID)
	}
	return conn.sink, nil
}

// Register records a subscription. A resubscribe to the same room
// replaces the previous subscription, cancelling its worker first.
func (p *PresenceTracker) Register(sub *Subscription) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	conn, ok := p.sessions[sub.connID]
	if !ok {
		return errors.NotFoundf("connection %s", sub.connID)
	}
	if previous, ok := conn.subs[sub.roomID]; ok {
		previous.stop()
		p.removeRoomSubLocked(sub.roomID, sub.connID)
	}
	conn.subs[sub.roomID] = sub
	if _, ok := p.roomSubs[sub.roomID]; !ok {
		p.roomSubs[sub.roomID] = make(map[string]*Subscription)
	}
	p.roomSubs[sub.roomID][sub.connID] = sub
	return nil
}

// Drop removes one subscription and cancels its worker. Used both for
// explicit unsubscribes and for the slow-consumer policy.
func (p *PresenceTracker) Drop(connID string, roomID domain.RoomID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	conn, ok := p.sessions[connID]
	if !ok {
		return
	}
	sub, ok := conn.subs[roomID]
	if !ok {
		return
	}
	sub.stop()
	delete(conn.subs, roomID)
	p.removeRoomSubLocked(roomID, connID)
}

// SubscriptionsForRoom returns the live subscriptions of a room, nil
// when there are none.
func (p *PresenceTracker) SubscriptionsForRoom(roomID domain.RoomID) []contract.Subscription {
	p.mu.RLock()
	defer p.mu.RUnlock()
	subs, ok := p.roomSubs[roomID]
	if !ok {
		return nil
	}
	res := make([]contract.Subscription, 0, len(subs))
	for _, sub := range subs {
		res = append(res, sub)
	}
	return res
}

func (p *PresenceTracker) removeRoomSubLocked(roomID domain.RoomID, connID string) {
	if subs, ok := p.roomSubs[roomID]; ok {
		delete(subs, connID)
		if len(subs) == 0 {
			delete(p.roomSubs, roomID)
		}
	}
}
