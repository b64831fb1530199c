// Package projection builds read-side state from observed events.
// Projections are caches: everything here is recomputable from the
// room log and the registry, never a source of truth.
package projection

import (
	"context"
	"log/slog"
	"sync"

	"gigchat/contract"
	"gigchat/domain"
	"gigchat/domain/event"
	"gigchat/errors"
)

type unreadKey struct {
	UserID string
	RoomID domain.RoomID
}

// unreadState caches one (user, room) counter. lastCountedSeq makes
// Consume idempotent per message: an event replayed by the dispatcher
// can never double-count.
type unreadState struct {
	lastReadSeq    uint64
	lastCountedSeq uint64
	unread         uint64
}

// UnreadTracker counts, per user and room, the messages from other
// participants not yet acknowledged via MarkRead. It consumes
// MessageAppended events from the fanout pipeline.
type UnreadTracker struct {
	mu     sync.Mutex
	states map[unreadKey]*unreadState
	store  contract.MessageLog
	rooms  contract.Rooms
	log    *slog.Logger
}

var _ contract.UnreadCounts = (*UnreadTracker)(nil)

func NewUnreadTracker(store contract.MessageLog, rooms contract.Rooms, log *slog.Logger) *UnreadTracker {
	return &UnreadTracker{
		states: make(map[unreadKey]*unreadState),
		store:  store,
		rooms:  rooms,
		log:    log,
	}
}

// Consume increments the counter of every participant except the
// sender. Events at or below a state's lastCountedSeq are ignored;
// an event arriving ahead of the counted watermark means concurrent
// publishers overtook each other, and the counter is rebuilt from the
// log, which already holds every sequence up to the event's.
func (t *UnreadTracker) Consume(_ context.Context, e event.DomainEvent) error {
	appended, ok := e.(event.MessageAppended)
	if !ok {
		return nil
	}
	msg := appended.Message

	room, err := t.rooms.GetRoom(msg.RoomID)
	if err != nil {
		t.log.Warn("Unread update for unknown room", "room_id", msg.RoomID)
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for userID := range room.Participants {
		st := t.stateLocked(userID, msg.RoomID)
		switch {
		case msg.Sequence <= st.lastCountedSeq:
			// Already covered, directly or by a recount.
		case msg.Sequence == st.lastCountedSeq+1:
			if msg.Sequence > st.lastReadSeq && userID != msg.SenderID {
				st.unread++
			}
			st.lastCountedSeq = msg.Sequence
		default:
			if err := t.recountLocked(userID, msg.RoomID, st); err != nil {
				return err
			}
		}
	}
	return nil
}

// MarkRead advances the watermark monotonically and recomputes the
// counter from the log. Regressions are ignored, not errors.
func (t *UnreadTracker) MarkRead(userID string, roomID domain.RoomID, seq uint64) error {
	latest := t.store.LatestSeq(roomID)
	if seq > latest {
		return errors.Validationf("seq %d exceeds latest sequence %d of room %s", seq, latest, roomID)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.stateLocked(userID, roomID)
	if seq <= st.lastReadSeq {
		return nil
	}
	st.lastReadSeq = seq
	if err := t.recountLocked(userID, roomID, st); err != nil {
		return err
	}
	if seq > st.lastCountedSeq {
		st.lastCountedSeq = seq
	}
	return nil
}

// recountLocked rebuilds one counter from the log: messages in
// (lastReadSeq, latest] sent by others. The scan end becomes the new
// counted watermark so an event already reflected here is skipped when
// it arrives.
func (t *UnreadTracker) recountLocked(userID string, roomID domain.RoomID, st *unreadState) error {
	messages, err := t.store.ReadRange(domain.ReadRangeQuery{RoomID: roomID, AfterSeq: st.lastReadSeq})
	if err != nil {
		return err
	}
	var unread, scanEnd uint64
	for _, msg := range messages {
		if msg.SenderID != userID {
			unread++
		}
		scanEnd = msg.Sequence
	}
	st.unread = unread
	if scanEnd > st.lastCountedSeq {
		st.lastCountedSeq = scanEnd
	}
	return nil
}

// GetUnread returns the cached count; 0 for a user with no state.
func (t *UnreadTracker) GetUnread(userID string, roomID domain.RoomID) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.states[unreadKey{UserID: userID, RoomID: roomID}]
	if !ok {
		return 0
	}
	return st.unread
}

func (t *UnreadTracker) stateLocked(userID string, roomID domain.RoomID) *unreadState {
	key := unreadKey{UserID: userID, RoomID: roomID}
	st, ok := t.states[key]
	if !ok {
		st = &unreadState{}
		t.states[key] = st
	}
	return st
}
