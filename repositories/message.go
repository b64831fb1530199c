//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_store.go -package=mocks
package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"gigchat/contract"
	"gigchat/domain"
	"gigchat/errors"
)

// maxSeqSuffix sorts after every 20-digit padded sequence, so a reverse
// seek lands on the newest entry of a room prefix.
const maxSeqSuffix = "99999999999999999999"

type IMessageStore interface {
	contract.MessageLog
}

// MessageStore persists the append-only room logs in BadgerDB.
//
// Keys are formatted as "msg:{room_id}:{sequence_padded}" so that:
//  1. Lexicographical order equals sequence order (20-digit zero padding).
//  2. A prefix scan over one room is a gapless ascending walk of its log.
//
// Append holds one exclusive critical section per room: sequence
// assignment and persistence happen atomically, and appends to
// different rooms proceed in parallel.
type MessageStore struct {
	db    *badger.DB
	rooms contract.Rooms
	log   *slog.Logger

	mu     sync.Mutex
	states map[domain.RoomID]*roomState
}

// roomState is the per-room writer state. poisoned is set when a
// sequence conflict is observed; further appends to that room fail
// instead of corrupting sequence integrity.
type roomState struct {
	mu       sync.Mutex
	latest   uint64
	lastAt   time.Time
	poisoned bool
}

func NewMessageStore(db *badger.DB, rooms contract.Rooms, log *slog.Logger) *MessageStore {
	return &MessageStore{
		db:     db,
		rooms:  rooms,
		log:    log,
		states: make(map[domain.RoomID]*roomState),
	}
}

type diskMessage struct {
	ID       string         `json:"id"`
	Room     string         `json:"room"`
	Sender   string         `json:"sender"`
	Content  domain.Content `json:"content"`
	Sequence uint64         `json:"sequence"`
	At       int64          `json:"at"` // unix nanoseconds UTC
}

// Append validates membership and content, then assigns the next
// sequence number for the room under the room's writer lock and
// persists the message. This call is the single point of ordering
// truth.
func (s *MessageStore) Append(ctx context.Context, cmd domain.PostMessageCommand) (domain.Message, error) {
	if !s.rooms.IsMember(cmd.RoomID, cmd.SenderID) {
		return domain.Message{}, errors.Permissionf("user %s is not a member of room %s", cmd.SenderID, cmd.RoomID)
	}
	if err := cmd.Content.Validate(); err != nil {
		return domain.Message{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.Message{}, errors.Transportf("append canceled: %v", err)
	}

	st, err := s.state(cmd.RoomID)
	if err != nil {
		return domain.Message{}, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.poisoned {
		return domain.Message{}, errors.Conflictf("room %s writer aborted after a sequence conflict", cmd.RoomID)
	}

	seq := st.latest + 1
	at := time.Now().UTC()
	// Timestamps are monotonic per room even when the wall clock steps back.
	if !at.After(st.lastAt) {
		at = st.lastAt.Add(time.Nanosecond)
	}

	msg := domain.Message{
		ID:       uuid.New(),
		RoomID:   cmd.RoomID,
		SenderID: cmd.SenderID,
		Content:  cmd.Content,
		Sequence: seq,
		At:       at,
	}

	if err := s.write(msg); err != nil {
		if errors.Is(err, errors.ErrConflict) {
			st.poisoned = true
			s.log.Error("Sequence conflict, aborting room writer",
				"room_id", cmd.RoomID, "sequence", seq)
		}
		return domain.Message{}, err
	}

	st.latest = seq
	st.lastAt = at
	return msg, nil
}

func (s *MessageStore) write(msg domain.Message) error {
	key := messageKey(msg.RoomID, msg.Sequence)
	bytes, err := json.Marshal(diskMessage{
		ID:       msg.ID.String(),
		Room:     string(msg.RoomID),
		Sender:   msg.SenderID,
		Content:  msg.Content,
		Sequence: msg.Sequence,
		At:       msg.At.UnixNano(),
	})
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		switch _, err := txn.Get(key); err {
		case badger.ErrKeyNotFound:
			return txn.Set(key, bytes)
		case nil:
			return errors.Conflictf("sequence %d already written for room %s", msg.Sequence, msg.RoomID)
		default:
			return err
		}
	})
}

// ReadRange returns messages with sequence > AfterSeq, ascending, up to
// Limit (zero means no limit). The scan is snapshot-consistent: it may
// miss a message appended concurrently but never observes a gap.
func (s *MessageStore) ReadRange(q domain.ReadRangeQuery) ([]domain.Message, error) {
	if !s.rooms.Exists(q.RoomID) {
		return nil, errors.NotFoundf("room %s", q.RoomID)
	}

	var raw [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(roomPrefix(q.RoomID))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(messageKey(q.RoomID, q.AfterSeq+1)); it.ValidForPrefix(prefix); it.Next() {
			if q.Limit > 0 && len(raw) == q.Limit {
				break
			}
			err := it.Item().Value(func(value []byte) error {
				raw = append(raw, append([]byte(nil), value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	messages := make([]domain.Message, 0, len(raw))
	for _, b := range raw {
		msg, err := decodeMessage(b)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// LatestSeq returns the highest assigned sequence, 0 when the room has
// no messages yet.
func (s *MessageStore) LatestSeq(roomID domain.RoomID) uint64 {
	st, err := s.state(roomID)
	if err != nil {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.latest
}

// state returns the per-room writer state, seeding latest from the
// newest persisted key on first access so a pre-existing Badger
// directory never causes a false sequence conflict.
func (s *MessageStore) state(roomID domain.RoomID) (*roomState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[roomID]; ok {
		return st, nil
	}
	latest, lastAt, err := s.loadLatest(roomID)
	if err != nil {
		return nil, err
	}
	st := &roomState{latest: latest, lastAt: lastAt}
	s.states[roomID] = st
	return st, nil
}

func (s *MessageStore) loadLatest(roomID domain.RoomID) (uint64, time.Time, error) {
	var latest uint64
	var lastAt time.Time
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(roomPrefix(roomID))
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		it.Seek(append(prefix, []byte(maxSeqSuffix)...))
		if !it.ValidForPrefix(prefix) {
			return nil
		}
		return it.Item().Value(func(value []byte) error {
			msg, err := decodeMessage(value)
			if err != nil {
				return err
			}
			latest = msg.Sequence
			lastAt = msg.At
			return nil
		})
	})
	return latest, lastAt, err
}

func decodeMessage(b []byte) (domain.Message, error) {
	var dm diskMessage
	if err := json.Unmarshal(b, &dm); err != nil {
		return domain.Message{}, err
	}
	parsedID, err := uuid.Parse(dm.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:       parsedID,
		RoomID:   domain.RoomID(dm.Room),
		SenderID: dm.Sender,
		Content:  dm.Content,
		Sequence: dm.Sequence,
		At:       time.Unix(0, dm.At).UTC(),
	}, nil
}

func roomPrefix(roomID domain.RoomID) string {
	return fmt.Sprintf("msg:%s:", roomID)
}

func messageKey(roomID domain.RoomID, seq uint64) []byte {
	return []byte(fmt.Sprintf("msg:%s:%020d", roomID, seq))
}
