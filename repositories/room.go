//go:generate go run go.uber.org/mock/mockgen -source=room.go -destination=../mocks/mock_room_registry.go -package=mocks
package repositories

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"

	"gigchat/domain"
	"gigchat/errors"
)

type IRoomRegistry interface {
	CreateRoom(name string, participants []string) (domain.Room, error)
	AddParticipant(roomID domain.RoomID, userID string) error
	RemoveParticipant(roomID domain.RoomID, userID string) error
	GetRoom(roomID domain.RoomID) (domain.Room, error)
	IsMember(roomID domain.RoomID, userID string) bool
	Exists(roomID domain.RoomID) bool
	RoomsFor(userID string) []domain.Room
}

// RoomRegistry owns room identity and membership. It is the only writer
// of the participant sets; everything else reads through its operations.
// State is process-scoped: rebuilding rooms across restarts is an
// explicit non-goal.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*domain.Room
	log   *slog.Logger
}

func NewRoomRegistry(log *slog.Logger) *RoomRegistry {
	return &RoomRegistry{
		rooms: make(map[domain.RoomID]*domain.Room),
		log:   log,
	}
}

// CreateRoom allocates a fresh room. A room requires at least two
// distinct parties; duplicates in the input collapse before the check.
func (r *RoomRegistry) CreateRoom(name string, participants []string) (domain.Room, error) {
	distinct := lo.Uniq(participants)
	if len(distinct) < 2 {
		return domain.Room{}, errors.Validationf("a room requires at least 2 distinct participants, got %d", len(distinct))
	}
	room := domain.NewRoom(name, distinct, time.Now().UTC())

	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[room.ID] = &room
	r.log.Debug(fmt.Sprintf("Room %s created with %d participants", room.ID, len(distinct)))
	return room.Clone(), nil
}

func (r *RoomRegistry) AddParticipant(roomID domain.RoomID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return errors.NotFoundf("room %s", roomID)
	}
	room.Participants[userID] = struct{}{}
	return nil
}

// RemoveParticipant never empties a room: removing the sole remaining
// member is rejected.
func (r *RoomRegistry) RemoveParticipant(roomID domain.RoomID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return errors.NotFoundf("room %s", roomID)
	}
	if _, member := room.Participants[userID]; !member {
		return nil
	}
	if len(room.Participants) == 1 {
		return errors.Validationf("removing %s would empty room %s", userID, roomID)
	}
	delete(room.Participants, userID)
	return nil
}

func (r *RoomRegistry) GetRoom(roomID domain.RoomID) (domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return domain.Room{}, errors.NotFoundf("room %s", roomID)
	}
	return room.Clone(), nil
}

// IsMember is a pure lookup: false for an unknown room, never an error.
func (r *RoomRegistry) IsMember(roomID domain.RoomID, userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	return room.IsParticipant(userID)
}

func (r *RoomRegistry) Exists(roomID domain.RoomID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[roomID]
	return ok
}

func (r *RoomRegistry) RoomsFor(userID string) []domain.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var res []domain.Room
	for _, room := range r.rooms {
		if room.IsParticipant(userID) {
			res = append(res, room.Clone())
		}
	}
	return res
}
