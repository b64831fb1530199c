// Package domain contains core concepts of the messaging system.
// This file defines Room identity and membership invariants.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type RoomID string

func NewRoomID() RoomID {
	return RoomID(uuid.NewString())
}

// Room is a named conversation scoped to a fixed set of participants.
// The participant set is never empty while the room exists.
type Room struct {
	ID           RoomID
	Name         string
	Participants map[string]struct{}
	CreatedAt    time.Time
}

func NewRoom(name string, participants []string, createdAt time.Time) Room {
	set := make(map[string]struct{}, len(participants))
	for _, p := range participants {
		set[p] = struct{}{}
	}
	return Room{
		ID:           NewRoomID(),
		Name:         name,
		Participants: set,
		CreatedAt:    createdAt,
	}
}

func (r Room) IsParticipant(userID string) bool {
	_, ok := r.Participants[userID]
	return ok
}

// ParticipantIDs returns the membership as a slice. The order is not
// significant.
func (r Room) ParticipantIDs() []string {
	ids := make([]string, 0, len(r.Participants))
	for id := range r.Participants {
		ids = append(ids, id)
	}
	return ids
}

// Clone returns a copy whose participant set is detached from the
// original, so callers can hold it outside the registry lock.
func (r Room) Clone() Room {
	set := make(map[string]struct{}, len(r.Participants))
	for id := range r.Participants {
		set[id] = struct{}{}
	}
	r.Participants = set
	return r
}
