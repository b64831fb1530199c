// Package event defines the domain events flowing through the fanout
// pipeline. Events are immutable facts; consumers must not mutate them.
package event

import (
	"time"

	"gigchat/domain"
)

type DomainEvent interface {
	Room() domain.RoomID
}

// MessageAppended is emitted exactly once per appended message, after
// the message has received its sequence number.
type MessageAppended struct {
	Message domain.Message
}

func (e MessageAppended) Room() domain.RoomID { return e.Message.RoomID }

type RoomCreated struct {
	RoomID       domain.RoomID
	Name         string
	Participants []string
	At           time.Time
}

func (e RoomCreated) Room() domain.RoomID { return e.RoomID }

type ParticipantAdded struct {
	RoomID domain.RoomID
	UserID string
	At     time.Time
}

func (e ParticipantAdded) Room() domain.RoomID { return e.RoomID }

type ParticipantRemoved struct {
	RoomID domain.RoomID
	UserID string
	At     time.Time
}

func (e ParticipantRemoved) Room() domain.RoomID { return e.RoomID }
