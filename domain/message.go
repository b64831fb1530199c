// Package domain contains core concepts of the messaging system.
// This file defines Message, the immutable unit of the room log.
// Messages are never edited or deleted once appended.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents an immutable chat event. Sequence is assigned at
// append time and is the sole ordering authority within a room.
type Message struct {
	ID       uuid.UUID
	RoomID   RoomID
	SenderID string
	Content  Content
	Sequence uint64
	At       time.Time
}
