// Package ws implements the bidirectional stream protocol over
// websocket: subscribe/unsubscribe/publish/markRead inbound,
// backfill/live/ack/error outbound. JSON frames, one type tag each.
package ws

import (
	"time"

	"gigchat/domain"
)

const (
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FramePublish     = "publish"
	FrameMarkRead    = "markRead"

	FrameBackfill = "backfill"
	FrameLive     = "live"
	FrameAck      = "ack"
	FrameError    = "error"
)

type ClientFrame struct {
	Type        string          `json:"type"`
	RoomID      string          `json:"roomId,omitempty"`
	LastSeenSeq uint64          `json:"lastSeenSeq,omitempty"`
	Seq         uint64          `json:"seq,omitempty"`
	Content     *domain.Content `json:"content,omitempty"`
}

type MessagePayload struct {
	ID       string         `json:"id"`
	RoomID   string         `json:"roomId"`
	SenderID string         `json:"senderId"`
	Content  domain.Content `json:"content"`
	Sequence uint64         `json:"sequence"`
	At       time.Time      `json:"timestamp"`
}

type ServerFrame struct {
	Type     string           `json:"type"`
	RoomID   string           `json:"roomId,omitempty"`
	Messages []MessagePayload `json:"messages,omitempty"`
	Message  *MessagePayload  `json:"message,omitempty"`
	Sequence uint64           `json:"sequence,omitempty"`
	Kind     string           `json:"kind,omitempty"`
	Detail   string           `json:"detail,omitempty"`
}

func toPayload(msg domain.Message) MessagePayload {
	return MessagePayload{
		ID:       msg.ID.String(),
		RoomID:   string(msg.RoomID),
		SenderID: msg.SenderID,
		Content:  msg.Content,
		Sequence: msg.Sequence,
		At:       msg.At,
	}
}
