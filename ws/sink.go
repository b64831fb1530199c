package ws

import (
	"gigchat/contract"
	"gigchat/domain"
	"gigchat/errors"
)

// ConnSink is the outbound half of one websocket connection. The queue
// is bounded: a send on a full queue fails instead of blocking the
// dispatcher, and the caller reacts by dropping the subscription.
type ConnSink struct {
	outbound chan ServerFrame
}

var _ contract.ClientSink = (*ConnSink)(nil)

func NewConnSink(bufferSize int) *ConnSink {
	return &ConnSink{outbound: make(chan ServerFrame, bufferSize)}
}

// Frames is consumed by the connection's write loop, the sole writer on
// the socket.
func (s *ConnSink) Frames() <-chan ServerFrame {
	return s.outbound
}

func (s *ConnSink) SendBackfill(roomID domain.RoomID, messages []domain.Message) error {
	payloads := make([]MessagePayload, 0, len(messages))
	for _, msg := range messages {
		payloads = append(payloads, toPayload(msg))
	}
	return s.push(ServerFrame{Type: FrameBackfill, RoomID: string(roomID), Messages: payloads})
}

func (s *ConnSink) SendLive(roomID domain.RoomID, msg domain.Message) error {
	payload := toPayload(msg)
	return s.push(ServerFrame{Type: FrameLive, RoomID: string(roomID), Message: &payload})
}

func (s *ConnSink) SendAck(roomID domain.RoomID, sequence uint64) error {
	return s.push(ServerFrame{Type: FrameAck, RoomID: string(roomID), Sequence: sequence})
}

func (s *ConnSink) SendError(kind, detail string) error {
	return s.push(ServerFrame{Type: FrameError, Kind: kind, Detail: detail})
}

func (s *ConnSink) push(frame ServerFrame) error {
	select {
	case s.outbound <- frame:
		return nil
	default:
		return errors.Transportf("outbound queue full")
	}
}
