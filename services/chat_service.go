package services

import (
	"context"

	"gigchat/contract"
	"gigchat/domain"
	"gigchat/runtime"
)

type IChatService interface {
	PostMessage(ctx context.Context, cmd domain.PostMessageCommand) (domain.Message, error)
	GetMessages(userID string, q domain.ReadRangeQuery) ([]domain.Message, error)
	MarkRead(userID string, roomID domain.RoomID, seq uint64) error
	GetUnread(userID string, roomID domain.RoomID) uint64
	CreateRoom(name string, participants []string) (domain.Room, error)
	AddParticipant(roomID domain.RoomID, userID string) error
	RemoveParticipant(roomID domain.RoomID, userID string) error
	Rooms(userID string) ([]runtime.RoomSummary, error)
	Attach(userID string, sink contract.ClientSink) string
	Detach(connectionID string)
	Subscribe(connectionID string, roomID domain.RoomID, lastSeenSeq uint64) error
	Unsubscribe(connectionID string, roomID domain.RoomID)
	IsOnline(userID string) bool
}

// ChatService is the facade both transports talk to. All semantics live
// in the orchestrator and the stores behind it.
type ChatService struct {
	orchestrator *runtime.Orchestrator
}

var _ IChatService = (*ChatService)(nil)

func NewChatService(o *runtime.Orchestrator) *ChatService {
	return &ChatService{orchestrator: o}
}

func (s *ChatService) PostMessage(ctx context.Context, cmd domain.PostMessageCommand) (domain.Message, error) {
	return s.orchestrator.PostMessage(ctx, cmd)
}

func (s *ChatService) GetMessages(userID string, q domain.ReadRangeQuery) ([]domain.Message, error) {
	return s.orchestrator.GetMessages(userID, q)
}

func (s *ChatService) MarkRead(userID string, roomID domain.RoomID, seq uint64) error {
	return s.orchestrator.MarkRead(userID, roomID, seq)
}

func (s *ChatService) GetUnread(userID string, roomID domain.RoomID) uint64 {
	return s.orchestrator.GetUnread(userID, roomID)
}

func (s *ChatService) CreateRoom(name string, participants []string) (domain.Room, error) {
	return s.orchestrator.CreateRoom(name, participants)
}

func (s *ChatService) AddParticipant(roomID domain.RoomID, userID string) error {
	return s.orchestrator.AddParticipant(roomID, userID)
}

func (s *ChatService) RemoveParticipant(roomID domain.RoomID, userID string) error {
	return s.orchestrator.RemoveParticipant(roomID, userID)
}

func (s *ChatService) Rooms(userID string) ([]runtime.RoomSummary, error) {
	return s.orchestrator.Rooms(userID)
}

func (s *ChatService) Attach(userID string, sink contract.ClientSink) string {
	return s.orchestrator.Attach(userID, sink)
}

func (s *ChatService) Detach(connectionID string) {
	s.orchestrator.Detach(connectionID)
}

func (s *ChatService) Subscribe(connectionID string, roomID domain.RoomID, lastSeenSeq uint64) error {
	return s.orchestrator.Subscribe(connectionID, roomID, lastSeenSeq)
}

func (s *ChatService) Unsubscribe(connectionID string, roomID domain.RoomID) {
	s.orchestrator.Unsubscribe(connectionID, roomID)
}

func (s *ChatService) IsOnline(userID string) bool {
	return s.orchestrator.IsOnline(userID)
}
