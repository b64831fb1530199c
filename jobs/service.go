// Package jobs hosts the workflow collaborator. The job/proposal
// lifecycle itself lives elsewhere; this service only reacts to the one
// event that concerns the messaging core: an accepted proposal opens a
// conversation between the two parties.
package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"gigchat/domain"
	"gigchat/services"
)

type Service struct {
	chat services.IChatService
	log  *slog.Logger
}

func NewService(chat services.IChatService, log *slog.Logger) *Service {
	return &Service{chat: chat, log: log}
}

// OnProposalAccepted creates the room for the client/freelancer pair
// and posts an opening system notice so the conversation starts with
// context.
func (s *Service) OnProposalAccepted(ctx context.Context, clientID, freelancerID, jobTitle string) (domain.Room, error) {
	room, err := s.chat.CreateRoom(jobTitle, []string{clientID, freelancerID})
	if err != nil {
		return domain.Room{}, err
	}

	notice := fmt.Sprintf("Proposal accepted for %q - conversation opened", jobTitle)
	if _, err := s.chat.PostMessage(ctx, domain.PostMessageCommand{
		RoomID:   room.ID,
		SenderID: clientID,
		Content:  domain.SystemNotice(notice),
	}); err != nil {
		// The room exists and is usable; the missing notice is not
		// worth failing the workflow event for.
		s.log.Warn("Opening notice could not be posted",
			"room_id", room.ID, "error", err)
	}

	s.log.Info("Room created from accepted proposal",
		"room_id", room.ID,
		"client_id", clientID,
		"freelancer_id", freelancerID)
	return room, nil
}
