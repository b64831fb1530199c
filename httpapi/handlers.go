// Package httpapi exposes the request/response surface for
// non-streaming clients: room listings, paged message reads, publishes
// and read acknowledgements.
package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"gigchat/auth"
	"gigchat/domain"
	"gigchat/errors"
	"gigchat/jobs"
	"gigchat/services"
)

type loginBody struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type registerBody struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type createRoomBody struct {
	PeerID string `json:"peerId" binding:"required"`
	Name   string `json:"name" binding:"required"`
}

type publishBody struct {
	Content domain.Content `json:"content" binding:"required"`
}

type markReadBody struct {
	Seq uint64 `json:"seq"`
}

type proposalAcceptedBody struct {
	ClientID     string `json:"clientId" binding:"required"`
	FreelancerID string `json:"freelancerId" binding:"required"`
	JobTitle     string `json:"jobTitle" binding:"required"`
}

type messageView struct {
	ID       string         `json:"id"`
	RoomID   string         `json:"roomId"`
	SenderID string         `json:"senderId"`
	Content  domain.Content `json:"content"`
	Sequence uint64         `json:"sequence"`
	At       time.Time      `json:"timestamp"`
}

type roomView struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Participants []string  `json:"participants"`
	CreatedAt    time.Time `json:"createdAt"`
	LatestSeq    uint64    `json:"latestSeq"`
	LastMessage  string    `json:"lastMessage,omitempty"`
	UnreadCount  uint64    `json:"unreadCount"`
}

type Handlers struct {
	chat services.IChatService
	auth *auth.Service
	jobs *jobs.Service
	log  *slog.Logger
}

func NewHandlers(chat services.IChatService, authService *auth.Service, jobService *jobs.Service, log *slog.Logger) *Handlers {
	return &Handlers{chat: chat, auth: authService, jobs: jobService, log: log}
}

func (h *Handlers) Login(c *gin.Context) {
	var body loginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"kind": "validation", "detail": err.Error()})
		return
	}
	token, err := h.auth.Login(auth.LoginRequest(body))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *Handlers) Register(c *gin.Context) {
	var body registerBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"kind": "validation", "detail": err.Error()})
		return
	}
	record, token, err := h.auth.Register(auth.RegisterRequest{
		Email:       body.Email,
		DisplayName: body.Name,
		Password:    body.Password,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"token": token,
		"user": gin.H{
			"id":    record.ID,
			"name":  record.DisplayName,
			"email": record.Email,
		},
	})
}

func (h *Handlers) ListRooms(c *gin.Context) {
	summaries, err := h.chat.Rooms(callerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	views := make([]roomView, 0, len(summaries))
	for _, s := range summaries {
		view := roomView{
			ID:           string(s.Room.ID),
			Name:         s.Room.Name,
			Participants: s.Room.ParticipantIDs(),
			CreatedAt:    s.Room.CreatedAt,
			LatestSeq:    s.LatestSeq,
			UnreadCount:  s.Unread,
		}
		if s.LastMessage != nil {
			view.LastMessage = s.LastMessage.Content.Summary()
		}
		views = append(views, view)
	}
	c.JSON(http.StatusOK, gin.H{"rooms": views})
}

func (h *Handlers) CreateRoom(c *gin.Context) {
	var body createRoomBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"kind": "validation", "detail": err.Error()})
		return
	}
	room, err := h.chat.CreateRoom(body.Name, []string{callerID(c), body.PeerID})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"room": roomView{
		ID:           string(room.ID),
		Name:         room.Name,
		Participants: room.ParticipantIDs(),
		CreatedAt:    room.CreatedAt,
	}})
}

func (h *Handlers) GetMessages(c *gin.Context) {
	after, err := parseUintQuery(c, "after")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"kind": "validation", "detail": "after must be a non-negative integer"})
		return
	}
	limit, err := parseUintQuery(c, "limit")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"kind": "validation", "detail": "limit must be a non-negative integer"})
		return
	}

	messages, err := h.chat.GetMessages(callerID(c), domain.ReadRangeQuery{
		RoomID:   domain.RoomID(c.Param("id")),
		AfterSeq: after,
		Limit:    int(limit),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	views := make([]messageView, 0, len(messages))
	for _, msg := range messages {
		views = append(views, toMessageView(msg))
	}
	c.JSON(http.StatusOK, gin.H{"messages": views})
}

func (h *Handlers) PostMessage(c *gin.Context) {
	var body publishBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"kind": "validation", "detail": err.Error()})
		return
	}
	if body.Content.Kind == domain.ContentSystemNotice {
		c.JSON(http.StatusBadRequest, gin.H{"kind": "validation", "detail": "clients cannot publish system notices"})
		return
	}
	msg, err := h.chat.PostMessage(c.Request.Context(), domain.PostMessageCommand{
		RoomID:   domain.RoomID(c.Param("id")),
		SenderID: callerID(c),
		Content:  body.Content,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": toMessageView(msg)})
}

func (h *Handlers) MarkRead(c *gin.Context) {
	var body markReadBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"kind": "validation", "detail": err.Error()})
		return
	}
	if err := h.chat.MarkRead(callerID(c), domain.RoomID(c.Param("id")), body.Seq); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ProposalAccepted is the workflow hook: the job service calls it when
// a proposal is accepted and the conversation must open.
func (h *Handlers) ProposalAccepted(c *gin.Context) {
	var body proposalAcceptedBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"kind": "validation", "detail": err.Error()})
		return
	}
	room, err := h.jobs.OnProposalAccepted(c.Request.Context(), body.ClientID, body.FreelancerID, body.JobTitle)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"room": roomView{
		ID:           string(room.ID),
		Name:         room.Name,
		Participants: room.ParticipantIDs(),
		CreatedAt:    room.CreatedAt,
	}})
}

func toMessageView(msg domain.Message) messageView {
	return messageView{
		ID:       msg.ID.String(),
		RoomID:   string(msg.RoomID),
		SenderID: msg.SenderID,
		Content:  msg.Content,
		Sequence: msg.Sequence,
		At:       msg.At,
	}
}

func parseUintQuery(c *gin.Context, name string) (uint64, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseUint(raw, 10, 64)
}

// respondError maps the error taxonomy to HTTP statuses so callers can
// distinguish "bad request" from "not allowed" from "retry later".
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch errors.KindOf(err) {
	case "validation":
		status = http.StatusBadRequest
	case "not_found":
		status = http.StatusNotFound
	case "permission":
		status = http.StatusForbidden
	case "transport":
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"kind": errors.KindOf(err), "detail": err.Error()})
}
