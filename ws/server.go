package ws

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"gigchat/auth"
	"gigchat/domain"
	"gigchat/errors"
	"gigchat/services"
)

const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades authenticated clients and bridges their frames to
// the chat service. The upgrade itself is the attach: the resolved user
// is the attached identity, a client-supplied user id would bypass
// credential resolution.
type Handler struct {
	chat       services.IChatService
	auth       *auth.Service
	bufferSize int
	log        *slog.Logger
}

func NewHandler(chat services.IChatService, authService *auth.Service, bufferSize int, log *slog.Logger) *Handler {
	return &Handler{chat: chat, auth: authService, bufferSize: bufferSize, log: log}
}

// Connect is the long-lived stream endpoint. It blocks until the client
// disconnects; cleanup detaches the connection, which cancels all its
// delivery work.
func (h *Handler) Connect(c *gin.Context) {
	credential := c.Query("token")
	userID, err := h.auth.Resolve(credential)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"kind": errors.KindOf(err), "detail": "authentication required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("Websocket upgrade failed", "user_id", userID, "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	sink := NewConnSink(h.bufferSize)
	connID := h.chat.Attach(userID, sink)
	defer h.chat.Detach(connID)

	done := make(chan struct{})
	go h.writeLoop(conn, sink, done)
	defer close(done)

	h.log.Info("Stream connected", "user_id", userID, "connection_id", connID)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			h.log.Debug(fmt.Sprintf("Client %s disconnected: %v", connID, err))
			return
		}
		var frame ClientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			_ = sink.SendError("validation", "malformed frame")
			continue
		}
		h.handle(c.Request.Context(), connID, userID, frame, sink)
	}
}

// writeLoop is the sole writer on the socket.
func (h *Handler) writeLoop(conn *websocket.Conn, sink *ConnSink, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case frame := <-sink.Frames():
			bytes, err := json.Marshal(frame)
			if err != nil {
				h.log.Error("Frame marshalling failed", "error", err)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, bytes); err != nil {
				h.log.Debug("Websocket push failed", "error", err)
				return
			}
		}
	}
}

func (h *Handler) handle(ctx context.Context, connID, userID string, frame ClientFrame, sink *ConnSink) {
	roomID := domain.RoomID(frame.RoomID)
	switch frame.Type {
	case FrameSubscribe:
		if err := h.chat.Subscribe(connID, roomID, frame.LastSeenSeq); err != nil {
			_ = sink.SendError(errors.KindOf(err), err.Error())
		}
	case FrameUnsubscribe:
		h.chat.Unsubscribe(connID, roomID)
	case FramePublish:
		if frame.Content == nil {
			_ = sink.SendError("validation", "publish frame without content")
			return
		}
		if frame.Content.Kind == domain.ContentSystemNotice {
			// System notices are produced by the core only.
			_ = sink.SendError("validation", "clients cannot publish system notices")
			return
		}
		msg, err := h.chat.PostMessage(ctx, domain.PostMessageCommand{
			RoomID:   roomID,
			SenderID: userID,
			Content:  *frame.Content,
		})
		if err != nil {
			_ = sink.SendError(errors.KindOf(err), err.Error())
			return
		}
		_ = sink.SendAck(roomID, msg.Sequence)
	case FrameMarkRead:
		if err := h.chat.MarkRead(userID, roomID, frame.Seq); err != nil {
			_ = sink.SendError(errors.KindOf(err), err.Error())
		}
	default:
		_ = sink.SendError("validation", fmt.Sprintf("unknown frame type %q", frame.Type))
	}
}
