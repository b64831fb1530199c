package ws

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"gigchat/auth"
	"gigchat/domain"
	"gigchat/projection"
	"gigchat/repositories"
	"gigchat/runtime"
	"gigchat/runtime/workers"
	"gigchat/services"
)

type streamFixture struct {
	server *httptest.Server
	chat   *services.ChatService
	alice  auth.UserRecord
	bob    auth.UserRecord
	tokens map[string]string
	room   domain.Room
}

func newStreamFixture(t *testing.T) *streamFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := badger.Open(badger.DefaultOptions("").
		WithInMemory(true).
		WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	rooms := repositories.NewRoomRegistry(log)
	store := repositories.NewMessageStore(db, rooms, log)
	unread := projection.NewUnreadTracker(store, rooms, log)
	presence := runtime.NewPresenceTracker(log)
	supervisor := workers.NewSupervisor(log, 10*time.Millisecond)
	orchestrator := runtime.NewOrchestrator(log, supervisor, rooms, store, unread, presence, nil, 16, 100, 8)
	orchestrator.Start(t.Context())
	t.Cleanup(orchestrator.Stop)

	chat := services.NewChatService(orchestrator)
	authService := auth.NewService([]byte("stream-test-key"), time.Hour, log)
	alice, err := authService.RegisterUser("alice@example.com", "Alice", "password-alice")
	require.NoError(t, err)
	bob, err := authService.RegisterUser("bob@example.com", "Bob", "password-bobby")
	require.NoError(t, err)

	room, err := chat.CreateRoom("project", []string{alice.ID, bob.ID})
	require.NoError(t, err)

	engine := gin.New()
	engine.GET("/ws", NewHandler(chat, authService, 8, log).Connect)
	server := httptest.NewServer(engine)
	t.Cleanup(server.Close)

	aliceToken, err := authService.Login(auth.LoginRequest{Email: alice.Email, Password: "password-alice"})
	require.NoError(t, err)
	bobToken, err := authService.Login(auth.LoginRequest{Email: bob.Email, Password: "password-bobby"})
	require.NoError(t, err)
	tokens := map[string]string{alice.ID: aliceToken, bob.ID: bobToken}

	return &streamFixture{server: server, chat: chat, alice: alice, bob: bob, tokens: tokens, room: room}
}

func (f *streamFixture) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readFrame reads server frames until one of the wanted type arrives.
func readFrame(t *testing.T, conn *websocket.Conn, wantType string) ServerFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var frame ServerFrame
		require.NoError(t, conn.ReadJSON(&frame))
		if frame.Type == wantType {
			return frame
		}
	}
}

func Test_Connect_Requires_A_Valid_Token(t *testing.T) {
	req := require.New(t)
	f := newStreamFixture(t)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	req.Error(err)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func Test_Subscribe_Backfills_Then_Streams_Live(t *testing.T) {
	req := require.New(t)
	f := newStreamFixture(t)

	// History exists before bob connects
	_, err := f.chat.PostMessage(t.Context(), domain.PostMessageCommand{
		RoomID: f.room.ID, SenderID: f.alice.ID, Content: domain.TextContent("hello"),
	})
	req.NoError(err)

	conn := f.dial(t, f.tokens[f.bob.ID])
	req.NoError(conn.WriteJSON(ClientFrame{Type: FrameSubscribe, RoomID: string(f.room.ID)}))

	backfill := readFrame(t, conn, FrameBackfill)
	req.Len(backfill.Messages, 1)
	req.Equal(uint64(1), backfill.Messages[0].Sequence)
	req.Equal("hello", backfill.Messages[0].Content.Text)

	// A publish after the switch-over arrives live on the open stream
	_, err = f.chat.PostMessage(t.Context(), domain.PostMessageCommand{
		RoomID: f.room.ID, SenderID: f.alice.ID, Content: domain.TextContent("still there?"),
	})
	req.NoError(err)

	live := readFrame(t, conn, FrameLive)
	req.NotNil(live.Message)
	req.Equal(uint64(2), live.Message.Sequence)
}

func Test_Publish_Is_Acked_With_The_Assigned_Sequence(t *testing.T) {
	req := require.New(t)
	f := newStreamFixture(t)
	conn := f.dial(t, f.tokens[f.alice.ID])

	content := domain.TextContent("first")
	req.NoError(conn.WriteJSON(ClientFrame{Type: FramePublish, RoomID: string(f.room.ID), Content: &content}))

	ack := readFrame(t, conn, FrameAck)
	req.Equal(uint64(1), ack.Sequence)
	req.Equal(string(f.room.ID), ack.RoomID)
}

func Test_MarkRead_Over_The_Stream(t *testing.T) {
	req := require.New(t)
	f := newStreamFixture(t)

	_, err := f.chat.PostMessage(t.Context(), domain.PostMessageCommand{
		RoomID: f.room.ID, SenderID: f.alice.ID, Content: domain.TextContent("hello"),
	})
	req.NoError(err)
	req.Eventually(func() bool {
		return f.chat.GetUnread(f.bob.ID, f.room.ID) == 1
	}, 2*time.Second, 5*time.Millisecond)

	conn := f.dial(t, f.tokens[f.bob.ID])
	req.NoError(conn.WriteJSON(ClientFrame{Type: FrameMarkRead, RoomID: string(f.room.ID), Seq: 1}))

	req.Eventually(func() bool {
		return f.chat.GetUnread(f.bob.ID, f.room.ID) == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func Test_Stream_Error_Frames(t *testing.T) {
	req := require.New(t)
	f := newStreamFixture(t)
	conn := f.dial(t, f.tokens[f.alice.ID])

	// Subscribing to an unknown room
	req.NoError(conn.WriteJSON(ClientFrame{Type: FrameSubscribe, RoomID: "nowhere"}))
	frame := readFrame(t, conn, FrameError)
	req.Equal("not_found", frame.Kind)

	// Publishing a system notice
	notice := domain.SystemNotice("fake")
	req.NoError(conn.WriteJSON(ClientFrame{Type: FramePublish, RoomID: string(f.room.ID), Content: &notice}))
	frame = readFrame(t, conn, FrameError)
	req.Equal("validation", frame.Kind)

	// Garbage bytes and unknown frame types
	req.NoError(conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	frame = readFrame(t, conn, FrameError)
	req.Equal("validation", frame.Kind)

	req.NoError(conn.WriteJSON(ClientFrame{Type: "dance"}))
	frame = readFrame(t, conn, FrameError)
	req.Equal("validation", frame.Kind)
}

func Test_Disconnect_Detaches_The_Connection(t *testing.T) {
	req := require.New(t)
	f := newStreamFixture(t)

	conn := f.dial(t, f.tokens[f.bob.ID])
	req.Eventually(func() bool { return f.chat.IsOnline(f.bob.ID) }, 2*time.Second, 5*time.Millisecond)

	req.NoError(conn.Close())
	req.Eventually(func() bool { return !f.chat.IsOnline(f.bob.ID) }, 2*time.Second, 5*time.Millisecond)
}
