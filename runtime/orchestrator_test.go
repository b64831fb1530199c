package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"gigchat/domain"
	"gigchat/domain/event"
	"gigchat/errors"
	"gigchat/moderation"
	"gigchat/projection"
	"gigchat/repositories"
	"gigchat/runtime/workers"
)

const eventually = 2 * time.Second
const tick = 5 * time.Millisecond

type orchestratorFixture struct {
	orchestrator *Orchestrator
	rooms        *repositories.RoomRegistry
	room         domain.Room
}

func newOrchestratorFixture(t *testing.T, moderator *moderation.Moderator) *orchestratorFixture {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").
		WithInMemory(true).
		WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	rooms := repositories.NewRoomRegistry(log)
	store := repositories.NewMessageStore(db, rooms, log)
	unread := projection.NewUnreadTracker(store, rooms, log)
	presence := NewPresenceTracker(log)
	supervisor := workers.NewSupervisor(log, 10*time.Millisecond)

	orchestrator := NewOrchestrator(log, supervisor, rooms, store, unread, presence, moderator,
		16, 2, 8)

	ctx, cancel := context.WithCancel(context.Background())
	orchestrator.Start(ctx)
	t.Cleanup(func() {
		orchestrator.Stop()
		cancel()
	})

	room, err := orchestrator.CreateRoom("project", []string{"alice", "bob"})
	require.NoError(t, err)

	return &orchestratorFixture{orchestrator: orchestrator, rooms: rooms, room: room}
}

func (f *orchestratorFixture) post(t *testing.T, sender, text string) domain.Message {
	t.Helper()
	msg, err := f.orchestrator.PostMessage(context.Background(), domain.PostMessageCommand{
		RoomID:   f.room.ID,
		SenderID: sender,
		Content:  domain.TextContent(text),
	})
	require.NoError(t, err)
	return msg
}

func Test_Append_Then_Subscribe_Then_Live(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t, nil)

	// Given alice posts before bob is even connected
	msg := f.post(t, "alice", "hello")
	req.Equal(uint64(1), msg.Sequence)

	// Then bob's unread counter converges to 1, alice's stays 0
	req.Eventually(func() bool {
		return f.orchestrator.GetUnread("bob", f.room.ID) == 1
	}, eventually, tick)
	req.Equal(uint64(0), f.orchestrator.GetUnread("alice", f.room.ID))

	// When bob attaches and subscribes from the beginning
	sink := &recordingSink{}
	connID := f.orchestrator.Attach("bob", sink)
	req.True(f.orchestrator.IsOnline("bob"))
	req.NoError(f.orchestrator.Subscribe(connID, f.room.ID, 0))

	// Then the backfill delivers the history
	req.Eventually(func() bool {
		seqs := sink.sequences()
		return len(seqs) == 1 && seqs[0] == 1
	}, eventually, tick)

	// And bob acknowledges it
	req.NoError(f.orchestrator.MarkRead("bob", f.room.ID, 1))
	req.Equal(uint64(0), f.orchestrator.GetUnread("bob", f.room.ID))

	// When alice posts again, bob receives it live, no resubscribe
	f.post(t, "alice", "still there?")
	req.Eventually(func() bool {
		seqs := sink.sequences()
		return len(seqs) == 2 && seqs[1] == 2
	}, eventually, tick)

	// Every sequence was delivered exactly once, in order
	req.Equal([]uint64{1, 2}, sink.sequences())

	f.orchestrator.Detach(connID)
	req.False(f.orchestrator.IsOnline("bob"))
}

func Test_Subscribe_Resumes_From_Last_Seen_Sequence(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t, nil)

	for i := 1; i <= 5; i++ {
		f.post(t, "alice", fmt.Sprintf("message %d", i))
	}

	// A client that already saw 3 only backfills 4 and 5
	sink := &recordingSink{}
	connID := f.orchestrator.Attach("bob", sink)
	req.NoError(f.orchestrator.Subscribe(connID, f.room.ID, 3))

	req.Eventually(func() bool {
		seqs := sink.sequences()
		return len(seqs) == 2
	}, eventually, tick)
	req.Equal([]uint64{4, 5}, sink.sequences())
}

func Test_Subscribe_Rejects_Outsiders_And_Unknown_Rooms(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t, nil)

	connID := f.orchestrator.Attach("mallory", &recordingSink{})
	req.ErrorIs(f.orchestrator.Subscribe(connID, f.room.ID, 0), errors.ErrPermission)
	req.ErrorIs(f.orchestrator.Subscribe(connID, "nowhere", 0), errors.ErrNotFound)
	req.ErrorIs(f.orchestrator.Subscribe("nowhere", f.room.ID, 0), errors.ErrNotFound)
}

func Test_GetMessages_Enforces_Existence_And_Membership(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t, nil)
	f.post(t, "alice", "hello")

	messages, err := f.orchestrator.GetMessages("bob", domain.ReadRangeQuery{RoomID: f.room.ID})
	req.NoError(err)
	req.Len(messages, 1)

	_, err = f.orchestrator.GetMessages("mallory", domain.ReadRangeQuery{RoomID: f.room.ID})
	req.ErrorIs(err, errors.ErrPermission)

	_, err = f.orchestrator.GetMessages("alice", domain.ReadRangeQuery{RoomID: "nowhere"})
	req.ErrorIs(err, errors.ErrNotFound)
}

func Test_MarkRead_Enforces_Existence_And_Membership(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t, nil)
	f.post(t, "alice", "hello")

	req.ErrorIs(f.orchestrator.MarkRead("mallory", f.room.ID, 1), errors.ErrPermission)
	req.ErrorIs(f.orchestrator.MarkRead("alice", "nowhere", 1), errors.ErrNotFound)
}

func Test_PostMessage_Censors_Text(t *testing.T) {
	req := require.New(t)
	moderator, err := moderation.NewDefaultModerator('*')
	req.NoError(err)
	f := newOrchestratorFixture(t, moderator)

	msg := f.post(t, "alice", "this is not a scam, promise")
	req.NotContains(msg.Content.Text, "scam")
	req.Contains(msg.Content.Text, "****")
}

func Test_Rooms_Lists_Summaries_For_The_Caller(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t, nil)
	f.post(t, "alice", "first")
	f.post(t, "alice", "second")

	req.Eventually(func() bool {
		return f.orchestrator.GetUnread("bob", f.room.ID) == 2
	}, eventually, tick)

	summaries, err := f.orchestrator.Rooms("bob")
	req.NoError(err)
	req.Len(summaries, 1)
	req.Equal(f.room.ID, summaries[0].Room.ID)
	req.Equal(uint64(2), summaries[0].LatestSeq)
	req.Equal(uint64(2), summaries[0].Unread)
	req.NotNil(summaries[0].LastMessage)
	req.Equal("second", summaries[0].LastMessage.Content.Text)

	summaries, err = f.orchestrator.Rooms("mallory")
	req.NoError(err)
	req.Empty(summaries)
}

func Test_Failed_Delivery_Drops_The_Subscription(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t, nil)
	f.post(t, "alice", "hello")

	// A sink that refuses every send can never complete its backfill
	sink := &recordingSink{failSends: true}
	connID := f.orchestrator.Attach("bob", sink)
	req.NoError(f.orchestrator.Subscribe(connID, f.room.ID, 0))

	// The subscription is abandoned and the client told to resubscribe
	req.Eventually(func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.errKinds) > 0
	}, eventually, tick)
	req.Eventually(func() bool {
		return len(f.orchestrator.presence.SubscriptionsForRoom(f.room.ID)) == 0
	}, eventually, tick)
}

func Test_Room_Lifecycle_Is_Announced_To_The_Pipeline(t *testing.T) {
	req := require.New(t)
	log := slog.Default()
	rooms := repositories.NewRoomRegistry(log)
	// Not started: the event channel stays readable by the test
	o := NewOrchestrator(log, nil, rooms, nil, nil, nil, nil, 8, 100, 8)

	room, err := o.CreateRoom("project", []string{"alice", "bob"})
	req.NoError(err)
	created, ok := (<-o.events).(event.RoomCreated)
	req.True(ok)
	req.Equal(room.ID, created.RoomID)
	req.Equal("project", created.Name)
	req.ElementsMatch([]string{"alice", "bob"}, created.Participants)

	req.NoError(o.AddParticipant(room.ID, "clara"))
	added, ok := (<-o.events).(event.ParticipantAdded)
	req.True(ok)
	req.Equal("clara", added.UserID)

	req.NoError(o.RemoveParticipant(room.ID, "clara"))
	removed, ok := (<-o.events).(event.ParticipantRemoved)
	req.True(ok)
	req.Equal("clara", removed.UserID)

	// A failed mutation announces nothing
	req.ErrorIs(o.AddParticipant("nowhere", "clara"), errors.ErrNotFound)
	req.Empty(o.events)
}

func Test_Unsubscribe_Stops_Live_Delivery(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t, nil)

	sink := &recordingSink{}
	connID := f.orchestrator.Attach("bob", sink)
	req.NoError(f.orchestrator.Subscribe(connID, f.room.ID, 0))

	f.orchestrator.Unsubscribe(connID, f.room.ID)
	req.Empty(f.orchestrator.presence.SubscriptionsForRoom(f.room.ID))
}
