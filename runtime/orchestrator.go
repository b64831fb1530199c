// Package runtime hosts the delivery machinery: presence state,
// subscription workers and the orchestrator wiring them to the stores.
// It orchestrates the system without containing domain rules.
package runtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"gigchat/contract"
	"gigchat/domain"
	"gigchat/domain/event"
	"gigchat/errors"
	"gigchat/moderation"
	"gigchat/repositories"
	"gigchat/runtime/workers"
)

// RoomSummary is the room-list view: the room plus its last message
// summary and the caller's unread count.
type RoomSummary struct {
	Room        domain.Room
	LatestSeq   uint64
	LastMessage *domain.Message
	Unread      uint64
}

type Orchestrator struct {
	mu         sync.Mutex
	log        *slog.Logger
	supervisor contract.ISupervisor
	rooms      repositories.IRoomRegistry
	store      contract.MessageLog
	unread     contract.UnreadCounts
	presence   *PresenceTracker
	moderator  *moderation.Moderator
	events     chan event.DomainEvent

	backfillPage       int
	subscriptionBuffer int

	runCtx context.Context
}

func NewOrchestrator(
	log *slog.Logger,
	supervisor contract.ISupervisor,
	rooms repositories.IRoomRegistry,
	store contract.MessageLog,
	unread contract.UnreadCounts,
	presence *PresenceTracker,
	moderator *moderation.Moderator,
	bufferSize, backfillPage, subscriptionBuffer int) *Orchestrator {
	return &Orchestrator{
		log:                log,
		supervisor:         supervisor,
		rooms:              rooms,
		store:              store,
		unread:             unread,
		presence:           presence,
		moderator:          moderator,
		events:             make(chan event.DomainEvent, bufferSize),
		backfillPage:       backfillPage,
		subscriptionBuffer: subscriptionBuffer,
	}
}

// Start registers the dispatcher under the supervisor and launches the
// supervision loop. The given context bounds every worker, including
// subscription workers started later.
func (o *Orchestrator) Start(ctx context.Context) {
	dispatcher := workers.NewDeliveryDispatcher(o.log, o.events, o.presence, o.unread)

	o.mu.Lock()
	o.runCtx = ctx
	o.supervisor.Add(dispatcher)
	o.mu.Unlock()

	o.log.Info("Starting orchestrator and all supervised workers")
	go o.supervisor.Run(ctx)
}

// Stop initiates a graceful shutdown: every supervised worker observes
// the cancellation and drains.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}

// PostMessage censors text content, appends it to the room log and
// publishes the append event to the delivery pipeline. The returned
// message carries the assigned sequence and timestamp.
func (o *Orchestrator) PostMessage(ctx context.Context, cmd domain.PostMessageCommand) (domain.Message, error) {
	if cmd.Content.Kind == domain.ContentText && o.moderator != nil {
		cmd.Content.Text = o.moderator.Censor(cmd.Content.Text)
	}
	msg, err := o.store.Append(ctx, cmd)
	if err != nil {
		return domain.Message{}, err
	}

	select {
	case o.events <- event.MessageAppended{Message: msg}:
	case <-ctx.Done():
		// The message is sequenced and durable; only the caller went
		// away. Subscribers resync on their next backfill.
		o.log.Warn("Append event publication canceled", "room_id", cmd.RoomID)
	}
	return msg, nil
}

// GetMessages serves the paged read surface: 404 for an unknown room,
// 403 for a non-member, then an ascending range read.
func (o *Orchestrator) GetMessages(userID string, q domain.ReadRangeQuery) ([]domain.Message, error) {
	if !o.rooms.Exists(q.RoomID) {
		return nil, errors.NotFoundf("room %s", q.RoomID)
	}
	if !o.rooms.IsMember(q.RoomID, userID) {
		return nil, errors.Permissionf("user %s is not a member of room %s", userID, q.RoomID)
	}
	return o.store.ReadRange(q)
}

func (o *Orchestrator) MarkRead(userID string, roomID domain.RoomID, seq uint64) error {
	if !o.rooms.Exists(roomID) {
		return errors.NotFoundf("room %s", roomID)
	}
	if !o.rooms.IsMember(roomID, userID) {
		return errors.Permissionf("user %s is not a member of room %s", userID, roomID)
	}
	return o.unread.MarkRead(userID, roomID, seq)
}

func (o *Orchestrator) GetUnread(userID string, roomID domain.RoomID) uint64 {
	return o.unread.GetUnread(userID, roomID)
}

// Attach registers a live connection and returns its id.
func (o *Orchestrator) Attach(userID string, sink contract.ClientSink) string {
	return o.presence.Attach(userID, sink)
}

// Detach removes the connection and cancels all its delivery work.
// In-flight backfills are abandoned without side effects.
func (o *Orchestrator) Detach(connID string) {
	o.presence.Detach(connID)
}

func (o *Orchestrator) IsOnline(userID string) bool {
	return o.presence.IsOnline(userID)
}

// Subscribe validates membership, registers the subscription and starts
// its backfill/live worker. The subscription's live buffer is
// registered before the worker reads the log, which is what guarantees
// the no-gap/no-duplicate switch-over.
func (o *Orchestrator) Subscribe(connID string, roomID domain.RoomID, lastSeenSeq uint64) error {
	userID, err := o.presence.UserOf(connID)
	if err != nil {
		return err
	}
	if !o.rooms.Exists(roomID) {
		return errors.NotFoundf("room %s", roomID)
	}
	if !o.rooms.IsMember(roomID, userID) {
		return errors.Permissionf("user %s is not a member of room %s", userID, roomID)
	}
	sink, err := o.presence.SinkOf(connID)
	if err != nil {
		return err
	}

	o.mu.Lock()
	runCtx := o.runCtx
	o.mu.Unlock()
	if runCtx == nil {
		return errors.Transportf("orchestrator is not started")
	}

	sub := NewSubscription(connID, roomID, lastSeenSeq, sink, o.store,
		o.backfillPage, o.subscriptionBuffer,
		func() { o.presence.Drop(connID, roomID) },
		o.log)

	subCtx, cancel := context.WithCancel(runCtx)
	sub.bind(cancel)
	if err := o.presence.Register(sub); err != nil {
		cancel()
		return err
	}
	o.supervisor.Start(subCtx, sub)
	return nil
}

func (o *Orchestrator) Unsubscribe(connID string, roomID domain.RoomID) {
	o.presence.Drop(connID, roomID)
}

// CreateRoom allocates a room between explicit participants, e.g. a
// direct request between two users or a workflow trigger.
func (o *Orchestrator) CreateRoom(name string, participants []string) (domain.Room, error) {
	room, err := o.rooms.CreateRoom(name, participants)
	if err != nil {
		return domain.Room{}, err
	}
	o.announce(event.RoomCreated{
		RoomID:       room.ID,
		Name:         room.Name,
		Participants: room.ParticipantIDs(),
		At:           room.CreatedAt,
	})
	return room, nil
}

func (o *Orchestrator) AddParticipant(roomID domain.RoomID, userID string) error {
	if err := o.rooms.AddParticipant(roomID, userID); err != nil {
		return err
	}
	o.announce(event.ParticipantAdded{RoomID: roomID, UserID: userID, At: time.Now().UTC()})
	return nil
}

func (o *Orchestrator) RemoveParticipant(roomID domain.RoomID, userID string) error {
	if err := o.rooms.RemoveParticipant(roomID, userID); err != nil {
		return err
	}
	o.announce(event.ParticipantRemoved{RoomID: roomID, UserID: userID, At: time.Now().UTC()})
	return nil
}

// announce publishes a room lifecycle event without blocking. These
// events are advisory for the sinks; a full buffer only costs the
// notification, never the mutation that produced it.
func (o *Orchestrator) announce(evt event.DomainEvent) {
	select {
	case o.events <- evt:
	default:
		o.log.Warn("Event buffer full, lifecycle event dropped", "room_id", evt.Room())
	}
}

// Rooms lists the caller's rooms with their last message summary and
// unread count.
func (o *Orchestrator) Rooms(userID string) ([]RoomSummary, error) {
	var res []RoomSummary
	for _, room := range o.rooms.RoomsFor(userID) {
		summary := RoomSummary{
			Room:   room,
			Unread: o.unread.GetUnread(userID, room.ID),
		}
		latest := o.store.LatestSeq(room.ID)
		summary.LatestSeq = latest
		if latest > 0 {
			messages, err := o.store.ReadRange(domain.ReadRangeQuery{
				RoomID:   room.ID,
				AfterSeq: latest - 1,
				Limit:    1,
			})
			if err != nil {
				return nil, err
			}
			if len(messages) == 1 {
				summary.LastMessage = &messages[0]
			}
		}
		res = append(res, summary)
	}
	return res, nil
}
