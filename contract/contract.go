//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"gigchat/domain"
	"gigchat/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself.
// Can be silly, focused. Supervision lives one level up.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker,
// avoiding manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// MessageLog is the append-only per-room log. Append is the single
// point of ordering truth: it serializes writers per room and assigns
// the gapless sequence.
type MessageLog interface {
	Append(ctx context.Context, cmd domain.PostMessageCommand) (domain.Message, error)
	ReadRange(q domain.ReadRangeQuery) ([]domain.Message, error)
	LatestSeq(roomID domain.RoomID) uint64
}

// Rooms exposes room identity and membership lookups to the rest of
// the core. Mutations go through the concrete registry only.
type Rooms interface {
	GetRoom(roomID domain.RoomID) (domain.Room, error)
	IsMember(roomID domain.RoomID, userID string) bool
	Exists(roomID domain.RoomID) bool
}

// Subscription is the live binding of one connection to one room as the
// dispatcher sees it. Offer is non-blocking; false means the buffer is
// full and the subscription must be dropped.
type Subscription interface {
	ConnectionID() string
	Room() domain.RoomID
	Offer(msg domain.Message) bool
}

// Presence is the dispatcher-facing view of the presence tracker.
type Presence interface {
	SubscriptionsForRoom(roomID domain.RoomID) []Subscription
	Drop(connectionID string, roomID domain.RoomID)
}

// ClientSink is one connection's outbound half. Implementations are
// bounded: a send on a full queue fails with a transport error instead
// of blocking the caller.
type ClientSink interface {
	SendBackfill(roomID domain.RoomID, messages []domain.Message) error
	SendLive(roomID domain.RoomID, msg domain.Message) error
	SendAck(roomID domain.RoomID, sequence uint64) error
	SendError(kind, detail string) error
}

type UnreadCounts interface {
	EventSink
	MarkRead(userID string, roomID domain.RoomID, seq uint64) error
	GetUnread(userID string, roomID domain.RoomID) uint64
}
