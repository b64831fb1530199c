package workers

import (
	"context"
	"fmt"
	"log/slog"

	"gigchat/contract"
	"gigchat/domain/event"
)

// Ensure *DeliveryDispatcher implements contract.Worker at compile time.
var _ contract.Worker = (*DeliveryDispatcher)(nil)

// DeliveryDispatcher drains the append event channel and fans each
// event out to the projection sinks and to every subscription of the
// event's room.
//
// Delivery to a connection is ordered only relative to that connection.
// A subscription whose buffer is full (slow consumer) is dropped rather
// than blocking other subscribers or growing memory unboundedly; the
// client resubscribes, which triggers a fresh backfill.
type DeliveryDispatcher struct {
	log      *slog.Logger
	events   chan event.DomainEvent
	sinks    []contract.EventSink
	presence contract.Presence
}

func NewDeliveryDispatcher(
	log *slog.Logger,
	events chan event.DomainEvent,
	presence contract.Presence,
	sinks ...contract.EventSink) *DeliveryDispatcher {
	return &DeliveryDispatcher{log: log, events: events, sinks: sinks, presence: presence}
}

func (w *DeliveryDispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping dispatcher")
			return nil
		case evt, ok := <-w.events:
			if !ok {
				return nil
			}
			w.dispatch(ctx, evt)
		}
	}
}

func (w *DeliveryDispatcher) dispatch(ctx context.Context, evt event.DomainEvent) {
	for _, sink := range w.sinks {
		if err := sink.Consume(ctx, evt); err != nil {
			w.log.Warn("Sink rejected event",
				"room_id", evt.Room(),
				"sink", fmt.Sprintf("%T", sink),
				"error", err)
		}
	}

	appended, ok := evt.(event.MessageAppended)
	if !ok {
		return
	}
	for _, sub := range w.presence.SubscriptionsForRoom(appended.Room()) {
		if sub.Offer(appended.Message) {
			continue
		}
		w.log.Warn("Slow consumer, dropping subscription",
			"connection_id", sub.ConnectionID(),
			"room_id", sub.Room())
		w.presence.Drop(sub.ConnectionID(), sub.Room())
	}
}
