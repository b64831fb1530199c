package runtime

import (
	"context"
	"log/slog"
	"sync"

	"gigchat/contract"
	"gigchat/domain"
	"gigchat/errors"
)

// Subscription binds one connection to one room. Its Run method is the
// per-connection worker of the delivery pipeline: it replays the gap
// since lastSeenSeq from the log (backfill), then streams live appends.
//
// The live buffer is registered with the presence tracker before Run
// starts reading the log, so every message appended after registration
// is either in the log pages Run reads or queued in the buffer. The
// watermark filters the overlap: a message is forwarded only when its
// sequence advances past everything already delivered, which makes
// gaps impossible and duplicates silent within an unbroken
// subscription.
type Subscription struct {
	connID    string
	roomID    domain.RoomID
	watermark uint64
	live      chan domain.Message
	sink      contract.ClientSink
	store     contract.MessageLog
	page      int
	log       *slog.Logger

	// drop detaches this subscription from the presence tracker; it is
	// invoked when the sink rejects a send.
	drop func()

	stopOnce sync.Once
	cancel   context.CancelFunc
}

var _ contract.Subscription = (*Subscription)(nil)
var _ contract.Worker = (*Subscription)(nil)

func NewSubscription(
	connID string, roomID domain.RoomID, lastSeenSeq uint64,
	sink contract.ClientSink, store contract.MessageLog,
	page, bufferSize int, drop func(), log *slog.Logger) *Subscription {
	return &Subscription{
		connID:    connID,
		roomID:    roomID,
		watermark: lastSeenSeq,
		live:      make(chan domain.Message, bufferSize),
		sink:      sink,
		store:     store,
		page:      page,
		drop:      drop,
		log:       log,
	}
}

func (s *Subscription) ConnectionID() string { return s.connID }
func (s *Subscription) Room() domain.RoomID  { return s.roomID }

// Offer enqueues a live message without blocking. False means the
// buffer is full: the dispatcher then drops the whole subscription
// rather than stalling other subscribers.
func (s *Subscription) Offer(msg domain.Message) bool {
	select {
	case s.live <- msg:
		return true
	default:
		return false
	}
}

func (s *Subscription) bind(cancel context.CancelFunc) {
	s.cancel = cancel
}

func (s *Subscription) stop() {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// Run executes the backfill phase and then the live phase. It only ever
// returns nil: a failed delivery drops the subscription (the client
// resubscribes and backfills), it never warrants a supervisor restart.
func (s *Subscription) Run(ctx context.Context) error {
	if !s.backfill(ctx) {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-s.live:
			if msg.Sequence <= s.watermark {
				// Already delivered during backfill.
				continue
			}
			if msg.Sequence > s.watermark+1 {
				// The buffer skipped ahead of the log pages we read;
				// close the gap from the log before forwarding.
				if !s.backfill(ctx) {
					return nil
				}
				if msg.Sequence <= s.watermark {
					continue
				}
			}
			if err := s.sink.SendLive(s.roomID, msg); err != nil {
				s.abandon(err)
				return nil
			}
			s.watermark = msg.Sequence
		}
	}
}

// backfill pages the log from the watermark until caught up. Returns
// false when the subscription must terminate.
func (s *Subscription) backfill(ctx context.Context) bool {
	for {
		if ctx.Err() != nil {
			return false
		}
		messages, err := s.store.ReadRange(domain.ReadRangeQuery{
			RoomID:   s.roomID,
			AfterSeq: s.watermark,
			Limit:    s.page,
		})
		if err != nil {
			s.abandon(err)
			return false
		}
		if len(messages) == 0 {
			return true
		}
		if err := s.sink.SendBackfill(s.roomID, messages); err != nil {
			s.abandon(err)
			return false
		}
		s.watermark = messages[len(messages)-1].Sequence
		if s.page > 0 && len(messages) < s.page {
			return true
		}
	}
}

func (s *Subscription) abandon(cause error) {
	s.log.Warn("Dropping subscription",
		"connection_id", s.connID,
		"room_id", s.roomID,
		"error", cause)
	_ = s.sink.SendError(errors.KindOf(errors.ErrTransport), "subscription dropped, resubscribe to resume")
	s.drop()
}
