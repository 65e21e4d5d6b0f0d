package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/alfredjeanlab/sitesync/internal/model"
)

// subscriptionBuffer bounds each subscription's channel. A slow reader loses
// events instead of stalling the connection; the agent's poll loop repairs
// anything it missed.
const subscriptionBuffer = 64

// Bus is a NATS connection that publishes and subscribes to change events.
type Bus struct {
	conn    *nats.Conn
	logger  *slog.Logger
	dropped atomic.Int64
}

var (
	_ Publisher  = (*Bus)(nil)
	_ Subscriber = (*Bus)(nil)
)

// Connect dials the NATS server at url. The connection reconnects forever;
// extra options such as disconnect handlers are applied after the defaults.
func Connect(url, name string, logger *slog.Logger, opts ...nats.Option) (*Bus, error) {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &Bus{conn: nc, logger: logger}, nil
}

// Publish sends ev on the subject for its kind.
func (b *Bus) Publish(ctx context.Context, ev model.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encodeEvent(ev)
	if err != nil {
		return err
	}
	if err := b.conn.Publish(Topic(ev.Kind), data); err != nil {
		return fmt.Errorf("publishing %s: %w", ev.Kind, err)
	}
	return nil
}

// Subscribe delivers decoded events of the given kinds. Payloads that do not
// decode are logged and skipped.
func (b *Bus) Subscribe(kinds ...model.EventKind) (<-chan model.Event, func(), error) {
	subs, err := subjects(kinds)
	if err != nil {
		return nil, nil, err
	}

	s := &subscription{ch: make(chan model.Event, subscriptionBuffer)}
	for _, subject := range subs {
		ns, err := b.conn.Subscribe(subject, func(msg *nats.Msg) { b.handle(s, msg) })
		if err != nil {
			s.cancel()
			return nil, nil, fmt.Errorf("subscribing to %s: %w", subject, err)
		}
		s.subs = append(s.subs, ns)
	}
	// The subscription must reach the server before we return, or events
	// published right after on other connections may be missed.
	if err := b.conn.Flush(); err != nil {
		s.cancel()
		return nil, nil, fmt.Errorf("flushing subscription: %w", err)
	}
	return s.ch, s.cancel, nil
}

func (b *Bus) handle(s *subscription, msg *nats.Msg) {
	ev, err := DecodeEvent(msg.Data)
	if err != nil {
		b.logger.Warn("dropping bus payload", "subject", msg.Subject, "err", err)
		return
	}
	if !s.offer(ev) {
		b.dropped.Add(1)
	}
}

// Dropped counts events discarded because a subscriber's buffer was full.
func (b *Bus) Dropped() int64 { return b.dropped.Load() }

// Flush waits until the server has processed everything published so far.
func (b *Bus) Flush() error { return b.conn.Flush() }

func (b *Bus) Close() error {
	b.conn.Close()
	return nil
}

// subscription fans NATS callbacks into one channel. offer and cancel share
// mu so an in-flight callback never sends on a closed channel.
type subscription struct {
	ch   chan model.Event
	subs []*nats.Subscription

	mu     sync.Mutex
	closed bool
}

// offer reports false when the event was dropped; a cancelled subscription
// swallows events silently.
func (s *subscription) offer(ev model.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- ev:
		return true
	default:
		return false
	}
}

func (s *subscription) cancel() {
	for _, ns := range s.subs {
		_ = ns.Unsubscribe()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
