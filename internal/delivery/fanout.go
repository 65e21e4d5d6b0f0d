package delivery

import (
	"context"
	"log/slog"

	"github.com/alfredjeanlab/sitesync/internal/events"
	"github.com/alfredjeanlab/sitesync/internal/model"
)

// Broadcaster pushes events to live stream clients (SSE, WebSocket).
// Broadcast must not block.
type Broadcaster interface {
	Broadcast(ev model.Event)
}

// Fanout hands each event to webhooks, the event bus, and live streams.
type Fanout struct {
	webhooks *Dispatcher
	bus      events.Publisher
	streams  []Broadcaster
	logger   *slog.Logger
}

// NewFanout creates a fanout. webhooks and bus may be nil.
func NewFanout(webhooks *Dispatcher, bus events.Publisher, logger *slog.Logger, streams ...Broadcaster) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fanout{webhooks: webhooks, bus: bus, streams: streams, logger: logger}
}

// Notify delivers ev everywhere. Failures are logged; none is returned.
func (f *Fanout) Notify(ctx context.Context, ev model.Event) {
	if f.webhooks != nil {
		n, err := f.webhooks.NotifyAll(ctx, ev)
		if err != nil {
			f.logger.Error("listing webhook subscribers failed", "event", ev.Kind, "error", err)
		} else if n > 0 {
			f.logger.Info("webhook deliveries started", "event", ev.Kind, "version", ev.Version, "subscribers", n)
		}
	}
	if f.bus != nil {
		if err := f.bus.Publish(ctx, ev); err != nil {
			f.logger.Warn("publishing event to bus failed", "event", ev.Kind, "error", err)
		}
	}
	for _, s := range f.streams {
		s.Broadcast(ev)
	}
}
