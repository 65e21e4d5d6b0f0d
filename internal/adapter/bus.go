package adapter

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/sitesync/internal/events"
)

// Consume applies every site config event from the bus until ctx is done or
// the subscription closes. Inapplicable events are logged and skipped.
func (a *Adapter) Consume(ctx context.Context, sub events.Subscriber) error {
	ch, cancel, err := sub.Subscribe()
	if err != nil {
		return fmt.Errorf("subscribing to config events: %w", err)
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if _, err := a.HandleEvent(ev); err != nil {
				a.logger.Warn("bus event apply failed", "event", ev.Kind, "version", ev.Version, "error", err)
			}
		}
	}
}
