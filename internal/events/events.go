// Package events carries site config change events over a message bus so
// that origin replicas, agents and CLI watchers all see the same stream.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alfredjeanlab/sitesync/internal/model"
)

// Subject layout: every site config event is published on
// "siteconfig.<event kind>", e.g. "siteconfig.module.toggled".
const (
	TopicPrefix = "siteconfig."
	TopicAll    = TopicPrefix + ">"
)

// Topic returns the subject for an event kind.
func Topic(kind model.EventKind) string {
	return TopicPrefix + string(kind)
}

// Publisher emits change events.
type Publisher interface {
	Publish(ctx context.Context, ev model.Event) error
	Close() error
}

// Subscriber receives change events. Subscribe with no kinds receives every
// kind. The returned cancel func unsubscribes and closes the channel; it is
// safe to call more than once.
type Subscriber interface {
	Subscribe(kinds ...model.EventKind) (<-chan model.Event, func(), error)
	Close() error
}

// Discard is a Publisher that drops every event, for origins without a bus.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(context.Context, model.Event) error { return nil }
func (discard) Close() error                               { return nil }

func encodeEvent(ev model.Event) ([]byte, error) {
	if !ev.Kind.IsValid() {
		return nil, fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshaling event: %w", err)
	}
	return data, nil
}

// DecodeEvent parses a bus payload back into an event.
func DecodeEvent(data []byte) (model.Event, error) {
	var ev model.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, fmt.Errorf("decoding event: %w", err)
	}
	if !ev.Kind.IsValid() {
		return ev, fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	return ev, nil
}

func subjects(kinds []model.EventKind) ([]string, error) {
	if len(kinds) == 0 {
		return []string{TopicAll}, nil
	}
	out := make([]string, 0, len(kinds))
	for _, k := range kinds {
		if !k.IsValid() {
			return nil, fmt.Errorf("unknown event kind %q", k)
		}
		out = append(out, Topic(k))
	}
	return out, nil
}
