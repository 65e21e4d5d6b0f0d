package delivery

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/alfredjeanlab/sitesync/internal/events"
	"github.com/alfredjeanlab/sitesync/internal/model"
)

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev model.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, events.Topic(ev.Kind))
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []model.Event
}

func (b *recordingBroadcaster) Broadcast(ev model.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
}

func TestFanout_Notify(t *testing.T) {
	reg, _ := newTestRegistry(t, 0)
	hs := newHookServer(t, http.StatusOK)
	reg.Register(context.Background(), hs.URL, "s")

	d := NewDispatcher(reg, nil, time.Second, testLogger())
	bus := &recordingPublisher{}
	sse, ws := &recordingBroadcaster{}, &recordingBroadcaster{}
	f := NewFanout(d, bus, testLogger(), sse, ws)

	f.Notify(context.Background(), model.ThemeUpdated(model.Default().Theme, 3, time.Now()))
	d.Wait()

	if hs.calls.Load() != 1 {
		t.Errorf("webhook calls = %d, want 1", hs.calls.Load())
	}
	if len(bus.topics) != 1 || bus.topics[0] != "siteconfig.theme.updated" {
		t.Errorf("bus topics = %v", bus.topics)
	}
	for name, b := range map[string]*recordingBroadcaster{"sse": sse, "ws": ws} {
		if len(b.events) != 1 || b.events[0].Kind != model.EventThemeUpdated {
			t.Errorf("%s events = %v", name, b.events)
		}
	}
}

func TestFanout_BusFailureDoesNotStopStreams(t *testing.T) {
	bus := &recordingPublisher{err: errors.New("nats down")}
	stream := &recordingBroadcaster{}
	f := NewFanout(nil, bus, testLogger(), stream)

	f.Notify(context.Background(), model.ModuleToggled("gallery", false, 2, time.Now()))

	if len(stream.events) != 1 {
		t.Errorf("stream got %d events, want 1", len(stream.events))
	}
}
