// Package server exposes the site config service over HTTP (REST, SSE,
// WebSocket) and gRPC.
package server

import (
	"encoding/json"
	"log/slog"

	"github.com/alfredjeanlab/sitesync/internal/delivery"
	"github.com/alfredjeanlab/sitesync/internal/model"
	"github.com/alfredjeanlab/sitesync/internal/service"
)

// Streams fans events out to connected SSE and WebSocket clients. It is
// created before the service so it can be handed to the delivery fanout.
type Streams struct {
	sse *sseHub
	ws  *wsHub
}

// Compile-time check that Streams implements delivery.Broadcaster.
var _ delivery.Broadcaster = (*Streams)(nil)

// NewStreams creates empty SSE and WebSocket hubs.
func NewStreams() *Streams {
	return &Streams{sse: newSSEHub(), ws: newWSHub()}
}

// Broadcast sends ev to every connected stream client. Slow clients drop
// events rather than block the caller.
func (s *Streams) Broadcast(ev model.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		slog.Warn("failed to marshal event for stream broadcast", "event", ev.Kind, "error", err)
		return
	}
	s.sse.broadcast(string(ev.Kind), payload)
	s.ws.broadcast(string(ev.Kind), payload)
}

// Close disconnects all WebSocket clients.
func (s *Streams) Close() {
	s.ws.close()
}

// Server serves site config and webhook registration.
type Server struct {
	svc      *service.ConfigService
	registry *delivery.Registry
	tracker  *delivery.Tracker
	streams  *Streams
}

// New returns a server. tracker may be nil; streams may be nil, in which
// case the stream endpoints have nothing to relay.
func New(svc *service.ConfigService, registry *delivery.Registry, tracker *delivery.Tracker, streams *Streams) *Server {
	if streams == nil {
		streams = NewStreams()
	}
	if tracker == nil {
		tracker = delivery.NewTracker()
	}
	return &Server{svc: svc, registry: registry, tracker: tracker, streams: streams}
}
