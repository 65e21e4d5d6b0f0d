package server

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	// sseHistory bounds how many recent events a reconnecting client can
	// replay via Last-Event-ID.
	sseHistory = 256

	sseKeepalive = 15 * time.Second
	sseClientBuf = 16
)

type sseEvent struct {
	ID   uint64
	Kind string
	Data []byte
}

func (e *sseEvent) writeTo(w io.Writer) {
	fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", e.ID, e.Kind, e.Data)
}

// sseHub numbers events, keeps the last sseHistory of them, and relays each
// to the matching clients.
type sseHub struct {
	mu      sync.Mutex
	seq     uint64
	history []*sseEvent
	clients map[*sseClient]struct{}
}

type sseClient struct {
	filter kindFilter
	ch     chan *sseEvent
}

func newSSEHub() *sseHub {
	return &sseHub{clients: make(map[*sseClient]struct{})}
}

func (h *sseHub) broadcast(kind string, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	ev := &sseEvent{ID: h.seq, Kind: kind, Data: payload}
	if len(h.history) == sseHistory {
		copy(h.history, h.history[1:])
		h.history = h.history[:sseHistory-1]
	}
	h.history = append(h.history, ev)

	for c := range h.clients {
		if !c.filter.allows(kind) {
			continue
		}
		select {
		case c.ch <- ev:
		default:
			// Full; the client can resync with GET /api/site-config.
		}
	}
}

// subscribe registers a client. Events after lastID still held in history
// are returned for replay, already filtered.
func (h *sseHub) subscribe(filter kindFilter, lastID uint64) (*sseClient, []*sseEvent) {
	c := &sseClient{filter: filter, ch: make(chan *sseEvent, sseClientBuf)}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	if lastID == 0 {
		return c, nil
	}
	var replay []*sseEvent
	for _, ev := range h.history {
		if ev.ID > lastID && filter.allows(ev.Kind) {
			replay = append(replay, ev)
		}
	}
	return c, replay
}

func (h *sseHub) unsubscribe(c *sseClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

func (h *sseHub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// handleEventStream handles GET /api/site-config/stream.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	lastID, _ := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64)
	hub := s.streams.sse
	client, replay := hub.subscribe(parseKindFilter(r.URL.Query().Get("events")), lastID)
	defer hub.unsubscribe(client)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	for _, ev := range replay {
		ev.writeTo(w)
	}
	flusher.Flush()

	keepalive := time.NewTicker(sseKeepalive)
	defer keepalive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-client.ch:
			ev.writeTo(w)
		case <-keepalive.C:
			io.WriteString(w, ":keepalive\n\n")
		}
		flusher.Flush()
	}
}
