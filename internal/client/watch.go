package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/alfredjeanlab/sitesync/internal/model"
)

// Watch streams change events from the origin's WebSocket endpoint and
// calls fn for each one until ctx is done, the connection drops, or fn
// returns an error. kinds filters by event pattern ("theme.*"); empty means
// all events. A cancelled ctx returns nil.
func (c *HTTPClient) Watch(ctx context.Context, kinds []string, fn func(model.Event) error) error {
	wsURL, err := c.streamURL(kinds)
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}
		ev, err := decodeStreamEvent(data)
		if err != nil {
			return err
		}
		if err := fn(ev); err != nil {
			if errors.Is(err, ErrStopWatch) {
				return nil
			}
			return err
		}
	}
}

// ErrStopWatch may be returned by a Watch callback to end the stream
// without error.
var ErrStopWatch = errors.New("stop watch")

func (c *HTTPClient) streamURL(kinds []string) (string, error) {
	u, err := url.Parse(c.baseURL + "/api/site-config/ws")
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if len(kinds) > 0 {
		u.RawQuery = url.Values{"events": {strings.Join(kinds, ",")}}.Encode()
	}
	return u.String(), nil
}

func decodeStreamEvent(data []byte) (model.Event, error) {
	var ev model.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, fmt.Errorf("decode event: %w", err)
	}
	return ev, nil
}
