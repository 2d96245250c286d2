package stationclient

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/weatherbird/provisioning/internal/server"
	"github.com/weatherbird/provisioning/internal/version"
)

const closeWait = time.Second

// EventsURL returns the websocket URL of the station's event stream.
func (c *Client) EventsURL() string {
	u := c.BaseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/events"
}

// Watch streams station events to fn until ctx is cancelled or the
// connection drops. The first event is always a snapshot of the current
// status. A cancelled context is not reported as an error.
func (c *Client) Watch(ctx context.Context, fn func(server.EventMessage)) error {
	header := http.Header{}
	header.Set("User-Agent", version.UserAgent(userAgentComponent))

	dialer := websocket.Dialer{HandshakeTimeout: c.HTTPClient.Timeout}
	conn, resp, err := dialer.DialContext(ctx, c.EventsURL(), header)
	if err != nil {
		if resp != nil {
			return newStatusError(resp.StatusCode, "websocket upgrade refused")
		}
		return classifyNetworkError("failed to open event stream", err)
	}
	defer func() { _ = conn.Close() }()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(closeWait))
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		var msg server.EventMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return classifyNetworkError("event stream closed", err)
		}
		fn(msg)
	}
}
