package stream

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

var _ Channel = (*Websocket)(nil)

// Websocket receives one frame per websocket message.
type Websocket struct {
	url    string
	dialer *websocket.Dialer
	logger *slog.Logger
	loop   *reconnector
}

func NewWebsocket(url string, delay time.Duration, logger *slog.Logger) *Websocket {
	return &Websocket{
		url:    url,
		dialer: websocket.DefaultDialer,
		logger: logger,
		loop:   newReconnector(delay, logger),
	}
}

func (w *Websocket) Open(ctx context.Context, sink Sink) error {
	return w.loop.run(ctx, sink, func(ctx context.Context) error {
		return w.stream(ctx, sink)
	})
}

func (w *Websocket) stream(ctx context.Context, sink Sink) error {
	conn, _, err := w.dialer.DialContext(ctx, w.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", w.url, err)
	}
	defer conn.Close()

	w.logger.Info("EVENT_CHANNEL_CONNECTED", "transport", "ws", "url", w.url)

	// [LIFECYCLE_CONTROL] ReadMessage does not watch ctx; closing the conn unblocks it
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read %s: %w", w.url, err)
		}

		if err := deliver(ctx, sink, Frame{Data: data, ReceivedAt: time.Now()}); err != nil {
			return err
		}
	}
}

// websocketURL maps http(s) onto ws(s).
func websocketURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("event stream url: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("event stream url: unsupported scheme %q", u.Scheme)
	}
	return u.String(), nil
}
