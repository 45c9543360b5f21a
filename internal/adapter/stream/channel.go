// Package stream owns the long-lived push subscription from the controller
// and hands every raw frame, in arrival order, to a Sink.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/vending/vending-gui/internal/domain/model"
)

// DefaultReconnectDelay is used until the server asks for another one.
const DefaultReconnectDelay = 3 * time.Second

// Frame is one raw inbound message.
type Frame struct {
	// ID is the last event id seen on the stream, empty if the server sends none.
	ID         string
	Data       []byte
	ReceivedAt time.Time
}

// Sink consumes frames. OnFrame may block; the channel does not read ahead
// while it does. An error from OnFrame ends the subscription.
type Sink interface {
	OnFrame(ctx context.Context, f Frame) error
	OnError(err error)
}

// Channel is a server-to-client push subscription.
type Channel interface {
	// Open blocks for the life of the subscription and returns nil once ctx
	// is cancelled. Transport failures are reported to the sink and followed
	// by a reconnect.
	Open(ctx context.Context, sink Sink) error
}

// Config selects and tunes the transport.
type Config struct {
	BaseURL        string
	Transport      string
	ReconnectDelay time.Duration
}

// New returns the channel for cfg.Transport ("sse" or "ws").
func New(id model.Identity, cfg Config, logger *slog.Logger) (Channel, error) {
	target := strings.TrimRight(cfg.BaseURL, "/") + id.PathPrefix() + "/events"

	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}

	switch cfg.Transport {
	case "", "sse":
		return NewSSE(target, delay, &http.Client{}, logger), nil
	case "ws":
		wsURL, err := websocketURL(target)
		if err != nil {
			return nil, err
		}
		return NewWebsocket(wsURL, delay, logger), nil
	default:
		return nil, fmt.Errorf("unknown stream transport %q", cfg.Transport)
	}
}

// sinkError marks a failure that came from the consumer, not the network.
type sinkError struct{ err error }

func (e *sinkError) Error() string { return "sink: " + e.err.Error() }
func (e *sinkError) Unwrap() error { return e.err }

// deliver hands a frame to the sink and tags its error.
func deliver(ctx context.Context, sink Sink, f Frame) error {
	if err := sink.OnFrame(ctx, f); err != nil {
		return &sinkError{err: err}
	}
	return nil
}

// reconnector runs one connection after another until ctx is done.
type reconnector struct {
	delay  atomic.Int64
	logger *slog.Logger
}

func newReconnector(delay time.Duration, logger *slog.Logger) *reconnector {
	r := &reconnector{logger: logger}
	r.delay.Store(int64(delay))
	return r
}

func (r *reconnector) setDelay(d time.Duration) { r.delay.Store(int64(d)) }
func (r *reconnector) Delay() time.Duration   { return time.Duration(r.delay.Load()) }

func (r *reconnector) run(ctx context.Context, sink Sink, connect func(context.Context) error) error {
	for attempt := 1; ; attempt++ {
		err := connect(ctx)
		if ctx.Err() != nil {
			return nil
		}

		var se *sinkError
		if errors.As(err, &se) {
			return se.err
		}

		if err == nil {
			err = errStreamEnded
		}
		sink.OnError(err)

		delay := r.Delay()
		r.logger.Debug("EVENT_CHANNEL_RECONNECT_SCHEDULED",
			"attempt", attempt,
			"delay_ms", delay.Milliseconds(),
			"err", err,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

var errStreamEnded = errors.New("event stream ended")
