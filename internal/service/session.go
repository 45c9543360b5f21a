/*
Package service runs one display session against one vending machine.

Key Architectural Concepts:
  - Single Writer: every state transition happens on the loop goroutine, one
    frame or mailbox operation at a time, in arrival order.
  - Backpressure, not loss: the frame bus blocks the event channel until the
    loop acks, so frames are never dropped or reordered on the way in.
  - Latest Wins on the way out: watchers only ever need the newest snapshot,
    so a slow watcher loses stale snapshots instead of stalling the loop.
*/
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vending/vending-gui/internal/adapter/controller"
	"github.com/vending/vending-gui/internal/adapter/pubsub"
	"github.com/vending/vending-gui/internal/adapter/stream"
	"github.com/vending/vending-gui/internal/domain/event"
	"github.com/vending/vending-gui/internal/domain/model"
	"github.com/vending/vending-gui/internal/domain/reducer"
)

// ErrAlreadyRunning is returned when Run is called more than once. A
// session is single use.
var ErrAlreadyRunning = errors.New("session already running")

// Sessioner is the read/control contract renderers depend on.
type Sessioner interface {
	Snapshot() model.UiState
	DismissNotice() bool
	Watch() Watcher
	Stats() Stats
}

// Stats counts what the loop did with inbound frames.
type Stats struct {
	SessionID       uuid.UUID `json:"session_id"`
	Machine         string    `json:"machine"`
	StartedAt       time.Time `json:"started_at"`
	Bootstrapped    bool      `json:"bootstrapped"`
	FramesApplied   uint64    `json:"frames_applied"`
	FramesSkipped   uint64    `json:"frames_skipped"`
	FramesIgnored   uint64    `json:"frames_ignored"`
	TransportErrors uint64    `json:"transport_errors"`
	Watchers        int       `json:"watchers"`
}

// op is one state transition run by the loop. touched accumulates the axes
// events have written so bootstrap seeding never overwrites them.
type op func(s model.UiState, touched reducer.Axis) (model.UiState, reducer.Axis)

var _ Sessioner = (*Session)(nil)

type Session struct {
	id     model.Identity
	uid    uuid.UUID
	logger *slog.Logger

	fetcher    controller.Fetcher
	channel    stream.Channel
	subscriber message.Subscriber
	dispatcher pubsub.FrameDispatcher

	config struct {
		mailboxSize   int
		watcherBuffer int
	}

	// [MAILBOX] UI operations that must be serialized with frames.
	mailbox chan op

	mu      sync.RWMutex
	state   model.UiState
	touched reducer.Axis

	watchersMu sync.Mutex
	watchers   map[uuid.UUID]*watcher
	closed     bool

	running      atomic.Bool
	bootstrapped atomic.Bool
	startedAt    atomic.Int64

	applied         atomic.Uint64
	skipped         atomic.Uint64
	ignored         atomic.Uint64
	transportErrors atomic.Uint64
}

func NewSession(
	id model.Identity,
	fetcher controller.Fetcher,
	channel stream.Channel,
	subscriber message.Subscriber,
	dispatcher pubsub.FrameDispatcher,
	logger *slog.Logger,
	opts ...Option,
) *Session {
	s := &Session{
		id:         id,
		uid:        uuid.New(),
		fetcher:    fetcher,
		channel:    channel,
		subscriber: subscriber,
		dispatcher: dispatcher,
		state:      model.NewUiState(),
		watchers:   make(map[uuid.UUID]*watcher),
	}
	s.config.mailboxSize = 64
	s.config.watcherBuffer = 8

	for _, opt := range opts {
		opt(s)
	}

	s.mailbox = make(chan op, s.config.mailboxSize)
	s.logger = logger.With("session_id", s.uid.String(), "machine", id.String())

	return s
}

// Run subscribes to the frame bus, then runs the loop, the bootstrap call
// and the event channel side by side. It returns nil once ctx is cancelled;
// all watchers are closed on the way out.
func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.closeWatchers()

	s.startedAt.Store(time.Now().UnixNano())

	// [ORDERING] subscribe before the channel opens so no frame is published into the void
	frames, err := s.subscriber.Subscribe(ctx, s.id.Topic())
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.id.Topic(), err)
	}

	s.logger.Info("SESSION_STARTED", "topic", s.id.Topic())

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.loop(gCtx, frames)
	})

	g.Go(func() error {
		s.bootstrap(gCtx)
		return nil
	})

	g.Go(func() error {
		return s.channel.Open(gCtx, &busSink{session: s})
	})

	err = g.Wait()

	s.logger.Info("SESSION_STOPPED",
		"frames_applied", s.applied.Load(),
		"frames_skipped", s.skipped.Load(),
		"err", err,
	)

	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *Session) loop(ctx context.Context, frames <-chan *message.Message) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-frames:
			if !ok {
				return nil
			}
			s.handleFrame(pubsub.FrameFromMessage(msg))
			msg.Ack()
		case o := <-s.mailbox:
			s.commit(o)
		}
	}
}

// handleFrame decodes and applies one frame. A bad frame never stops the loop.
func (s *Session) handleFrame(f stream.Frame) {
	defer func() {
		if r := recover(); r != nil {
			s.skipped.Add(1)
			s.logger.Error("FRAME_HANDLER_PANIC",
				"panic", r,
				"event_id", f.ID,
				"stack", string(debug.Stack()),
			)
		}
	}()

	if len(bytes.TrimSpace(f.Data)) == 0 {
		s.ignored.Add(1)
		return
	}

	ev, err := event.Decode(f.Data)
	if err != nil {
		s.skipped.Add(1)
		s.logger.Warn("EVENT_MALFORMED",
			"err", err,
			"event_id", f.ID,
			"payload", string(f.Data),
		)
		return
	}

	if ev.GetKind() == event.Unknown {
		// [FORWARD_COMPATIBILITY]
		s.ignored.Add(1)
		s.logger.Debug("EVENT_UNKNOWN_IGNORED", "tag", ev.GetTag(), "event_id", f.ID)
		return
	}

	s.applied.Add(1)
	s.commit(func(st model.UiState, touched reducer.Axis) (model.UiState, reducer.Axis) {
		return reducer.Apply(st, ev), touched | reducer.Touches(ev)
	})

	s.logger.Debug("EVENT_APPLIED",
		"tag", ev.GetTag(),
		"event_id", f.ID,
		"latency_ms", time.Since(f.ReceivedAt).Milliseconds(),
	)
}

// commit runs o against the current state and fans the result out. Only
// the loop goroutine calls it.
func (s *Session) commit(o op) {
	s.mu.Lock()
	next, touched := o(s.state, s.touched)
	s.state, s.touched = next, touched
	s.mu.Unlock()

	s.broadcast(next)
}

func (s *Session) bootstrap(ctx context.Context) {
	start := time.Now()

	ms, err := s.fetcher.FetchStatus(ctx)
	if err != nil {
		if ctx.Err() == nil {
			// [RESILIENCE] the placeholder state stays until events arrive
			s.logger.Warn("BOOTSTRAP_FAILED", "err", err, "duration_ms", time.Since(start).Milliseconds())
		}
		return
	}

	s.logger.Info("BOOTSTRAP_COMPLETED",
		"products", len(ms.Quantity),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	seed := func(st model.UiState, touched reducer.Axis) (model.UiState, reducer.Axis) {
		if touched != reducer.AxisNone {
			s.logger.Debug("BOOTSTRAP_PARTIALLY_SUPERSEDED", "touched", uint8(touched))
		}
		s.bootstrapped.Store(true)
		return reducer.Seed(st, *ms, touched), touched
	}

	select {
	case s.mailbox <- seed:
	case <-ctx.Done():
	}
}

// Snapshot returns the current state. Slices are shared and must not be mutated.
func (s *Session) Snapshot() model.UiState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// DismissNotice queues the removal of the owner notice. It reports false
// when the mailbox is full.
func (s *Session) DismissNotice() bool {
	dismiss := func(st model.UiState, touched reducer.Axis) (model.UiState, reducer.Axis) {
		return reducer.DismissNotice(st), touched
	}

	select {
	case s.mailbox <- dismiss:
		return true
	default:
		s.logger.Warn("SESSION_MAILBOX_FULL", "op", "dismiss_notice")
		return false
	}
}

// Stats returns a point-in-time copy of the counters.
func (s *Session) Stats() Stats {
	s.watchersMu.Lock()
	watchers := len(s.watchers)
	s.watchersMu.Unlock()

	var started time.Time
	if ns := s.startedAt.Load(); ns != 0 {
		started = time.Unix(0, ns)
	}

	return Stats{
		SessionID:       s.uid,
		Machine:         s.id.String(),
		StartedAt:       started,
		Bootstrapped:    s.bootstrapped.Load(),
		FramesApplied:   s.applied.Load(),
		FramesSkipped:   s.skipped.Load(),
		FramesIgnored:   s.ignored.Load(),
		TransportErrors: s.transportErrors.Load(),
		Watchers:        watchers,
	}
}

// busSink moves frames from the event channel onto the frame bus.
type busSink struct {
	session *Session
}

func (b *busSink) OnFrame(ctx context.Context, f stream.Frame) error {
	return b.session.dispatcher.Publish(ctx, b.session.id.Topic(), f)
}

func (b *busSink) OnError(err error) {
	b.session.transportErrors.Add(1)
	b.session.logger.Warn("EVENT_CHANNEL_ERROR", "err", err)
}
