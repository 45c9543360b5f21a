package service

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/vending/vending-gui/internal/domain/model"
)

// Interface guard
var _ Watcher = (*watcher)(nil)

// Watcher receives every new snapshot of the session state, starting with
// the current one.
type Watcher interface {
	GetID() uuid.UUID
	// Recv is closed when the watcher or the session is closed.
	Recv() <-chan model.UiState
	// Dropped counts snapshots evicted because the reader fell behind.
	Dropped() uint64
	Close()
}

type watcher struct {
	id      uuid.UUID
	session *Session

	mu      sync.Mutex // guards ch against send-after-close
	ch      chan model.UiState
	closed  bool
	dropped atomic.Uint64
}

// Watch registers a new watcher primed with the current snapshot. On a
// session that has already stopped the channel comes back closed.
func (s *Session) Watch() Watcher {
	w := &watcher{
		id:      uuid.New(),
		session: s,
		ch:      make(chan model.UiState, max(1, s.config.watcherBuffer)),
	}

	s.watchersMu.Lock()
	if s.closed {
		s.watchersMu.Unlock()
		w.closed = true
		close(w.ch)
		return w
	}
	s.watchers[w.id] = w
	s.watchersMu.Unlock()

	w.offer(s.Snapshot())
	return w
}

func (w *watcher) GetID() uuid.UUID           { return w.id }
func (w *watcher) Recv() <-chan model.UiState { return w.ch }
func (w *watcher) Dropped() uint64            { return w.dropped.Load() }

// offer enqueues st without blocking. When the buffer is full the oldest
// pending snapshot is evicted; it is stale once st exists.
func (w *watcher) offer(st model.UiState) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}

	// 1. [PRIMARY_DELIVERY]
	select {
	case w.ch <- st:
		return
	default:
	}

	// 2. [EVICTION] make room by dropping the oldest snapshot
	select {
	case <-w.ch:
		w.dropped.Add(1)
	default:
	}

	select {
	case w.ch <- st:
	default:
		w.dropped.Add(1)
	}
}

// Close unregisters the watcher and closes its channel. Safe to call twice.
func (w *watcher) Close() {
	w.session.watchersMu.Lock()
	delete(w.session.watchers, w.id)
	w.session.watchersMu.Unlock()

	w.shutdown()
}

func (w *watcher) shutdown() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	w.closed = true
	close(w.ch)
}

func (s *Session) broadcast(st model.UiState) {
	s.watchersMu.Lock()
	targets := make([]*watcher, 0, len(s.watchers))
	for _, w := range s.watchers {
		targets = append(targets, w)
	}
	s.watchersMu.Unlock()

	for _, w := range targets {
		w.offer(st)
	}
}

func (s *Session) closeWatchers() {
	s.watchersMu.Lock()
	targets := s.watchers
	s.watchers = make(map[uuid.UUID]*watcher)
	s.closed = true
	s.watchersMu.Unlock()

	for _, w := range targets {
		w.shutdown()
	}
}
