package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/vending/vending-gui/internal/domain/model"
	"github.com/vending/vending-gui/internal/service"
	"github.com/vending/vending-gui/internal/view"
)

// StateHandler exposes the session state read-only, plus the one UI-only
// write: dismissing the owner notice.
type StateHandler struct {
	logger      *slog.Logger
	session     service.Sessioner
	renderer    *view.Renderer
	pollTimeout time.Duration
}

func NewStateHandler(logger *slog.Logger, session service.Sessioner, renderer *view.Renderer) *StateHandler {
	return &StateHandler{
		logger:      logger,
		session:     session,
		renderer:    renderer,
		pollTimeout: 30 * time.Second,
	}
}

// GetState writes the current UiState.
func (h *StateHandler) GetState(w http.ResponseWriter, r *http.Request) {
	writeBody(w, r, h.logger, http.StatusOK, h.session.Snapshot())
}

// GetView writes the rendered view model of the current state.
func (h *StateHandler) GetView(w http.ResponseWriter, r *http.Request) {
	writeBody(w, r, h.logger, http.StatusOK, h.renderer.Build(h.session.Snapshot()))
}

// GetStats writes the session counters.
func (h *StateHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeBody(w, r, h.logger, http.StatusOK, h.session.Stats())
}

// DismissNotice clears the owner notice. The controller is not contacted.
func (h *StateHandler) DismissNotice(w http.ResponseWriter, r *http.Request) {
	if !h.session.DismissNotice() {
		http.Error(w, "session busy", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Poll holds the request until the state changes or the poll timeout
// passes, then writes the newest state (or 204 on timeout).
func (h *StateHandler) Poll(w http.ResponseWriter, r *http.Request) {
	watcher := h.session.Watch()
	defer watcher.Close()

	// 1. The first snapshot is the one the client already has.
	select {
	case <-r.Context().Done():
		return
	case _, ok := <-watcher.Recv():
		if !ok {
			http.Error(w, "session closed", http.StatusServiceUnavailable)
			return
		}
	}

	timer := time.NewTimer(h.pollTimeout)
	defer timer.Stop()

	// 2. Wait for data or timeout.
	var latest model.UiState
	select {
	case <-r.Context().Done():
		return

	case <-timer.C:
		w.WriteHeader(http.StatusNoContent)
		return

	case st, ok := <-watcher.Recv():
		if !ok {
			http.Error(w, "session closed", http.StatusServiceUnavailable)
			return
		}
		latest = st

		// Only the newest state matters; drain what is already buffered.
	drainLoop:
		for {
			select {
			case next, ok := <-watcher.Recv():
				if !ok {
					break drainLoop
				}
				latest = next
			default:
				break drainLoop
			}
		}
	}

	writeBody(w, r, h.logger, http.StatusOK, latest)
}
