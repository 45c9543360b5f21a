package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vending/vending-gui/internal/service"
)

const writeWait = 5 * time.Second

// WSHandler pushes every new snapshot to a websocket client.
type WSHandler struct {
	logger   *slog.Logger
	session  service.Sessioner
	upgrader websocket.Upgrader
}

func NewWSHandler(logger *slog.Logger, session service.Sessioner) *WSHandler {
	return &WSHandler{
		logger:  logger,
		session: session,
		upgrader: websocket.Upgrader{
			// the surface listens on loopback by default
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// 1. UPGRADE TO WEBSOCKET
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WS_UPGRADE_FAILED", "err", err)
		return
	}
	defer ws.Close()

	// 2. SUBSCRIBE TO SNAPSHOTS
	watcher := h.session.Watch()
	defer watcher.Close()

	h.logger.Info("WS_OPENED", "watcher_id", watcher.GetID(), "remote", r.RemoteAddr)
	defer h.logger.Info("WS_CLOSED", "watcher_id", watcher.GetID(), "dropped", watcher.Dropped())

	// 3. DETECT CLIENT CLOSE
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// 4. MAIN WS PUMP LOOP
	for {
		select {
		case <-r.Context().Done():
			return
		case <-gone:
			return
		case st, ok := <-watcher.Recv():
			if !ok {
				_ = ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"),
					time.Now().Add(writeWait))
				return
			}

			data, err := MarshallStateEvent(st)
			if err != nil {
				h.logger.Error("WS_MARSHAL_FAILED", "err", err)
				continue
			}

			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Warn("WS_SEND_FAILED", "err", err)
				return
			}
		}
	}
}
