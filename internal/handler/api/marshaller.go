package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	contentTypeJSON    = "application/json"
	contentTypeMsgpack = "application/msgpack"
)

// WSEvent is the envelope of every websocket message.
type WSEvent struct {
	Event   string `json:"event"`
	ID      string `json:"id"`
	SentAt  int64  `json:"sent_at"`
	Payload any    `json:"payload"`
}

// MarshallStateEvent wraps a snapshot for the websocket stream.
func MarshallStateEvent(payload any) ([]byte, error) {
	return json.Marshal(&WSEvent{
		Event:   "state",
		ID:      uuid.NewString(),
		SentAt:  time.Now().UnixMilli(),
		Payload: payload,
	})
}

// wantsMsgpack reports whether the client asked for msgpack.
func wantsMsgpack(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if mt == contentTypeMsgpack || mt == "application/x-msgpack" {
			return true
		}
	}
	return false
}

// writeBody encodes v as msgpack or JSON depending on Accept. Field names
// are the same in both.
func writeBody(w http.ResponseWriter, r *http.Request, logger *slog.Logger, status int, v any) {
	if wantsMsgpack(r) {
		w.Header().Set("Content-Type", contentTypeMsgpack)
		w.WriteHeader(status)

		enc := msgpack.NewEncoder(w)
		enc.SetCustomStructTag("json")
		if err := enc.Encode(v); err != nil {
			logger.Warn("HTTP_ENCODE_FAILED", "format", "msgpack", "err", err)
		}
		return
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("HTTP_ENCODE_FAILED", "format", "json", "err", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, status int, err error) {
	writeBody(w, r, logger, status, errorBody{Error: err.Error()})
}
