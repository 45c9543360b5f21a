// Package testutil holds a fake vending machine controller for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/vending/vending-gui/internal/domain/model"
)

// Connect describes one event stream connection accepted by the fake.
type Connect struct {
	Transport   string
	Type        string
	InstanceID  string
	LastEventID string
}

type item struct {
	// data is sent as one event; block is written verbatim on SSE streams.
	data  string
	block string
}

// Controller serves the status, events and command endpoints of one
// controller. Pushed frames go to whichever stream reads them first.
type Controller struct {
	URL string

	srv *httptest.Server

	mu          sync.Mutex
	status      model.MachineState
	statusCode  int
	statusGate  chan struct{}
	commandCode int
	commands    []string
	nextID      int

	out      chan item
	kick     chan struct{}
	connects chan Connect
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// NewController starts the fake and stops it when the test ends.
func NewController(t testing.TB) *Controller {
	t.Helper()

	c := &Controller{
		status:      model.MachineState{}.Normalize(),
		statusCode:  http.StatusOK,
		commandCode: http.StatusOK,
		out:         make(chan item),
		kick:        make(chan struct{}),
		connects:    make(chan Connect, 16),
	}

	r := chi.NewRouter()
	r.Route("/api/{type}/{id}", func(r chi.Router) {
		r.Get("/status", c.serveStatus)
		r.Get("/events", c.serveEvents)
		r.Get("/credit/{amount}", c.serveCommand)
		r.Get("/select/{code}", c.serveCommand)
		r.Get("/withdrawn", c.serveCommand)
	})

	c.srv = httptest.NewServer(r)
	c.URL = c.srv.URL
	t.Cleanup(c.Close)

	return c
}

// Close stops the server. Open streams are cut.
func (c *Controller) Close() {
	c.srv.CloseClientConnections()
	c.srv.Close()
}

// SetStatus sets the body of the status endpoint.
func (c *Controller) SetStatus(ms model.MachineState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = ms
}

// SetStatusCode makes the status endpoint fail with code.
func (c *Controller) SetStatusCode(code int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statusCode = code
}

// HoldStatus blocks status responses until the returned func is called.
func (c *Controller) HoldStatus() (release func()) {
	gate := make(chan struct{})
	c.mu.Lock()
	c.statusGate = gate
	c.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// SetCommandCode makes every command endpoint answer with code.
func (c *Controller) SetCommandCode(code int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commandCode = code
}

// Commands returns the escaped paths of the commands received so far.
func (c *Controller) Commands() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.commands...)
}

// Connects reports every accepted event stream connection.
func (c *Controller) Connects() <-chan Connect { return c.connects }

// Push sends one event frame and blocks until a stream takes it.
func (c *Controller) Push(data string) { c.out <- item{data: data} }

// PushJSON marshals v and pushes it.
func (c *Controller) PushJSON(t testing.TB, v any) {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	c.Push(string(raw))
}

// PushBlock writes raw SSE text to the next SSE stream.
func (c *Controller) PushBlock(block string) { c.out <- item{block: block} }

// Kick ends the stream currently serving, so the client has to reconnect.
func (c *Controller) Kick() { c.kick <- struct{}{} }

func (c *Controller) serveStatus(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	gate, code, status := c.statusGate, c.statusCode, c.status
	c.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	if code != http.StatusOK {
		http.Error(w, http.StatusText(code), code)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}

func (c *Controller) serveCommand(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	c.commands = append(c.commands, r.URL.EscapedPath())
	code := c.commandCode
	c.mu.Unlock()

	w.WriteHeader(code)
}

func (c *Controller) connect(r *http.Request, transport string) {
	conn := Connect{
		Transport:   transport,
		Type:        chi.URLParam(r, "type"),
		InstanceID:  chi.URLParam(r, "id"),
		LastEventID: r.Header.Get("Last-Event-ID"),
	}
	select {
	case c.connects <- conn:
	default:
	}
}

func (c *Controller) serveEvents(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		c.serveWebsocket(w, r)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	c.connect(r, "sse")

	for {
		select {
		case <-r.Context().Done():
			return
		case <-c.kick:
			return
		case it := <-c.out:
			if it.block != "" {
				_, _ = fmt.Fprint(w, it.block)
			} else {
				c.mu.Lock()
				c.nextID++
				id := c.nextID
				c.mu.Unlock()

				_, _ = fmt.Fprintf(w, "id: %d\n", id)
				for _, line := range strings.Split(it.data, "\n") {
					_, _ = fmt.Fprintf(w, "data: %s\n", line)
				}
				_, _ = fmt.Fprint(w, "\n")
			}
			flusher.Flush()
		}
	}
}

func (c *Controller) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	c.connect(r, "ws")

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case <-c.kick:
			_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
			return
		case it := <-c.out:
			payload := it.data
			if payload == "" {
				payload = it.block
			}
			if err := ws.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
				return
			}
		}
	}
}
