package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/vending/vending-gui/internal/adapter/controller"
	"github.com/vending/vending-gui/internal/domain/model"
	"github.com/vending/vending-gui/internal/service"
	"github.com/vending/vending-gui/internal/view"
)

type fakeWatcher struct {
	id uuid.UUID
	ch chan model.UiState
}

func (w *fakeWatcher) GetID() uuid.UUID           { return w.id }
func (w *fakeWatcher) Recv() <-chan model.UiState { return w.ch }
func (w *fakeWatcher) Dropped() uint64            { return 0 }
func (w *fakeWatcher) Close()                     {}

type fakeSession struct {
	mu        sync.Mutex
	state     model.UiState
	busy      bool
	dismissed int
	watchers  chan *fakeWatcher
}

func newFakeSession() *fakeSession {
	st := model.NewUiState()
	st.Message = "Hello"
	st.Credit = 2
	st.Quantity = []model.ProductSlot{{Code: "1", Price: 1.5, Quantity: 3, Symbol: "🍫"}}
	return &fakeSession{state: st, watchers: make(chan *fakeWatcher, 4)}
}

func (f *fakeSession) Snapshot() model.UiState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeSession) DismissNotice() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return false
	}
	f.dismissed++
	return true
}

func (f *fakeSession) Watch() service.Watcher {
	w := &fakeWatcher{id: uuid.New(), ch: make(chan model.UiState, 8)}
	w.ch <- f.Snapshot()
	f.watchers <- w
	return w
}

func (f *fakeSession) Stats() service.Stats {
	return service.Stats{Machine: "snack-1", Bootstrapped: true, FramesApplied: 7}
}

func (f *fakeSession) nextWatcher(t *testing.T) *fakeWatcher {
	t.Helper()
	select {
	case w := <-f.watchers:
		return w
	case <-time.After(5 * time.Second):
		t.Fatal("no watcher registered")
		return nil
	}
}

type fakeCommander struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (c *fakeCommander) record(call string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
	return c.err
}

func (c *fakeCommander) InsertCredit(_ context.Context, amount int) error {
	return c.record(fmt.Sprintf("credit/%d", amount))
}

func (c *fakeCommander) SelectProduct(_ context.Context, code string) error {
	return c.record("select/" + code)
}

func (c *fakeCommander) WithdrawCredit(context.Context) error {
	return c.record("withdrawn")
}

func (c *fakeCommander) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

type fixture struct {
	session  *fakeSession
	commands *fakeCommander
	state    *StateHandler
	server   *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	renderer, err := view.NewRenderer(8)
	require.NoError(t, err)

	f := &fixture{session: newFakeSession(), commands: &fakeCommander{}}
	f.state = NewStateHandler(logger, f.session, renderer)
	router := NewRouter(logger, f.state, NewWSHandler(logger, f.session), NewCommandHandler(logger, f.commands))

	f.server = httptest.NewServer(router)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, header http.Header) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, f.server.URL+path, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestGetState_JSON(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/state", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, contentTypeJSON, resp.Header.Get("Content-Type"))

	var got model.UiState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "Hello", got.Message)
	assert.Equal(t, 2.0, got.Credit)
	require.Len(t, got.Quantity, 1)
	assert.Equal(t, model.Code("1"), got.Quantity[0].Code)
}

func TestGetState_Msgpack(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/state", http.Header{"Accept": {"application/msgpack"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, contentTypeMsgpack, resp.Header.Get("Content-Type"))

	var got map[string]any
	dec := msgpack.NewDecoder(resp.Body)
	require.NoError(t, dec.Decode(&got))
	assert.Equal(t, "Hello", got["message"])
	assert.Contains(t, got, "ownerNotice")
}

func TestGetViewAndStats(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/view", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var vm view.ViewModel
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&vm))
	require.Len(t, vm.Products, 1)
	assert.Equal(t, "🍫🍫🍫", vm.Products[0].Glyphs)

	resp = f.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats service.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, "snack-1", stats.Machine)
	assert.EqualValues(t, 7, stats.FramesApplied)
}

func TestDismissNotice(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodDelete, "/api/notice", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	f.session.mu.Lock()
	assert.Equal(t, 1, f.session.dismissed)
	f.session.busy = true
	f.session.mu.Unlock()
	resp = f.do(t, http.MethodDelete, "/api/notice", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Empty(t, f.commands.Calls(), "dismiss never reaches the controller")
}

func TestCommands(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusAccepted, f.do(t, http.MethodPost, "/api/commands/credit/2", nil).StatusCode)
	assert.Equal(t, http.StatusAccepted, f.do(t, http.MethodPost, "/api/commands/select/3", nil).StatusCode)
	assert.Equal(t, http.StatusAccepted, f.do(t, http.MethodPost, "/api/commands/withdrawn", nil).StatusCode)
	assert.Equal(t, []string{"credit/2", "select/3", "withdrawn"}, f.commands.Calls())

	resp := f.do(t, http.MethodPost, "/api/commands/credit/two", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Len(t, f.commands.Calls(), 3, "unparsable amount is not relayed")
}

func TestCommands_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid amount", fmt.Errorf("credit: %w", controller.ErrInvalidAmount), http.StatusBadRequest},
		{"invalid code", controller.ErrInvalidCode, http.StatusBadRequest},
		{"transport", errors.New("connection refused"), http.StatusBadGateway},
		{"status", fmt.Errorf("%w: 500", controller.ErrUnexpectedStatus), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.commands.err = tt.err

			resp := f.do(t, http.MethodPost, "/api/commands/credit/1", nil)
			assert.Equal(t, tt.status, resp.StatusCode)

			var body errorBody
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.err.Error(), body.Error)
		})
	}
}

func TestPoll_Timeout(t *testing.T) {
	f := newFixture(t)
	f.state.pollTimeout = 50 * time.Millisecond

	resp := f.do(t, http.MethodGet, "/api/state/poll", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestPoll_ReturnsNewestState(t *testing.T) {
	f := newFixture(t)
	f.state.pollTimeout = 5 * time.Second

	type result struct {
		resp *http.Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := f.server.Client().Get(f.server.URL + "/api/state/poll")
		done <- result{resp, err}
	}()

	w := f.session.nextWatcher(t)
	next := f.session.Snapshot()
	next.Message = "Thank you"
	w.ch <- next

	select {
	case r := <-done:
		require.NoError(t, r.err)
		defer r.resp.Body.Close()
		require.Equal(t, http.StatusOK, r.resp.StatusCode)

		var got model.UiState
		require.NoError(t, json.NewDecoder(r.resp.Body).Decode(&got))
		assert.Equal(t, "Thank you", got.Message)
	case <-time.After(5 * time.Second):
		t.Fatal("poll did not return")
	}
}

func TestWS_StreamsSnapshots(t *testing.T) {
	f := newFixture(t)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/api/state/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() model.UiState {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var ev struct {
			Event   string        `json:"event"`
			ID      string        `json:"id"`
			Payload model.UiState `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(data, &ev))
		assert.Equal(t, "state", ev.Event)
		assert.NotEmpty(t, ev.ID)
		return ev.Payload
	}

	assert.Equal(t, "Hello", read().Message)

	w := f.session.nextWatcher(t)
	next := f.session.Snapshot()
	next.OwnerNotice = "Expired products: 2"
	w.ch <- next

	assert.Equal(t, "Expired products: 2", read().OwnerNotice)

	close(w.ch)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestServer_StartStop(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	renderer, err := view.NewRenderer(8)
	require.NoError(t, err)

	sess := newFakeSession()
	router := NewRouter(logger, NewStateHandler(logger, sess, renderer), NewWSHandler(logger, sess), NewCommandHandler(logger, &fakeCommander{}))
	srv := NewServer("127.0.0.1:0", router, logger)
	require.NoError(t, srv.Start())

	resp, err := http.Get("http://" + srv.Addr() + "/api/stats")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))

	_, err = http.Get("http://" + srv.Addr() + "/api/stats")
	assert.Error(t, err)
}

func TestServer_StartFailsOnBusyPort(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	busy := httptest.NewServer(http.NotFoundHandler())
	defer busy.Close()

	srv := NewServer(strings.TrimPrefix(busy.URL, "http://"), nil, logger)
	assert.Error(t, srv.Start())
}
