package stream

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const maxLineSize = 1 << 20

var _ Channel = (*SSE)(nil)

// SSE reads a text/event-stream the way an EventSource does: it reconnects
// after the stream ends, honours retry: and resends the last event id.
type SSE struct {
	url    string
	client *http.Client
	logger *slog.Logger
	loop   *reconnector
}

// NewSSE builds an SSE channel. client must not carry a Timeout; the
// stream is cut by cancelling the Open context instead.
func NewSSE(url string, delay time.Duration, client *http.Client, logger *slog.Logger) *SSE {
	return &SSE{
		url:    url,
		client: client,
		logger: logger,
		loop:   newReconnector(delay, logger),
	}
}

func (s *SSE) Open(ctx context.Context, sink Sink) error {
	lastID := ""
	return s.loop.run(ctx, sink, func(ctx context.Context) error {
		return s.stream(ctx, sink, &lastID)
	})
}

func (s *SSE) stream(ctx context.Context, sink Sink, lastID *string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if *lastID != "" {
		req.Header.Set("Last-Event-ID", *lastID)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("connect %s: %w", s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("connect %s: unexpected status %s", s.url, resp.Status)
	}
	if mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mt != "text/event-stream" {
		return fmt.Errorf("connect %s: unexpected content type %q", s.url, mt)
	}

	s.logger.Info("EVENT_CHANNEL_CONNECTED", "transport", "sse", "url", s.url, "last_event_id", *lastID)

	dec := newDecoder(resp.Body, *lastID)
	for {
		f, err := dec.Next()

		// the id and retry fields count even when no event follows
		*lastID = dec.lastID
		if dec.retry > 0 {
			s.loop.setDelay(dec.retry)
		}

		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("read %s: %w", s.url, err)
		}

		if err := deliver(ctx, sink, f); err != nil {
			return err
		}
	}
}

// decoder splits an event stream into dispatched events.
type decoder struct {
	scanner *bufio.Scanner

	lastID    string
	retry     time.Duration
	data      strings.Builder
	hasData   bool
	eventType string
}

func newDecoder(r io.Reader, lastID string) *decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLineSize)
	sc.Split(scanLines)
	return &decoder{scanner: sc, lastID: lastID}
}

// Next returns the next dispatched event, or io.EOF when the stream ends.
// A trailing event without its blank line is discarded.
func (d *decoder) Next() (Frame, error) {
	for d.scanner.Scan() {
		line := d.scanner.Text()
		if line != "" {
			d.field(line)
			continue
		}

		dispatch := d.hasData && (d.eventType == "" || d.eventType == "message")
		data := strings.TrimSuffix(d.data.String(), "\n")

		d.data.Reset()
		d.hasData = false
		d.eventType = ""

		if dispatch {
			return Frame{ID: d.lastID, Data: []byte(data), ReceivedAt: time.Now()}, nil
		}
	}

	if err := d.scanner.Err(); err != nil {
		return Frame{}, err
	}
	return Frame{}, io.EOF
}

func (d *decoder) field(line string) {
	if strings.HasPrefix(line, ":") {
		return
	}

	name, value, found := strings.Cut(line, ":")
	if found {
		value = strings.TrimPrefix(value, " ")
	}

	switch name {
	case "data":
		d.data.WriteString(value)
		d.data.WriteByte('\n')
		d.hasData = true
	case "id":
		if !strings.ContainsRune(value, 0) {
			d.lastID = value
		}
	case "retry":
		if ms, err := strconv.ParseUint(value, 10, 32); err == nil {
			d.retry = time.Duration(ms) * time.Millisecond
		}
	case "event":
		d.eventType = value
	}
}

// scanLines splits on \n, \r\n or a lone \r.
func scanLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		if i+1 < len(data) {
			if data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			return i + 1, data[:i], nil
		}
		if atEOF {
			return i + 1, data[:i], nil
		}
		// a \r at the end of the buffer may be the first half of \r\n
		return 0, nil, nil
	}

	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
