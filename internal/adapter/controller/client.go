// Package controller talks to the vending machine controller over plain
// HTTP: one status call at startup and fire-and-forget commands afterwards.
package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/vending/vending-gui/internal/domain/model"
)

const tracerName = "github.com/vending/vending-gui/internal/adapter/controller"

var (
	// ErrUnexpectedStatus is returned when the controller answers with a non-2xx code.
	ErrUnexpectedStatus = errors.New("unexpected controller status")
	// ErrInvalidAmount rejects a credit insert that is not a positive integer.
	ErrInvalidAmount = errors.New("credit amount must be positive")
	// ErrInvalidCode rejects an empty product selection.
	ErrInvalidCode = errors.New("product code must not be empty")
)

// Config holds the controller connection settings.
type Config struct {
	BaseURL         string
	Timeout         time.Duration
	CommandRate     float64
	CommandBurst    int
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// Interface guards
var (
	_ Fetcher   = (*Client)(nil)
	_ Commander = (*Client)(nil)
)

// Client is the HTTP client for one machine instance.
type Client struct {
	id      model.Identity
	baseURL string
	http    *http.Client
	tracer  trace.Tracer
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// NewClient validates the base URL and prepares the command guards.
func NewClient(id model.Identity, cfg Config, tp trace.TracerProvider, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("controller base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("controller base url: unsupported scheme %q", u.Scheme)
	}

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	limit := rate.Limit(cfg.CommandRate)
	if cfg.CommandRate <= 0 {
		limit = rate.Inf
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "controller-commands",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("COMMAND_BREAKER_STATE_CHANGED",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &Client{
		id:      id,
		baseURL: strings.TrimRight(u.String(), "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		tracer:  tp.Tracer(tracerName),
		limiter: rate.NewLimiter(limit, cfg.CommandBurst),
		breaker: breaker,
	}, nil
}

// Identity returns the machine this client is bound to.
func (c *Client) Identity() model.Identity { return c.id }

// Endpoint builds the absolute URL of a machine resource. Each segment is
// path-escaped.
func (c *Client) Endpoint(segments ...string) string {
	var b strings.Builder
	b.WriteString(c.baseURL)
	b.WriteString(c.id.PathPrefix())
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

// get performs one GET and hands a 2xx response to read. The body is always
// drained and closed.
func (c *Client) get(ctx context.Context, target string, read func(io.Reader) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", target, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s %s", ErrUnexpectedStatus, target, resp.Status)
	}
	if read == nil {
		return nil
	}
	return read(resp.Body)
}

// startSpan opens a client span for one controller call.
func (c *Client) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "controller."+name, trace.WithSpanKind(trace.SpanKindClient))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
