package controller

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var _ Commander = (*CommanderMiddleware)(nil)

// CommanderMiddleware implements [DECORATOR_PATTERN] around a Commander:
// one span and one log line per command, no change in behaviour.
type CommanderMiddleware struct {
	Next   Commander
	Logger *slog.Logger
	Tracer trace.Tracer
}

// NewCommanderMiddleware creates a logging decorator for the Commander.
func NewCommanderMiddleware(next Commander, logger *slog.Logger, tp trace.TracerProvider) Commander {
	return &CommanderMiddleware{
		Next:   next,
		Logger: logger,
		Tracer: tp.Tracer(tracerName),
	}
}

func (m *CommanderMiddleware) InsertCredit(ctx context.Context, amount int) error {
	return m.observe(ctx, "credit", func(ctx context.Context) error {
		return m.Next.InsertCredit(ctx, amount)
	}, attribute.Int("amount", amount))
}

func (m *CommanderMiddleware) SelectProduct(ctx context.Context, code string) error {
	return m.observe(ctx, "select", func(ctx context.Context) error {
		return m.Next.SelectProduct(ctx, code)
	}, attribute.String("code", code))
}

func (m *CommanderMiddleware) WithdrawCredit(ctx context.Context) error {
	return m.observe(ctx, "withdrawn", m.Next.WithdrawCredit)
}

func (m *CommanderMiddleware) observe(ctx context.Context, name string, call func(context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := m.Tracer.Start(ctx, "command."+name, trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()

	// [EXECUTION]
	err := call(ctx)

	// [OBSERVABILITY]
	args := []any{
		"command", name,
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if sc := span.SpanContext(); sc.HasTraceID() {
		args = append(args, "trace_id", sc.TraceID().String())
	}
	for _, a := range attrs {
		args = append(args, string(a.Key), a.Value.Emit())
	}

	if err != nil {
		m.Logger.Warn("COMMAND_FAILED", append(args, "err", err)...)
	} else {
		m.Logger.Debug("COMMAND_SENT", args...)
	}

	return err
}
