package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/fx"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/vending/vending-gui/config"
	"github.com/vending/vending-gui/internal/domain/model"
)

// ProvideLogger builds the process logger from the log section. The level
// follows config file edits while the app runs.
func ProvideLogger(cfg *config.Config, lc fx.Lifecycle) (*slog.Logger, error) {
	lvl, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	level := new(slog.LevelVar)
	level.Set(lvl)

	var out io.Writer = os.Stderr
	if cfg.Log.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     7, // days
		}
		lc.Append(fx.StopHook(file.Close))
		out = file
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	logger := slog.New(handler).With(
		"service", ServiceName,
		"machine", cfg.Machine.Type,
		"instance", cfg.Machine.InstanceID,
	)

	// [HOT_RELOAD] only the level is picked up; everything else needs a restart
	cfg.Watch(func(next *config.Config) {
		nextLvl, err := next.LogLevel()
		if err != nil {
			logger.Warn("CONFIG_RELOAD_REJECTED", "err", err)
			return
		}
		if nextLvl != level.Level() {
			level.Set(nextLvl)
			logger.Info("LOG_LEVEL_CHANGED", "level", nextLvl.String())
		}
	}, func(err error) {
		logger.Warn("CONFIG_RELOAD_REJECTED", "err", err)
	})

	return logger, nil
}

func ProvideWatermillLogger(logger *slog.Logger) watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logger.With("component", "frame_bus"))
}

func ProvideIdentity(cfg *config.Config) (model.Identity, error) {
	return cfg.Identity()
}

// ProvideTracerProvider returns the sdk provider when tracing is enabled
// and a no-op one otherwise. Finished spans are written to the logger.
func ProvideTracerProvider(cfg *config.Config, lc fx.Lifecycle, logger *slog.Logger) (trace.TracerProvider, error) {
	if !cfg.Tracing.Enabled {
		return noop.NewTracerProvider(), nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", ServiceName),
		attribute.String("service.namespace", ServiceNamespace),
		attribute.String("service.version", version),
		attribute.String("vending.machine.type", cfg.Machine.Type),
		attribute.Int("vending.machine.instance_id", cfg.Machine.InstanceID),
	))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Tracing.SampleRatio))),
		sdktrace.WithBatcher(&spanLogExporter{logger: logger.With("component", "tracing")}),
	)
	lc.Append(fx.StopHook(tp.Shutdown))

	return tp, nil
}

// spanLogExporter writes finished spans as debug records.
type spanLogExporter struct {
	logger *slog.Logger
}

var _ sdktrace.SpanExporter = (*spanLogExporter)(nil)

func (e *spanLogExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		e.logger.DebugContext(ctx, "SPAN_ENDED",
			"name", s.Name(),
			"trace_id", s.SpanContext().TraceID().String(),
			"span_id", s.SpanContext().SpanID().String(),
			"duration", s.EndTime().Sub(s.StartTime()),
			"status", s.Status().Code.String(),
		)
	}
	return nil
}

func (e *spanLogExporter) Shutdown(context.Context) error { return nil }
