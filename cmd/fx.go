package cmd

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/vending/vending-gui/config"
	"github.com/vending/vending-gui/internal/adapter/controller"
	"github.com/vending/vending-gui/internal/adapter/pubsub"
	"github.com/vending/vending-gui/internal/adapter/stream"
	"github.com/vending/vending-gui/internal/handler/api"
	"github.com/vending/vending-gui/internal/handler/tui"
	"github.com/vending/vending-gui/internal/service"
	"github.com/vending/vending-gui/internal/view"
)

// base carries the ambient providers every command needs.
func base(cfg *config.Config) fx.Option {
	return fx.Options(
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,
			ProvideWatermillLogger,
			ProvideIdentity,
			ProvideTracerProvider,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			l := &fxevent.SlogLogger{Logger: logger.With("component", "fx")}
			l.UseLogLevel(slog.LevelDebug)
			return l
		}),
		controller.Module,
	)
}

// session adds the live state pipeline on top of base.
func session() fx.Option {
	return fx.Options(
		stream.Module,
		pubsub.Module,
		service.Module,
	)
}

// NewUIApp runs the terminal dashboard.
func NewUIApp(cfg *config.Config) *fx.App {
	return fx.New(
		base(cfg),
		session(),
		view.Module,
		tui.Module,
	)
}

// NewWatchApp runs a headless session that journals every state change.
func NewWatchApp(cfg *config.Config) *fx.App {
	return fx.New(
		base(cfg),
		session(),
		fx.Invoke(func(lc fx.Lifecycle, s service.Sessioner, logger *slog.Logger) {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})

			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go func() {
						defer close(done)
						service.Journal(ctx, s, logger.With("component", "journal"))
					}()
					return nil
				},
				OnStop: func(context.Context) error {
					cancel()
					<-done
					return nil
				},
			})
		}),
	)
}

// NewServeApp runs a headless session behind the local HTTP surface.
func NewServeApp(cfg *config.Config) *fx.App {
	return fx.New(
		base(cfg),
		session(),
		view.Module,
		api.Module,
	)
}

// NewCommandApp only wires the command client; target receives it.
func NewCommandApp(cfg *config.Config, target *controller.Commander) *fx.App {
	return fx.New(
		base(cfg),
		fx.Populate(target),
	)
}
