package tui

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
)

var Module = fx.Module("tui",
	fx.Provide(NewDashboard),
	fx.Invoke(func(lc fx.Lifecycle, d *Dashboard, shutdowner fx.Shutdowner, logger *slog.Logger) {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})

		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go func() {
					defer close(done)

					code := 0
					if err := d.Run(ctx); err != nil {
						logger.Error("TUI_FAILED", "err", err)
						code = 1
					}
					// quitting the dashboard ends the app
					_ = shutdowner.Shutdown(fx.ExitCode(code))
				}()
				return nil
			},
			OnStop: func(stopCtx context.Context) error {
				cancel()
				select {
				case <-done:
					return nil
				case <-stopCtx.Done():
					return stopCtx.Err()
				}
			},
		})
	}),
)
