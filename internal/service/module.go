package service

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/fx"

	"github.com/vending/vending-gui/internal/adapter/controller"
	"github.com/vending/vending-gui/internal/adapter/pubsub"
	"github.com/vending/vending-gui/internal/adapter/stream"
	"github.com/vending/vending-gui/internal/domain/model"
)

var Module = fx.Module(
	"service",

	fx.Provide(
		// [CLEAN_INJECTION] Configure Session using Functional Options
		func(
			id model.Identity,
			fetcher controller.Fetcher,
			channel stream.Channel,
			sub message.Subscriber,
			dispatcher pubsub.FrameDispatcher,
			logger *slog.Logger,
		) *Session {
			return NewSession(id, fetcher, channel, sub, dispatcher, logger,
				WithMailboxSize(64),
				WithWatcherBuffer(8),
			)
		},
		func(s *Session) Sessioner { return s },
	),

	fx.Invoke(func(lc fx.Lifecycle, s *Session, shutdowner fx.Shutdowner, logger *slog.Logger) {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})

		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go func() {
					defer close(done)
					if err := s.Run(ctx); err != nil {
						logger.Error("SESSION_FAILED", "err", err)
						_ = shutdowner.Shutdown(fx.ExitCode(1))
					}
				}()
				return nil
			},
			OnStop: func(stopCtx context.Context) error {
				// [GRACEFUL_SHUTDOWN] cancel the subscription and wait for the loop
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
