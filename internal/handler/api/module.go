package api

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi/v5"
	"go.uber.org/fx"

	"github.com/vending/vending-gui/config"
)

var Module = fx.Module("api",
	fx.Provide(
		NewStateHandler,
		NewWSHandler,
		NewCommandHandler,
		NewRouter,
		func(cfg *config.Config, router chi.Router, logger *slog.Logger) *Server {
			return NewServer(cfg.HTTP.Addr, router, logger)
		},
	),
	fx.Invoke(func(lc fx.Lifecycle, s *Server) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error { return s.Start() },
			OnStop:  s.Stop,
		})
	}),
)
