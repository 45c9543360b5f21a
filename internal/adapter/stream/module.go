package stream

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/vending/vending-gui/config"
	"github.com/vending/vending-gui/internal/domain/model"
)

var Module = fx.Module("stream",
	fx.Provide(
		func(cfg *config.Config, id model.Identity, logger *slog.Logger) (Channel, error) {
			return New(id, Config{
				BaseURL:        cfg.Controller.BaseURL,
				Transport:      cfg.Controller.StreamTransport,
				ReconnectDelay: cfg.Controller.ReconnectDelay,
			}, logger.With("component", "event_channel"))
		},
	),
)
