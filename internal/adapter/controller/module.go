package controller

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"

	"github.com/vending/vending-gui/config"
	"github.com/vending/vending-gui/internal/domain/model"
)

var Module = fx.Module("controller",
	fx.Provide(
		ProvideClient,
		func(c *Client) Fetcher { return c },

		// [DECORATION_LAYER] every consumer gets the observed Commander
		func(c *Client, logger *slog.Logger, tp trace.TracerProvider) Commander {
			return NewCommanderMiddleware(c, logger.With("component", "commands"), tp)
		},
	),
)

// ProvideClient maps the controller config section onto a Client.
func ProvideClient(cfg *config.Config, id model.Identity, tp trace.TracerProvider, logger *slog.Logger) (*Client, error) {
	return NewClient(id, Config{
		BaseURL:         cfg.Controller.BaseURL,
		Timeout:         cfg.Controller.Timeout,
		CommandRate:     cfg.Controller.CommandRate,
		CommandBurst:    cfg.Controller.CommandBurst,
		BreakerFailures: cfg.Controller.BreakerFailures,
		BreakerTimeout:  cfg.Controller.BreakerTimeout,
	}, tp, logger)
}
