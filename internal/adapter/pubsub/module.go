package pubsub

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/fx"
)

var Module = fx.Module("pubsub",
	fx.Provide(
		func(lc fx.Lifecycle, logger watermill.LoggerAdapter) *gochannel.GoChannel {
			bus := NewFrameBus(logger)
			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					return bus.Close()
				},
			})
			return bus
		},
		func(bus *gochannel.GoChannel) message.Subscriber { return bus },
		func(bus *gochannel.GoChannel) FrameDispatcher { return NewFrameDispatcher(bus) },
	),
)
