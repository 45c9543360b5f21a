package pubsub

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// NewFrameBus builds the in-process queue between the event channel and the
// reducer loop. Publish returns only after the subscriber acks, so the
// producer can never run ahead of the consumer and order is preserved.
func NewFrameBus(logger watermill.LoggerAdapter) *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            0,
		BlockPublishUntilSubscriberAck: true,
	}, logger)
}
