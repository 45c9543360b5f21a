package pubsub

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/vending/vending-gui/internal/adapter/stream"
)

const (
	metaEventID    = "event_id"
	metaReceivedAt = "received_at"
)

// FrameDispatcher is the write side of the frame bus.
type FrameDispatcher interface {
	// Publish blocks until the subscriber has acked the frame.
	Publish(ctx context.Context, topic string, f stream.Frame) error
}

// frameDispatcher is the concrete implementation (private).
type frameDispatcher struct {
	publisher message.Publisher
}

// NewFrameDispatcher returns the interface instead of the pointer to the struct.
func NewFrameDispatcher(pub message.Publisher) FrameDispatcher {
	return &frameDispatcher{publisher: pub}
}

func (d *frameDispatcher) Publish(ctx context.Context, topic string, f stream.Frame) error {
	msg := message.NewMessage(watermill.NewUUID(), f.Data)
	msg.SetContext(ctx)
	msg.Metadata.Set(metaEventID, f.ID)
	msg.Metadata.Set(metaReceivedAt, strconv.FormatInt(f.ReceivedAt.UnixNano(), 10))

	if err := d.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("frame dispatcher: failed to publish to topic %s: %w", topic, err)
	}
	return nil
}

// FrameFromMessage restores the frame a message was published from.
func FrameFromMessage(msg *message.Message) stream.Frame {
	f := stream.Frame{
		ID:   msg.Metadata.Get(metaEventID),
		Data: msg.Payload,
	}
	if ns, err := strconv.ParseInt(msg.Metadata.Get(metaReceivedAt), 10, 64); err == nil {
		f.ReceivedAt = time.Unix(0, ns)
	}
	return f
}
