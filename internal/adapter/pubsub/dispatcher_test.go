package pubsub

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vending/vending-gui/internal/adapter/stream"
)

func TestFrameBus_PreservesOrderAndMetadata(t *testing.T) {
	bus := NewFrameBus(watermill.NopLogger{})
	t.Cleanup(func() { _ = bus.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := bus.Subscribe(ctx, "vending.snack.0.events")
	require.NoError(t, err)

	d := NewFrameDispatcher(bus)
	received := time.Unix(0, 1_700_000_000_123)

	published := make(chan error, 1)
	go func() {
		for i := 0; i < 5; i++ {
			f := stream.Frame{ID: fmt.Sprint(i), Data: []byte(fmt.Sprintf(`{"n":%d}`, i)), ReceivedAt: received}
			if err := d.Publish(ctx, "vending.snack.0.events", f); err != nil {
				published <- err
				return
			}
		}
		published <- nil
	}()

	for i := 0; i < 5; i++ {
		select {
		case msg := <-msgs:
			f := FrameFromMessage(msg)
			assert.Equal(t, fmt.Sprint(i), f.ID)
			assert.Equal(t, fmt.Sprintf(`{"n":%d}`, i), string(f.Data))
			assert.True(t, received.Equal(f.ReceivedAt))
			msg.Ack()
		case <-time.After(5 * time.Second):
			t.Fatalf("frame %d not delivered", i)
		}
	}

	require.NoError(t, <-published)
}

func TestFrameBus_PublishWaitsForAck(t *testing.T) {
	bus := NewFrameBus(watermill.NopLogger{})
	t.Cleanup(func() { _ = bus.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := bus.Subscribe(ctx, "t")
	require.NoError(t, err)

	d := NewFrameDispatcher(bus)
	published := make(chan error, 1)
	go func() { published <- d.Publish(ctx, "t", stream.Frame{Data: []byte("x")}) }()

	msg := <-msgs
	select {
	case <-published:
		t.Fatal("publish returned before ack")
	case <-time.After(50 * time.Millisecond):
	}

	msg.Ack()
	select {
	case err := <-published:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("publish did not return after ack")
	}
}
