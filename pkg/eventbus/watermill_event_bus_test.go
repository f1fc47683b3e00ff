package eventbus_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/chatflow/pkg/channels/gochannel"
	"github.com/dukex/chatflow/pkg/eventbus"
	"github.com/dukex/chatflow/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	pub, sub := gochannel.CreateTestChannel(watermill.NopLogger{})
	bus := eventbus.NewWatermillEventBus(pub, sub)

	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestWatermillEventBus_DeliversTypedEvents(t *testing.T) {
	bus := newBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *events.FlowSaved, 1)

	require.NoError(t, bus.Handle(events.FlowSavedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.FlowSaved)
		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	sent := events.FlowSaved{
		BaseEvent: events.NewBaseEvent(events.FlowSavedEvent, "flow-1"),
		Name:      "Welcome",
		Trigger:   "button:yes",
		NodeCount: 2,
		EdgeCount: 1,
		Created:   true,
	}
	require.NoError(t, bus.Publish(ctx, "flow-1", sent))

	select {
	case got := <-received:
		assert.Equal(t, "flow-1", got.FlowID)
		assert.Equal(t, "Welcome", got.Name)
		assert.Equal(t, "button:yes", got.Trigger)
		assert.True(t, got.Created)
	case <-time.After(5 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestWatermillEventBus_UnhandledTypesAreAcked(t *testing.T) {
	bus := newBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deleted := make(chan string, 1)

	require.NoError(t, bus.Handle(events.FlowDeletedEvent, func(_ context.Context, event any) error {
		deleted <- event.(*events.FlowDeleted).FlowID
		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	require.NoError(t, bus.Publish(ctx, "a", events.FlowDuplicated{BaseEvent: events.NewBaseEvent(events.FlowDuplicatedEvent, "a")}))
	require.NoError(t, bus.Publish(ctx, "b", events.FlowDeleted{BaseEvent: events.NewBaseEvent(events.FlowDeletedEvent, "b")}))

	select {
	case id := <-deleted:
		assert.Equal(t, "b", id)
	case <-time.After(5 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestWatermillEventBus_NackedEventIsRedelivered(t *testing.T) {
	bus := newBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32

	done := make(chan struct{})

	require.NoError(t, bus.Handle(events.FlowDeletedEvent, func(_ context.Context, _ any) error {
		if calls.Add(1) == 1 {
			return errors.New("transient")
		}

		close(done)

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	require.NoError(t, bus.Publish(ctx, "x", events.FlowDeleted{BaseEvent: events.NewBaseEvent(events.FlowDeletedEvent, "x")}))

	select {
	case <-done:
		assert.Equal(t, int32(2), calls.Load())
	case <-time.After(5 * time.Second):
		t.Fatal("nacked message was not redelivered")
	}
}
