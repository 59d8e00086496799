package outbox

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domoutbox "github.com/Zhima-Mochi/shopcore/internal/domain/outbox"
)

type testEvent struct {
	name string
}

func (e testEvent) EventName() string { return e.name }

func TestBus_DeliversToSubscriber(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(nil)

	var delivered atomic.Int64
	bus.Subscribe("thing.happened", func(context.Context, domoutbox.Event) error {
		delivered.Add(1)
		return nil
	})

	bus.Start(ctx)
	defer bus.Stop(ctx)

	require.NoError(t, bus.Publish(ctx, testEvent{name: "thing.happened"}))

	require.Eventually(t, func() bool {
		return delivered.Load() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestBus_FanoutToAllHandlers(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(nil)

	var delivered atomic.Int64
	for i := 0; i < 3; i++ {
		bus.Subscribe("thing.happened", func(context.Context, domoutbox.Event) error {
			delivered.Add(1)
			return nil
		})
	}

	bus.Start(ctx)
	defer bus.Stop(ctx)

	require.NoError(t, bus.Publish(ctx, testEvent{name: "thing.happened"}))

	require.Eventually(t, func() bool {
		return delivered.Load() == 3
	}, time.Second, 5*time.Millisecond)
}

func TestBus_UnsubscribedEventIsDropped(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(nil)

	var delivered atomic.Int64
	bus.Subscribe("wanted", func(context.Context, domoutbox.Event) error {
		delivered.Add(1)
		return nil
	})

	bus.Start(ctx)
	defer bus.Stop(ctx)

	require.NoError(t, bus.Publish(ctx, testEvent{name: "unwanted"}))
	require.NoError(t, bus.Publish(ctx, testEvent{name: "wanted"}))

	require.Eventually(t, func() bool {
		return delivered.Load() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestBus_HandlerPanicDoesNotStopDispatch(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(nil)

	var delivered atomic.Int64
	bus.Subscribe("thing.happened", func(context.Context, domoutbox.Event) error {
		panic("handler bug")
	})
	bus.Subscribe("thing.happened", func(context.Context, domoutbox.Event) error {
		delivered.Add(1)
		return nil
	})

	bus.Start(ctx)
	defer bus.Stop(ctx)

	require.NoError(t, bus.Publish(ctx, testEvent{name: "thing.happened"}))
	require.NoError(t, bus.Publish(ctx, testEvent{name: "thing.happened"}))

	require.Eventually(t, func() bool {
		return delivered.Load() == 2
	}, time.Second, 5*time.Millisecond)
}

func TestBus_PublishNilIsNoop(t *testing.T) {
	bus := NewBus(nil)
	assert.NoError(t, bus.Publish(context.Background(), nil))
}

func TestBus_StopIsIdempotent(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(nil)
	bus.Start(ctx)
	bus.Stop(ctx)
	bus.Stop(ctx)
}
