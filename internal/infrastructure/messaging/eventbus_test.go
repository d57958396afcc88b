package messaging

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulearn/progress-service/internal/domain/shared"
)

func newSyncBus() *InMemoryEventBus {
	return NewInMemoryEventBus(InMemoryEventBusConfig{
		AsyncMode:     false,
		EnableMetrics: true,
	})
}

func TestInMemoryBusRoutesByType(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	var updated, completed int
	require.NoError(t, bus.Subscribe(shared.EventProgressUpdated, func(event shared.Event) error {
		updated++
		return nil
	}))
	require.NoError(t, bus.Subscribe(shared.EventProgressCompleted, func(event shared.Event) error {
		completed++
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewProgressUpdatedEvent("rec-1", 42, 7, 50, 60)))
	require.NoError(t, bus.Publish(shared.NewProgressUpdatedEvent("rec-1", 42, 7, 100, 90)))
	require.NoError(t, bus.Publish(shared.NewProgressCompletedEvent("rec-1", 42, 7)))

	assert.Equal(t, 2, updated)
	assert.Equal(t, 1, completed)
}

func TestInMemoryBusSubscribeAll(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	var seen []shared.EventType
	require.NoError(t, bus.SubscribeAll(func(event shared.Event) error {
		seen = append(seen, event.EventType())
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewProgressUpdatedEvent("rec-1", 42, 7, 50, 60)))
	require.NoError(t, bus.Publish(shared.NewEnrollmentCreatedEvent("enr-1", 42, 7)))

	assert.Equal(t, []shared.EventType{shared.EventProgressUpdated, shared.EventEnrollmentCreated}, seen)
}

func TestInMemoryBusHandlerErrorDoesNotFailPublish(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	require.NoError(t, bus.Subscribe(shared.EventProgressUpdated, func(event shared.Event) error {
		return errors.New("handler broke")
	}))

	// Publishers run post-commit; a failing handler must not surface.
	assert.NoError(t, bus.Publish(shared.NewProgressUpdatedEvent("rec-1", 42, 7, 50, 60)))
}

func TestInMemoryBusAsyncDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 4,
	})

	var mu sync.Mutex
	delivered := 0
	require.NoError(t, bus.Subscribe(shared.EventProgressUpdated, func(event shared.Event) error {
		mu.Lock()
		delivered++
		mu.Unlock()
		return nil
	}))

	for i := 0; i < 20; i++ {
		require.NoError(t, bus.Publish(shared.NewProgressUpdatedEvent("rec-1", 42, 7, 50, 60)))
	}

	// Close waits for in-flight handlers.
	require.NoError(t, bus.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 20, delivered)
}

func TestInMemoryBusRejectsAfterClose(t *testing.T) {
	bus := newSyncBus()
	require.NoError(t, bus.Close())

	err := bus.Publish(shared.NewProgressUpdatedEvent("rec-1", 42, 7, 50, 60))
	assert.ErrorIs(t, err, ErrEventBusClosed)

	err = bus.Subscribe(shared.EventProgressUpdated, func(event shared.Event) error { return nil })
	assert.ErrorIs(t, err, ErrEventBusClosed)
}

func TestEventBusMetrics(t *testing.T) {
	metrics := NewEventBusMetrics()

	metrics.RecordPublish(shared.EventProgressUpdated)
	metrics.RecordPublish(shared.EventProgressUpdated)
	metrics.RecordHandlerExecution(shared.EventProgressUpdated, time.Millisecond, true)
	metrics.RecordHandlerExecution(shared.EventProgressUpdated, time.Millisecond, false)

	snap := metrics.Snapshot()
	assert.Equal(t, int64(2), snap.TotalPublished)
	assert.Equal(t, int64(2), snap.TotalHandlerExecs)
	assert.Equal(t, 0.5, snap.HandlerSuccessRate)
	assert.Equal(t, time.Millisecond, snap.AverageHandlerDuration)
}
