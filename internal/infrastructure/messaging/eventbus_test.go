package messaging

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-quest/internal/domain/shared"
	"github.com/alem-hub/alem-quest/pkg/logger"
)

var at = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func xpEvent(id string) shared.Event {
	return shared.NewXPAwardedEvent(id, 50, 150, "quiz", "quiz:q1", at)
}

func lessonEvent(id string) shared.Event {
	return shared.LessonCompletedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventLessonCompleted, id, at),
		ProfileID: id,
		LessonID:  "l1",
		XPAwarded: 20,
	}
}

func syncBus() *InMemoryEventBus {
	return NewInMemoryEventBus(InMemoryEventBusConfig{Logger: logger.Discard(), EnableMetrics: true})
}

func TestInMemoryEventBus_RoutesByType(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	var typed, all []shared.EventType
	_, err := bus.Subscribe(shared.EventXPAwarded, func(e shared.Event) error {
		typed = append(typed, e.EventType())
		return nil
	})
	require.NoError(t, err)
	_, err = bus.SubscribeAll(func(e shared.Event) error {
		all = append(all, e.EventType())
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(xpEvent("p1")))
	require.NoError(t, bus.Publish(lessonEvent("p1")))

	assert.Equal(t, []shared.EventType{shared.EventXPAwarded}, typed)
	assert.Equal(t, []shared.EventType{shared.EventXPAwarded, shared.EventLessonCompleted}, all)
	assert.Equal(t, int64(2), bus.Metrics().Snapshot().TotalPublished)
}

func TestInMemoryEventBus_Cancel(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	var calls int
	sub, err := bus.Subscribe(shared.EventXPAwarded, func(shared.Event) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	other, err := bus.SubscribeAll(func(shared.Event) error { return nil })
	require.NoError(t, err)

	require.NoError(t, bus.Publish(xpEvent("p1")))
	sub.Cancel()
	sub.Cancel()
	require.NoError(t, bus.Publish(xpEvent("p1")))

	assert.Equal(t, 1, calls)
	assert.Equal(t, int64(3), bus.Metrics().Snapshot().HandlerExecutions)

	other.Cancel()
	require.NoError(t, bus.Publish(xpEvent("p1")))
	assert.Equal(t, int64(3), bus.Metrics().Snapshot().HandlerExecutions)
}

func TestInMemoryEventBus_HandlerFailuresDoNotFailPublish(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	var reached bool
	_, _ = bus.SubscribeAll(func(shared.Event) error { return errors.New("boom") })
	_, _ = bus.SubscribeAll(func(shared.Event) error { panic("bad handler") })
	_, _ = bus.SubscribeAll(func(shared.Event) error {
		reached = true
		return nil
	})

	require.NoError(t, bus.Publish(xpEvent("p1")))
	assert.True(t, reached)
	assert.Equal(t, int64(2), bus.Metrics().Snapshot().HandlerFailures)
}

func TestInMemoryEventBus_Closed(t *testing.T) {
	bus := syncBus()
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(xpEvent("p1")), ErrEventBusClosed)
	_, err := bus.Subscribe(shared.EventXPAwarded, func(shared.Event) error { return nil })
	assert.ErrorIs(t, err, ErrEventBusClosed)

	open := syncBus()
	defer open.Close()
	_, err = open.SubscribeAll(nil)
	assert.ErrorIs(t, err, ErrNilHandler)
	assert.ErrorIs(t, open.Publish(nil), ErrNilEvent)
}

func TestInMemoryEventBus_AsyncDrainsOnClose(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 2, Logger: logger.Discard()})

	var handled atomic.Int32
	_, err := bus.SubscribeAll(func(shared.Event) error {
		handled.Add(1)
		return nil
	})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(xpEvent("p1")))
	}
	require.Eventually(t, func() bool { return handled.Load() == 5 }, time.Second, 5*time.Millisecond)
	require.NoError(t, bus.Close())
}

// ══════════════════════════════════════════════════════════════════════════════
// REDIS
// ══════════════════════════════════════════════════════════════════════════════

type collector struct {
	mu     sync.Mutex
	events []shared.Event
}

func (c *collector) handle(e shared.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func (c *collector) first() shared.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events[0]
}

func newRedisBus(t *testing.T, mr *miniredis.Miniredis, instance string) *RedisEventBus {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	bus, err := NewRedisEventBus(context.Background(), RedisEventBusConfig{
		Client:     client,
		InstanceID: instance,
		Logger:     logger.Discard(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = bus.Close() })
	return bus
}

func TestRedisEventBus_FansOutToOtherInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	a := newRedisBus(t, mr, "a")
	b := newRedisBus(t, mr, "b")

	var onA, onB collector
	_, err := a.Subscribe(shared.EventXPAwarded, onA.handle)
	require.NoError(t, err)
	_, err = b.Subscribe(shared.EventXPAwarded, onB.handle)
	require.NoError(t, err)

	require.NoError(t, a.Publish(xpEvent("p1")))

	require.Eventually(t, func() bool { return onB.len() == 1 }, 2*time.Second, 10*time.Millisecond)
	remote := onB.first()
	assert.Equal(t, shared.EventXPAwarded, remote.EventType())
	assert.Equal(t, "p1", remote.AggregateID())
	assert.True(t, at.Equal(remote.OccurredAt()))
	assert.Equal(t, float64(50), remote.Payload()["amount"])

	// The publisher's own message comes back through Redis and is skipped.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, onA.len())
}

func TestRedisEventBus_PublishFailureAfterLocalDelivery(t *testing.T) {
	mr := miniredis.RunT(t)
	bus := newRedisBus(t, mr, "a")

	var local collector
	_, err := bus.SubscribeAll(local.handle)
	require.NoError(t, err)

	mr.Close()
	err = bus.Publish(lessonEvent("p1"))
	assert.Error(t, err)
	assert.Equal(t, 1, local.len())
}

func TestRedisEventBus_Closed(t *testing.T) {
	mr := miniredis.RunT(t)
	bus := newRedisBus(t, mr, "a")
	require.NoError(t, bus.Close())
	assert.ErrorIs(t, bus.Publish(xpEvent("p1")), ErrEventBusClosed)
}

func TestEncodeDecodeMessage(t *testing.T) {
	event := shared.NewStreakReconciledEvent("p1", 1, 3, at)
	event.BaseEvent = event.BaseEvent.WithCorrelationID("req-1")

	data, err := encodeMessage("me", event)
	require.NoError(t, err)

	instance, decoded, err := decodeMessage(string(data))
	require.NoError(t, err)
	assert.Equal(t, "me", instance)
	assert.Equal(t, shared.EventStreakReconciled, decoded.EventType())
	assert.Equal(t, "req-1", decoded.(*remoteEvent).envelope.CorrelationID)
	assert.NotEmpty(t, decoded.(*remoteEvent).EnvelopeID())

	_, _, err = decodeMessage("{")
	assert.Error(t, err)
}
