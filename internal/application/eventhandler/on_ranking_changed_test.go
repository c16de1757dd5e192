package eventhandler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-quest/internal/domain/leaderboard"
	"github.com/alem-hub/alem-quest/internal/domain/shared"
	"github.com/alem-hub/alem-quest/internal/infrastructure/messaging"
	"github.com/alem-hub/alem-quest/pkg/logger"
)

type countingCache struct {
	mu          sync.Mutex
	invalidated int
	err         error
}

func (c *countingCache) Get(context.Context, leaderboard.SortKey) ([]*leaderboard.Entry, bool, error) {
	return nil, false, nil
}

func (c *countingCache) Set(context.Context, leaderboard.SortKey, []*leaderboard.Entry) error {
	return nil
}

func (c *countingCache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("missing deadline")
	}
	c.invalidated++
	return c.err
}

func (c *countingCache) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invalidated
}

var at = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func TestOnRankingChanged_InvalidatesOnRankingEvents(t *testing.T) {
	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{Logger: logger.Discard()})
	defer bus.Close()
	cache := &countingCache{}

	h := NewOnRankingChangedHandler(cache, logger.Discard(), RankingChangedConfig{})
	sub, err := h.Register(bus)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(shared.NewXPAwardedEvent("p1", 50, 50, "quiz", "quiz:q1", at)))
	require.NoError(t, bus.Publish(shared.LessonCompletedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventLessonCompleted, "p1", at),
		ProfileID: "p1",
		LessonID:  "l1",
	}))
	require.NoError(t, bus.Publish(shared.ProfileCreatedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventProfileCreated, "p2", at),
		ProfileID: "p2",
	}))
	assert.Equal(t, 3, cache.count())

	require.NoError(t, bus.Publish(shared.NewStreakReconciledEvent("p1", 0, 1, at)))
	assert.Equal(t, 3, cache.count())

	sub.Cancel()
	require.NoError(t, bus.Publish(shared.NewXPAwardedEvent("p1", 50, 100, "quiz", "quiz:q2", at)))
	assert.Equal(t, 3, cache.count())
}

func TestOnRankingChanged_ReturnsCacheError(t *testing.T) {
	cache := &countingCache{err: errors.New("redis down")}
	h := NewOnRankingChangedHandler(cache, logger.Discard(), DefaultRankingChangedConfig())

	err := h.Handle(shared.NewXPAwardedEvent("p1", 50, 50, "quiz", "quiz:q1", at))
	assert.EqualError(t, err, "redis down")
}

func TestOnRankingChanged_RegisterOnClosedBus(t *testing.T) {
	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{Logger: logger.Discard()})
	require.NoError(t, bus.Close())

	h := NewOnRankingChangedHandler(&countingCache{}, logger.Discard(), RankingChangedConfig{})
	_, err := h.Register(bus)
	assert.ErrorIs(t, err, messaging.ErrEventBusClosed)
}
