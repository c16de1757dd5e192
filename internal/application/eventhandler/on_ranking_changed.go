// Package eventhandler contains domain event handlers.
package eventhandler

import (
	"context"
	"log/slog"
	"time"

	"github.com/alem-hub/alem-quest/internal/domain/leaderboard"
	"github.com/alem-hub/alem-quest/internal/domain/shared"
	"github.com/alem-hub/alem-quest/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON RANKING CHANGED HANDLER
// Drops cached leaderboards when an event changes a cacheable ranking:
// XP (quiz, challenge, lesson), completed lessons, or the set of profiles.
// Streak rankings are never cached, so streak events are not handled.
// ═══════════════════════════════════════════════════════════════════════════

// RankingEvents are the event types that invalidate cached leaderboards.
var RankingEvents = []shared.EventType{
	shared.EventXPAwarded,
	shared.EventLessonCompleted,
	shared.EventProfileCreated,
}

// RankingChangedConfig contains the handler configuration.
type RankingChangedConfig struct {
	// Timeout bounds one invalidation.
	Timeout time.Duration
}

// DefaultRankingChangedConfig returns the default configuration.
func DefaultRankingChangedConfig() RankingChangedConfig {
	return RankingChangedConfig{Timeout: 2 * time.Second}
}

// OnRankingChangedHandler invalidates the leaderboard cache.
type OnRankingChangedHandler struct {
	cache  leaderboard.Cache
	logger *slog.Logger
	config RankingChangedConfig
}

// NewOnRankingChangedHandler creates the handler.
func NewOnRankingChangedHandler(cache leaderboard.Cache, log *slog.Logger, config RankingChangedConfig) *OnRankingChangedHandler {
	if config.Timeout <= 0 {
		config.Timeout = DefaultRankingChangedConfig().Timeout
	}
	return &OnRankingChangedHandler{
		cache:  cache,
		logger: logger.OrDefault(log).With("handler", "on_ranking_changed"),
		config: config,
	}
}

// Handle implements shared.EventHandler. A failed invalidation is returned
// to the bus, which logs it; the cached board then expires by TTL.
func (h *OnRankingChangedHandler) Handle(event shared.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	if err := h.cache.Invalidate(ctx); err != nil {
		h.logger.Warn("leaderboard invalidation failed",
			"event_type", string(event.EventType()),
			logger.ProfileID(event.AggregateID()),
			logger.Err(err),
		)
		return err
	}

	h.logger.Debug("leaderboard cache invalidated", "event_type", string(event.EventType()))
	return nil
}

// Register subscribes the handler to every ranking event. Cancelling the
// returned subscription detaches all of them.
func (h *OnRankingChangedHandler) Register(bus shared.EventSubscriber) (shared.Subscription, error) {
	subs := make(subscriptions, 0, len(RankingEvents))
	for _, eventType := range RankingEvents {
		sub, err := bus.Subscribe(eventType, h.Handle)
		if err != nil {
			subs.Cancel()
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// subscriptions cancels a group together.
type subscriptions []shared.Subscription

func (s subscriptions) Cancel() {
	for _, sub := range s {
		sub.Cancel()
	}
}
