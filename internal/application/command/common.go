// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"log/slog"

	"github.com/alem-hub/alem-quest/internal/application/guard"
	"github.com/alem-hub/alem-quest/internal/domain/activity"
	"github.com/alem-hub/alem-quest/internal/domain/challenge"
	"github.com/alem-hub/alem-quest/internal/domain/lesson"
	"github.com/alem-hub/alem-quest/internal/domain/profile"
	"github.com/alem-hub/alem-quest/internal/domain/quiz"
	"github.com/alem-hub/alem-quest/internal/domain/shared"
	"github.com/alem-hub/alem-quest/internal/domain/streak"
	"github.com/alem-hub/alem-quest/pkg/logger"
	"github.com/alem-hub/alem-quest/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Deps are the collaborators shared by the scoring commands. Repositories and
// Tx must come from the same store so repository calls join WithinTx.
type Deps struct {
	Profiles   profile.Repository
	Attempts   quiz.Repository
	Activity   activity.Repository
	Challenges challenge.Repository
	Lessons    lesson.Repository
	Tx         shared.Transactor

	Tracker *streak.Tracker
	Clock   timeutil.Clock

	// Guard retries transient store failures. Nil uses guard.DefaultConfig.
	Guard *guard.Guard

	// Publisher is optional; without it events are recorded as skipped.
	Publisher shared.EventPublisher

	Logger *slog.Logger
}

func (d Deps) withDefaults(component string) Deps {
	d.Logger = logger.OrDefault(d.Logger).With(logger.Component(component))
	if d.Tracker == nil {
		d.Tracker = streak.NewTracker(streak.PolicyGrace)
	}
	if d.Clock == nil {
		d.Clock = timeutil.NewSystemClock(nil)
	}
	if d.Guard == nil {
		d.Guard = guard.New(guard.DefaultConfig(), d.Logger)
	}
	return d
}

// ══════════════════════════════════════════════════════════════════════════════
// SHARED STEPS
// ══════════════════════════════════════════════════════════════════════════════

// reconcileStreak recomputes the current streak of p from the activity log
// and overwrites the cached copy when it differs. It runs inside the caller's
// transaction. The returned event is nil when nothing changed.
func reconcileStreak(ctx context.Context, d Deps, p *profile.Profile, today timeutil.Date) (streak.Summary, shared.Event, error) {
	entries, err := d.Activity.ListByProfile(ctx, p.ID)
	if err != nil {
		return streak.Summary{}, nil, err
	}
	summary := d.Tracker.Compute(activity.Dates(entries), today)
	if summary.CurrentStreak == p.Streak {
		return summary, nil, nil
	}

	if err := d.Profiles.SetStreak(ctx, p.ID, summary.CurrentStreak); err != nil {
		return summary, nil, err
	}
	event := shared.NewStreakReconciledEvent(p.ID.String(), p.Streak, summary.CurrentStreak, d.Clock.Now())
	p.Streak = summary.CurrentStreak
	return summary, event, nil
}

// currentStreak computes the streak of a profile from the activity log as of
// today. The cached copy on the profile is neither read nor updated.
func currentStreak(ctx context.Context, d Deps, profileID shared.ProfileID) (int, error) {
	entries, err := d.Activity.ListByProfile(ctx, profileID)
	if err != nil {
		return 0, err
	}
	return d.Tracker.Compute(activity.Dates(entries), d.Clock.Today()).CurrentStreak, nil
}

// publish sends events after the transaction committed. Failures are
// recorded, never returned: the write already happened.
func publish(d Deps, events []shared.Event) []shared.SideEffect {
	if len(events) == 0 {
		return nil
	}
	if d.Publisher == nil {
		return []shared.SideEffect{shared.SkippedSideEffect("publish_events")}
	}

	effects := make([]shared.SideEffect, 0, len(events))
	for _, event := range events {
		err := d.Publisher.Publish(event)
		if err != nil {
			d.Logger.Warn("event publish failed", "event_type", string(event.EventType()), logger.Err(err))
		}
		effects = append(effects, shared.NewSideEffect("publish:"+string(event.EventType()), err))
	}
	return effects
}

// logInvariant records corrupted state at error level. The error is still
// returned to the caller.
func logInvariant(d Deps, err error, attrs ...any) {
	if shared.IsInvariantViolation(err) {
		d.Logger.Error("invariant violation", append(attrs, logger.Err(err))...)
	}
}
