// Package query contains read operations following CQRS pattern.
// Queries never change scoring state; the only writes they make are
// best-effort streak cache corrections, reported as side effects.
package query

import (
	"context"
	"log/slog"

	"github.com/alem-hub/alem-quest/internal/application/guard"
	"github.com/alem-hub/alem-quest/internal/domain/activity"
	"github.com/alem-hub/alem-quest/internal/domain/leaderboard"
	"github.com/alem-hub/alem-quest/internal/domain/profile"
	"github.com/alem-hub/alem-quest/internal/domain/shared"
	"github.com/alem-hub/alem-quest/internal/domain/streak"
	"github.com/alem-hub/alem-quest/pkg/logger"
	"github.com/alem-hub/alem-quest/pkg/timeutil"
)

// Deps are the collaborators of the read side.
type Deps struct {
	Profiles profile.Repository
	Activity activity.Repository
	Tracker  *streak.Tracker
	Clock    timeutil.Clock
	Guard    *guard.Guard

	// Cache is optional. Only cacheable leaderboard keys use it.
	Cache leaderboard.Cache

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

// computeStreak derives the streak summary of one profile from its log.
func computeStreak(ctx context.Context, d Deps, id shared.ProfileID, today timeutil.Date) (streak.Summary, error) {
	entries, err := guard.Call(ctx, d.Guard, "ListActivity", func(ctx context.Context) ([]*activity.Entry, error) {
		return d.Activity.ListByProfile(ctx, id)
	})
	if err != nil {
		return streak.Summary{}, err
	}
	return d.Tracker.Compute(activity.Dates(entries), today), nil
}

// syncStreak writes the computed streak over a stale cached copy. The
// caller's answer never depends on the outcome.
func syncStreak(ctx context.Context, d Deps, p *profile.Profile, computed int) shared.SideEffect {
	const name = "streak_reconcile"
	if p.Streak == computed {
		return shared.SkippedSideEffect(name)
	}
	err := d.Guard.Do(ctx, "SetStreak", func(ctx context.Context) error {
		return d.Profiles.SetStreak(ctx, p.ID, computed)
	})
	if err != nil {
		d.Logger.Warn("streak reconcile failed", logger.ProfileID(p.ID.String()), logger.Err(err))
	}
	return shared.NewSideEffect(name, err)
}
