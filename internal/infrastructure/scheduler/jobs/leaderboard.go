// Package jobs contains the scheduled maintenance jobs.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alem-hub/alem-quest/internal/application/query"
	"github.com/alem-hub/alem-quest/internal/domain/leaderboard"
	"github.com/alem-hub/alem-quest/internal/domain/shared"
	"github.com/alem-hub/alem-quest/pkg/logger"
)

// LeaderboardReader is the read side the jobs drive.
type LeaderboardReader interface {
	Handle(ctx context.Context, q query.GetLeaderboardQuery) (*query.LeaderboardResult, error)
}

// RunStats summarizes one run of a leaderboard job.
type RunStats struct {
	StartedAt   time.Time
	Duration    time.Duration
	Keys        []leaderboard.SortKey
	Profiles    int
	CacheMisses int

	// SideEffectFailures counts ignored side effects (cache writes, streak
	// corrections) reported by the query.
	SideEffectFailures int
}

// ══════════════════════════════════════════════════════════════════════════════
// WARM LEADERBOARDS JOB
// ══════════════════════════════════════════════════════════════════════════════

// WarmLeaderboardsJob reads every cacheable ranking so the cache is filled
// before clients ask for it. Reads that hit the cache cost one round trip.
type WarmLeaderboardsJob struct {
	reader    LeaderboardReader
	logger    *slog.Logger
	lastStats atomic.Pointer[RunStats]
}

// NewWarmLeaderboardsJob creates the job.
func NewWarmLeaderboardsJob(reader LeaderboardReader, log *slog.Logger) *WarmLeaderboardsJob {
	return &WarmLeaderboardsJob{
		reader: reader,
		logger: logger.OrDefault(log).With(logger.Component("job.warm_leaderboards")),
	}
}

// Name returns the job name.
func (j *WarmLeaderboardsJob) Name() string { return "warm_leaderboards" }

// Description returns a human-readable description.
func (j *WarmLeaderboardsJob) Description() string {
	return "Fills the leaderboard cache for every cacheable sort key"
}

// Run executes the job. Every key is attempted; errors are joined.
func (j *WarmLeaderboardsJob) Run(ctx context.Context) error {
	stats := &RunStats{StartedAt: time.Now()}
	var errs []error

	for _, key := range leaderboard.SortKeys {
		if !key.Cacheable() {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		result, err := j.reader.Handle(ctx, query.GetLeaderboardQuery{SortBy: string(key), Limit: 1})
		if err != nil {
			errs = append(errs, fmt.Errorf("warm %s: %w", key, err))
			continue
		}
		stats.Keys = append(stats.Keys, key)
		stats.Profiles = result.Total
		if !result.FromCache {
			stats.CacheMisses++
		}
		stats.SideEffectFailures += countIgnored(result.SideEffects)
	}

	stats.Duration = time.Since(stats.StartedAt)
	j.lastStats.Store(stats)

	j.logger.Debug("leaderboards warmed",
		"keys", len(stats.Keys),
		"cache_misses", stats.CacheMisses,
		"side_effect_failures", stats.SideEffectFailures,
		logger.Latency(stats.Duration),
	)
	return errors.Join(errs...)
}

// LastStats returns the stats of the previous run, or nil.
func (j *WarmLeaderboardsJob) LastStats() *RunStats {
	return j.lastStats.Load()
}

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH STREAKS JOB
// ══════════════════════════════════════════════════════════════════════════════

// RefreshStreaksJob recomputes every profile's streak from the activity log.
// A streak can lapse without any write, when a day passes with no activity;
// the streak ranking corrects the stored values it finds stale. Run shortly
// after midnight in the app timezone.
type RefreshStreaksJob struct {
	reader    LeaderboardReader
	logger    *slog.Logger
	lastStats atomic.Pointer[RunStats]
}

// NewRefreshStreaksJob creates the job.
func NewRefreshStreaksJob(reader LeaderboardReader, log *slog.Logger) *RefreshStreaksJob {
	return &RefreshStreaksJob{
		reader: reader,
		logger: logger.OrDefault(log).With(logger.Component("job.refresh_streaks")),
	}
}

// Name returns the job name.
func (j *RefreshStreaksJob) Name() string { return "refresh_streaks" }

// Description returns a human-readable description.
func (j *RefreshStreaksJob) Description() string {
	return "Recomputes streaks from the activity log and corrects stored values"
}

// Run executes the job.
func (j *RefreshStreaksJob) Run(ctx context.Context) error {
	stats := &RunStats{StartedAt: time.Now(), Keys: []leaderboard.SortKey{leaderboard.SortByStreak}}

	result, err := j.reader.Handle(ctx, query.GetLeaderboardQuery{SortBy: string(leaderboard.SortByStreak), Limit: 1})
	if err != nil {
		return fmt.Errorf("refresh streaks: %w", err)
	}

	stats.Profiles = result.Total
	stats.CacheMisses = 1
	stats.SideEffectFailures = countIgnored(result.SideEffects)
	stats.Duration = time.Since(stats.StartedAt)
	j.lastStats.Store(stats)

	j.logger.Info("streaks refreshed",
		"profiles", stats.Profiles,
		"corrections", countSucceeded(result.SideEffects),
		"failed_corrections", stats.SideEffectFailures,
		logger.Latency(stats.Duration),
	)
	return nil
}

// LastStats returns the stats of the previous run, or nil.
func (j *RefreshStreaksJob) LastStats() *RunStats {
	return j.lastStats.Load()
}

func countIgnored(effects []shared.SideEffect) int {
	n := 0
	for _, e := range effects {
		if e.Status == shared.SideEffectIgnored {
			n++
		}
	}
	return n
}

func countSucceeded(effects []shared.SideEffect) int {
	n := 0
	for _, e := range effects {
		if e.Status == shared.SideEffectSucceeded {
			n++
		}
	}
	return n
}
