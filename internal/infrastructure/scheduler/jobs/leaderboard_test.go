package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-quest/internal/application/query"
	"github.com/alem-hub/alem-quest/internal/domain/leaderboard"
	"github.com/alem-hub/alem-quest/internal/domain/shared"
	"github.com/alem-hub/alem-quest/pkg/logger"
)

type fakeReader struct {
	mu      sync.Mutex
	queries []query.GetLeaderboardQuery
	failOn  leaderboard.SortKey
	result  query.LeaderboardResult
}

func (f *fakeReader) Handle(_ context.Context, q query.GetLeaderboardQuery) (*query.LeaderboardResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if leaderboard.SortKey(q.SortBy) == f.failOn {
		return nil, shared.StoreUnavailable("profile", "List", errors.New("down"))
	}
	res := f.result
	return &res, nil
}

func (f *fakeReader) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.queries))
	for _, q := range f.queries {
		out = append(out, q.SortBy)
	}
	return out
}

func TestWarmLeaderboards_ReadsEveryCacheableKey(t *testing.T) {
	reader := &fakeReader{result: query.LeaderboardResult{
		Total:       3,
		SideEffects: []shared.SideEffect{shared.NewSideEffect("cache_set", errors.New("redis down"))},
	}}
	job := NewWarmLeaderboardsJob(reader, logger.Discard())
	assert.Nil(t, job.LastStats())

	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, []string{"xp", "completed_lessons", "name"}, reader.keys())
	stats := job.LastStats()
	require.NotNil(t, stats)
	assert.Equal(t, 3, stats.Profiles)
	assert.Equal(t, 3, stats.CacheMisses)
	assert.Equal(t, 3, stats.SideEffectFailures)
}

func TestWarmLeaderboards_ContinuesAfterFailure(t *testing.T) {
	reader := &fakeReader{failOn: leaderboard.SortByXP, result: query.LeaderboardResult{FromCache: true}}
	job := NewWarmLeaderboardsJob(reader, logger.Discard())

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.True(t, shared.IsRetryable(err))

	assert.Len(t, reader.keys(), 3)
	stats := job.LastStats()
	assert.Equal(t, []leaderboard.SortKey{leaderboard.SortByCompletedLessons, leaderboard.SortByName}, stats.Keys)
	assert.Equal(t, 0, stats.CacheMisses)
}

func TestWarmLeaderboards_StopsOnCancel(t *testing.T) {
	reader := &fakeReader{}
	job := NewWarmLeaderboardsJob(reader, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, job.Run(ctx), context.Canceled)
	assert.Empty(t, reader.keys())
}

func TestRefreshStreaks(t *testing.T) {
	reader := &fakeReader{result: query.LeaderboardResult{
		Total: 4,
		SideEffects: []shared.SideEffect{
			shared.NewSideEffect("streak_reconcile", nil),
			shared.NewSideEffect("streak_reconcile", errors.New("locked")),
		},
	}}
	job := NewRefreshStreaksJob(reader, logger.Discard())

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []string{"streak"}, reader.keys())

	stats := job.LastStats()
	require.NotNil(t, stats)
	assert.Equal(t, 4, stats.Profiles)
	assert.Equal(t, 1, stats.SideEffectFailures)

	reader.failOn = leaderboard.SortByStreak
	assert.Error(t, job.Run(context.Background()))
}
