package query

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alem-hub/alem-quest/internal/application/guard"
	"github.com/alem-hub/alem-quest/internal/domain/leaderboard"
	"github.com/alem-hub/alem-quest/internal/domain/profile"
	"github.com/alem-hub/alem-quest/internal/domain/shared"
	"github.com/alem-hub/alem-quest/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Ranks every profile by one key. Streak rankings recompute each streak from
// the activity log and are never cached.
// ══════════════════════════════════════════════════════════════════════════════

const (
	defaultLeaderboardLimit = 20
	maxLeaderboardLimit     = 100

	// DefaultStreakConcurrency bounds parallel streak recomputation.
	DefaultStreakConcurrency = 8
)

// GetLeaderboardQuery contains the leaderboard request parameters.
type GetLeaderboardQuery struct {
	// SortBy is one of xp, streak, completed_lessons, name. Empty means xp.
	SortBy string

	// Limit defaults to 20 and is capped at 100.
	Limit  int
	Offset int
}

// Validate normalizes paging and parses the sort key.
func (q *GetLeaderboardQuery) Validate() (leaderboard.SortKey, error) {
	if q.Limit < 0 {
		return "", shared.NewDomainError("leaderboard", "Validate", shared.ErrNegativeValue, "limit cannot be negative")
	}
	if q.Offset < 0 {
		return "", shared.NewDomainError("leaderboard", "Validate", shared.ErrNegativeValue, "offset cannot be negative")
	}
	if q.Limit == 0 {
		q.Limit = defaultLeaderboardLimit
	}
	if q.Limit > maxLeaderboardLimit {
		q.Limit = maxLeaderboardLimit
	}
	return leaderboard.ParseSortKey(q.SortBy)
}

// LeaderboardResult is one page of the ranking.
type LeaderboardResult struct {
	SortBy      leaderboard.SortKey
	Entries     []*leaderboard.Entry
	Total       int
	Limit       int
	Offset      int
	FromCache   bool
	GeneratedAt time.Time
	SideEffects []shared.SideEffect
}

// GetLeaderboardHandler handles leaderboard queries.
type GetLeaderboardHandler struct {
	deps        Deps
	concurrency int
}

// NewGetLeaderboardHandler creates a new GetLeaderboardHandler.
func NewGetLeaderboardHandler(deps Deps, concurrency int) *GetLeaderboardHandler {
	if concurrency <= 0 {
		concurrency = DefaultStreakConcurrency
	}
	return &GetLeaderboardHandler{deps: deps.withDefaults("leaderboard"), concurrency: concurrency}
}

// Handle executes the query.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) (*LeaderboardResult, error) {
	key, err := q.Validate()
	if err != nil {
		return nil, err
	}

	result := &LeaderboardResult{SortBy: key, Limit: q.Limit, Offset: q.Offset, GeneratedAt: h.deps.Clock.Now()}
	useCache := key.Cacheable() && h.deps.Cache != nil

	if useCache {
		cached, ok, err := h.deps.Cache.Get(ctx, key)
		if err != nil {
			h.deps.Logger.Warn("leaderboard cache read failed", logger.Err(err))
			result.SideEffects = append(result.SideEffects, shared.NewSideEffect("cache_get", err))
		} else if ok {
			result.FromCache = true
			result.Total = len(cached)
			result.Entries = leaderboard.Page(cached, q.Offset, q.Limit)
			return result, nil
		}
	}

	profiles, err := guard.Call(ctx, h.deps.Guard, "ListProfiles", func(ctx context.Context) ([]*profile.Profile, error) {
		return h.deps.Profiles.List(ctx)
	})
	if err != nil {
		return nil, err
	}

	entries := make([]*leaderboard.Entry, len(profiles))
	for i, p := range profiles {
		entries[i] = &leaderboard.Entry{
			ProfileID:        p.ID,
			DisplayName:      p.DisplayName,
			XP:               p.XP,
			Level:            p.Level().Int(),
			Streak:           p.Streak,
			CompletedLessons: p.CompletedLessons,
			CompletedQuizzes: p.CompletedQuizzes,
		}
	}

	if key == leaderboard.SortByStreak {
		effects, err := h.recomputeStreaks(ctx, profiles, entries)
		if err != nil {
			return nil, err
		}
		result.SideEffects = append(result.SideEffects, effects...)
	}

	leaderboard.Rank(entries, key)

	if useCache {
		err := h.deps.Cache.Set(ctx, key, entries)
		if err != nil {
			h.deps.Logger.Warn("leaderboard cache write failed", logger.Err(err))
		}
		result.SideEffects = append(result.SideEffects, shared.NewSideEffect("cache_set", err))
	}

	result.Total = len(entries)
	result.Entries = leaderboard.Page(entries, q.Offset, q.Limit)
	return result, nil
}

// recomputeStreaks replaces every entry's streak with the value derived from
// the activity log, with at most h.concurrency profiles in flight. Stale
// cached copies are corrected best-effort.
func (h *GetLeaderboardHandler) recomputeStreaks(ctx context.Context, profiles []*profile.Profile, entries []*leaderboard.Entry) ([]shared.SideEffect, error) {
	today := h.deps.Clock.Today()

	var (
		mu      sync.Mutex
		effects []shared.SideEffect
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.concurrency)
	for i, p := range profiles {
		i, p := i, p
		g.Go(func() error {
			summary, err := computeStreak(gctx, h.deps, p.ID, today)
			if err != nil {
				return err
			}
			entries[i].Streak = summary.CurrentStreak

			effect := syncStreak(gctx, h.deps, p, summary.CurrentStreak)
			if effect.Status != shared.SideEffectSkipped {
				mu.Lock()
				effects = append(effects, effect)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return effects, nil
}
