package query

import (
	"context"

	"github.com/alem-hub/alem-quest/internal/application/guard"
	"github.com/alem-hub/alem-quest/internal/domain/profile"
	"github.com/alem-hub/alem-quest/internal/domain/shared"
	"github.com/alem-hub/alem-quest/internal/domain/streak"
	"github.com/alem-hub/alem-quest/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STREAK QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetStreakQuery requests the streak summary of one profile.
type GetStreakQuery struct {
	ProfileID string
}

// StreakResult is the computed streak state.
type StreakResult struct {
	ProfileID   string
	Today       timeutil.Date
	Policy      streak.Policy
	Summary     streak.Summary
	SideEffects []shared.SideEffect
}

// GetStreakHandler handles streak queries.
type GetStreakHandler struct {
	deps Deps
}

// NewGetStreakHandler creates a new GetStreakHandler.
func NewGetStreakHandler(deps Deps) *GetStreakHandler {
	return &GetStreakHandler{deps: deps.withDefaults("streak")}
}

// Handle executes the query. The returned summary is always the freshly
// computed one, whatever the cached profile copy says.
func (h *GetStreakHandler) Handle(ctx context.Context, q GetStreakQuery) (*StreakResult, error) {
	id := shared.ProfileID(q.ProfileID)
	if !id.IsValid() {
		return nil, shared.ErrInvalidProfileID
	}

	p, err := guard.Call(ctx, h.deps.Guard, "GetProfile", func(ctx context.Context) (*profile.Profile, error) {
		return h.deps.Profiles.GetByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	today := h.deps.Clock.Today()
	summary, err := computeStreak(ctx, h.deps, id, today)
	if err != nil {
		return nil, err
	}

	return &StreakResult{
		ProfileID:   q.ProfileID,
		Today:       today,
		Policy:      h.deps.Tracker.Policy(),
		Summary:     summary,
		SideEffects: []shared.SideEffect{syncStreak(ctx, h.deps, p, summary.CurrentStreak)},
	}, nil
}
