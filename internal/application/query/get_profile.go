package query

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alem-hub/alem-quest/internal/application/guard"
	"github.com/alem-hub/alem-quest/internal/domain/profile"
	"github.com/alem-hub/alem-quest/internal/domain/shared"
	"github.com/alem-hub/alem-quest/internal/domain/streak"
)

// GetProfileQuery requests one profile.
type GetProfileQuery struct {
	ProfileID string
}

// ProfileView is a profile with its derived values.
type ProfileView struct {
	ProfileID        string
	DisplayName      string
	XP               int
	Level            int
	NextLevelXP      int
	CompletedLessons int
	CompletedQuizzes int
	Streak           streak.Summary
	CreatedAt        time.Time
	UpdatedAt        time.Time
	SideEffects      []shared.SideEffect
}

// GetProfileHandler handles profile queries.
type GetProfileHandler struct {
	deps Deps
}

// NewGetProfileHandler creates a new GetProfileHandler.
func NewGetProfileHandler(deps Deps) *GetProfileHandler {
	return &GetProfileHandler{deps: deps.withDefaults("profile")}
}

// Handle loads the profile and its streak in parallel.
func (h *GetProfileHandler) Handle(ctx context.Context, q GetProfileQuery) (*ProfileView, error) {
	id := shared.ProfileID(q.ProfileID)
	if !id.IsValid() {
		return nil, shared.ErrInvalidProfileID
	}

	var (
		p       *profile.Profile
		summary streak.Summary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		p, err = guard.Call(gctx, h.deps.Guard, "GetProfile", func(ctx context.Context) (*profile.Profile, error) {
			return h.deps.Profiles.GetByID(ctx, id)
		})
		return err
	})
	g.Go(func() error {
		var err error
		summary, err = computeStreak(gctx, h.deps, id, h.deps.Clock.Today())
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	level := p.Level()
	return &ProfileView{
		ProfileID:        p.ID.String(),
		DisplayName:      p.DisplayName,
		XP:               p.XP,
		Level:            level.Int(),
		NextLevelXP:      (level + 1).RequiredXP(),
		CompletedLessons: p.CompletedLessons,
		CompletedQuizzes: p.CompletedQuizzes,
		Streak:           summary,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
		SideEffects:      []shared.SideEffect{syncStreak(ctx, h.deps, p, summary.CurrentStreak)},
	}, nil
}
