package command

import (
	"context"
	"time"

	"github.com/alem-hub/alem-quest/internal/application/guard"
	"github.com/alem-hub/alem-quest/internal/domain/activity"
	"github.com/alem-hub/alem-quest/internal/domain/lesson"
	"github.com/alem-hub/alem-quest/internal/domain/profile"
	"github.com/alem-hub/alem-quest/internal/domain/shared"
	"github.com/alem-hub/alem-quest/pkg/logger"
	"github.com/alem-hub/alem-quest/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE LESSON COMMAND
// The first completion of a lesson awards a fixed amount of XP; repeats are
// reported as already completed.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultLessonXP is awarded for a first lesson completion.
const DefaultLessonXP = 20

// CompleteLessonCommand marks a lesson as completed.
type CompleteLessonCommand struct {
	ProfileID string
	LessonID  string
}

// Validate validates the command.
func (c CompleteLessonCommand) Validate() error {
	if !shared.ProfileID(c.ProfileID).IsValid() {
		return shared.ErrInvalidProfileID
	}
	if !shared.LessonID(c.LessonID).IsValid() {
		return shared.ErrInvalidLessonID
	}
	return nil
}

// LessonResult is the outcome of a lesson completion.
type LessonResult struct {
	ProfileID        string
	LessonID         string
	AlreadyCompleted bool
	XPAwarded        int
	TotalXP          int
	Level            int
	CurrentStreak    int
	CompletedAt      time.Time
	SideEffects      []shared.SideEffect
}

// CompleteLessonHandler handles the CompleteLessonCommand.
type CompleteLessonHandler struct {
	deps     Deps
	lessonXP int
}

// NewCompleteLessonHandler creates a new CompleteLessonHandler. A negative
// lessonXP falls back to DefaultLessonXP.
func NewCompleteLessonHandler(deps Deps, lessonXP int) *CompleteLessonHandler {
	if lessonXP < 0 {
		lessonXP = DefaultLessonXP
	}
	return &CompleteLessonHandler{deps: deps.withDefaults("complete_lesson"), lessonXP: lessonXP}
}

// Handle executes the complete lesson command.
func (h *CompleteLessonHandler) Handle(ctx context.Context, cmd CompleteLessonCommand) (*LessonResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := h.deps.Clock.Now()
	today := h.deps.Clock.Today()
	result := &LessonResult{ProfileID: cmd.ProfileID, LessonID: cmd.LessonID}

	var events []shared.Event
	err := h.deps.Guard.Do(ctx, "CompleteLesson", func(ctx context.Context) error {
		return h.deps.Tx.WithinTx(ctx, func(ctx context.Context) error {
			var err error
			events, err = h.record(ctx, result, now, today)
			return err
		})
	})
	switch {
	case shared.IsConflict(err):
		return h.alreadyCompleted(ctx, result)
	case err != nil:
		logInvariant(h.deps, err, logger.ProfileID(cmd.ProfileID), "lesson_id", cmd.LessonID)
		return nil, err
	}

	result.SideEffects = publish(h.deps, events)
	h.deps.Logger.Info("lesson completed",
		logger.ProfileID(cmd.ProfileID),
		"lesson_id", cmd.LessonID,
		logger.XPAmount(result.XPAwarded),
	)
	return result, nil
}

func (h *CompleteLessonHandler) record(ctx context.Context, result *LessonResult, now time.Time, today timeutil.Date) ([]shared.Event, error) {
	profileID := shared.ProfileID(result.ProfileID)

	if _, err := h.deps.Profiles.GetForUpdate(ctx, profileID); err != nil {
		return nil, err
	}

	completion := &lesson.Completion{
		ProfileID:    profileID,
		LessonID:     shared.LessonID(result.LessonID),
		XPAwarded:    h.lessonXP,
		ActivityDate: today,
		CompletedAt:  now,
	}
	if err := h.deps.Lessons.Insert(ctx, completion); err != nil {
		return nil, err
	}

	updated, err := h.deps.Profiles.Increment(ctx, profileID, profile.Increment{XP: h.lessonXP, CompletedLessons: 1})
	if err != nil {
		return nil, err
	}

	entry, err := activity.NewEntry(profileID, today, activity.TypeLesson, h.lessonXP, completion.SourceRef(), now)
	if err != nil {
		return nil, err
	}
	if err := h.deps.Activity.Append(ctx, entry); err != nil {
		return nil, err
	}

	summary, streakEvent, err := reconcileStreak(ctx, h.deps, updated, today)
	if err != nil {
		return nil, err
	}

	result.XPAwarded = h.lessonXP
	result.TotalXP = updated.XP
	result.Level = updated.Level().Int()
	result.CurrentStreak = summary.CurrentStreak
	result.CompletedAt = now

	events := []shared.Event{shared.LessonCompletedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventLessonCompleted, result.ProfileID, now),
		ProfileID: result.ProfileID,
		LessonID:  result.LessonID,
		XPAwarded: h.lessonXP,
	}}
	if h.lessonXP > 0 {
		events = append(events, shared.NewXPAwardedEvent(result.ProfileID, h.lessonXP, updated.XP, "lesson", completion.SourceRef(), now))
	}
	if streakEvent != nil {
		events = append(events, streakEvent)
	}
	return events, nil
}

func (h *CompleteLessonHandler) alreadyCompleted(ctx context.Context, result *LessonResult) (*LessonResult, error) {
	existing, err := guard.Call(ctx, h.deps.Guard, "GetLessonCompletion", func(ctx context.Context) (*lesson.Completion, error) {
		return h.deps.Lessons.Get(ctx, shared.ProfileID(result.ProfileID), shared.LessonID(result.LessonID))
	})
	if err != nil {
		return nil, err
	}
	p, err := guard.Call(ctx, h.deps.Guard, "GetProfile", func(ctx context.Context) (*profile.Profile, error) {
		return h.deps.Profiles.GetByID(ctx, shared.ProfileID(result.ProfileID))
	})
	if err != nil {
		return nil, err
	}
	current, err := guard.Call(ctx, h.deps.Guard, "ComputeStreak", func(ctx context.Context) (int, error) {
		return currentStreak(ctx, h.deps, p.ID)
	})
	if err != nil {
		return nil, err
	}

	result.AlreadyCompleted = true
	result.XPAwarded = 0
	result.TotalXP = p.XP
	result.Level = p.Level().Int()
	result.CurrentStreak = current
	result.CompletedAt = existing.CompletedAt
	return result, nil
}
