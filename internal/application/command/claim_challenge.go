package command

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/alem-quest/internal/application/guard"
	"github.com/alem-hub/alem-quest/internal/domain/activity"
	"github.com/alem-hub/alem-quest/internal/domain/challenge"
	"github.com/alem-hub/alem-quest/internal/domain/profile"
	"github.com/alem-hub/alem-quest/internal/domain/shared"
	"github.com/alem-hub/alem-quest/pkg/logger"
	"github.com/alem-hub/alem-quest/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLAIM CHALLENGE COMMAND
// A challenge can be completed once per profile per calendar day.
// ══════════════════════════════════════════════════════════════════════════════

// ClaimOutcome describes how a claim ended.
type ClaimOutcome string

const (
	// ClaimCompleted means the completion was recorded and XP awarded.
	ClaimCompleted ClaimOutcome = "completed"

	// ClaimAlreadyCompleted means the challenge was already completed on that date.
	ClaimAlreadyCompleted ClaimOutcome = "already_completed"

	// ClaimPreconditionNotMet means the challenge is not yet earned on that date.
	ClaimPreconditionNotMet ClaimOutcome = "precondition_not_met"
)

// claimGraceDays is how far back a claim may be dated. Yesterday stays
// claimable for clients that were offline at midnight.
const claimGraceDays = 1

// ClaimChallengeCommand claims a challenge for a date.
type ClaimChallengeCommand struct {
	ProfileID   string
	ChallengeID int64

	// Date defaults to today. It may be at most claimGraceDays in the past.
	Date timeutil.Date
}

// Validate validates the command.
func (c ClaimChallengeCommand) Validate() error {
	if !shared.ProfileID(c.ProfileID).IsValid() {
		return shared.ErrInvalidProfileID
	}
	if c.ChallengeID <= 0 {
		return shared.NewDomainError("challenge", "Validate", shared.ErrInvalidID, "invalid challenge ID")
	}
	return nil
}

// ClaimResult is the outcome of a claim.
type ClaimResult struct {
	ProfileID   string
	ChallengeID int64
	Date        timeutil.Date
	Outcome     ClaimOutcome

	// AlreadyCompleted mirrors Outcome == ClaimAlreadyCompleted.
	AlreadyCompleted bool

	// Reason explains ClaimPreconditionNotMet.
	Reason string

	XPAwarded     int
	TotalXP       int
	CurrentStreak int

	SideEffects []shared.SideEffect
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// ClaimChallengeHandler handles the ClaimChallengeCommand.
type ClaimChallengeHandler struct {
	deps Deps
}

// NewClaimChallengeHandler creates a new ClaimChallengeHandler.
func NewClaimChallengeHandler(deps Deps) *ClaimChallengeHandler {
	return &ClaimChallengeHandler{deps: deps.withDefaults("claim_challenge")}
}

// Handle executes the claim challenge command.
func (h *ClaimChallengeHandler) Handle(ctx context.Context, cmd ClaimChallengeCommand) (*ClaimResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	today := h.deps.Clock.Today()
	date := cmd.Date
	if date.IsZero() {
		date = today
	}
	if date.After(today) {
		return nil, shared.ErrClaimInFuture
	}
	if date.Before(today.AddDays(-claimGraceDays)) {
		return nil, shared.ErrClaimTooOld
	}

	def, err := guard.Call(ctx, h.deps.Guard, "GetChallenge", func(ctx context.Context) (*challenge.Challenge, error) {
		return h.deps.Challenges.Get(ctx, cmd.ChallengeID)
	})
	if err != nil {
		return nil, err
	}
	if !def.Active {
		return nil, shared.ErrChallengeNotFound
	}

	result := &ClaimResult{ProfileID: cmd.ProfileID, ChallengeID: def.ID, Date: date}

	if def.Kind == challenge.KindDailyStreak {
		met, err := h.dailyStreakMet(ctx, cmd.ProfileID, date)
		if err != nil {
			return nil, err
		}
		if !met {
			result.Outcome = ClaimPreconditionNotMet
			result.Reason = shared.ErrDailyStreakUnmet.Message
			return h.withTotals(ctx, result)
		}
	}

	now := h.deps.Clock.Now()
	var events []shared.Event
	err = h.deps.Guard.Do(ctx, "ClaimChallenge", func(ctx context.Context) error {
		return h.deps.Tx.WithinTx(ctx, func(ctx context.Context) error {
			var err error
			events, err = h.record(ctx, def, result, now, today)
			return err
		})
	})
	switch {
	case shared.IsConflict(err):
		result.Outcome = ClaimAlreadyCompleted
		result.AlreadyCompleted = true
		result.XPAwarded = 0
		return h.withTotals(ctx, result)
	case err != nil:
		logInvariant(h.deps, err, logger.ProfileID(cmd.ProfileID), "challenge_id", cmd.ChallengeID)
		return nil, err
	}

	result.Outcome = ClaimCompleted
	result.SideEffects = publish(h.deps, events)
	h.deps.Logger.Info("challenge completed",
		logger.ProfileID(cmd.ProfileID),
		"challenge_id", def.ID,
		"date", date.String(),
		logger.XPAmount(def.XPReward),
	)
	return result, nil
}

// record is the composite write. An ErrConflict from InsertCompletion rolls
// the whole transaction back.
func (h *ClaimChallengeHandler) record(ctx context.Context, def *challenge.Challenge, result *ClaimResult, now time.Time, today timeutil.Date) ([]shared.Event, error) {
	profileID := shared.ProfileID(result.ProfileID)

	if _, err := h.deps.Profiles.GetForUpdate(ctx, profileID); err != nil {
		return nil, err
	}

	completion := &challenge.Completion{
		ProfileID:     profileID,
		ChallengeID:   def.ID,
		CompletedDate: result.Date,
		XPAwarded:     def.XPReward,
		CreatedAt:     now,
	}
	if err := h.deps.Challenges.InsertCompletion(ctx, completion); err != nil {
		return nil, err
	}

	updated, err := h.deps.Profiles.Increment(ctx, profileID, profile.Increment{XP: def.XPReward})
	if err != nil {
		return nil, err
	}

	entry, err := activity.NewEntry(profileID, today, activity.TypeOther, def.XPReward, completion.SourceRef(), now)
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

	result.XPAwarded = def.XPReward
	result.TotalXP = updated.XP
	result.CurrentStreak = summary.CurrentStreak

	events := []shared.Event{shared.ChallengeCompletedEvent{
		BaseEvent:     shared.NewBaseEvent(shared.EventChallengeCompleted, result.ProfileID, now),
		ProfileID:     result.ProfileID,
		ChallengeID:   def.ID,
		CompletedDate: result.Date.String(),
		XPAwarded:     def.XPReward,
	}}
	if def.XPReward > 0 {
		events = append(events, shared.NewXPAwardedEvent(result.ProfileID, def.XPReward, updated.XP, "challenge", completion.SourceRef(), now))
	}
	if streakEvent != nil {
		events = append(events, streakEvent)
	}
	return events, nil
}

// dailyStreakMet reports whether the profile logged both a lesson and a quiz
// on date.
func (h *ClaimChallengeHandler) dailyStreakMet(ctx context.Context, profileID string, date timeutil.Date) (bool, error) {
	entries, err := guard.Call(ctx, h.deps.Guard, "ListActivity", func(ctx context.Context) ([]*activity.Entry, error) {
		return h.deps.Activity.ListByProfileOn(ctx, shared.ProfileID(profileID), date)
	})
	if err != nil {
		return false, fmt.Errorf("daily streak precondition: %w", err)
	}
	return activity.HasTypesOn(entries, date, activity.TypeLesson, activity.TypeQuiz), nil
}

// withTotals fills the current profile totals for outcomes that wrote nothing.
func (h *ClaimChallengeHandler) withTotals(ctx context.Context, result *ClaimResult) (*ClaimResult, error) {
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
	result.TotalXP = p.XP
	result.CurrentStreak = current
	return result, nil
}
