package command

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/alem-quest/internal/application/guard"
	"github.com/alem-hub/alem-quest/internal/domain/activity"
	"github.com/alem-hub/alem-quest/internal/domain/personality"
	"github.com/alem-hub/alem-quest/internal/domain/profile"
	"github.com/alem-hub/alem-quest/internal/domain/quiz"
	"github.com/alem-hub/alem-quest/internal/domain/scoring"
	"github.com/alem-hub/alem-quest/internal/domain/shared"
	"github.com/alem-hub/alem-quest/internal/domain/streak"
	"github.com/alem-hub/alem-quest/pkg/logger"
	"github.com/alem-hub/alem-quest/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT ATTEMPT COMMAND
// Scores a quiz submission and records it together with the XP award, the
// activity entry and the refreshed streak in one transaction.
// ══════════════════════════════════════════════════════════════════════════════

// SubmitAttemptCommand contains one quiz submission.
type SubmitAttemptCommand struct {
	ProfileID string
	QuizID    string

	// SubmissionID is an optional idempotency key chosen by the client.
	SubmissionID string

	Score                int
	TotalQuestions       int
	TimeTakenSeconds     int
	TimeRemainingSeconds int

	// SingleAttempt marks quizzes that may be taken once per profile.
	SingleAttempt bool

	// Answers are personality categories ("A", "B", "C"). A submission with
	// answers is a classification quiz and is always single-attempt.
	Answers []string
}

// Validate checks the command and parses the answers.
func (c SubmitAttemptCommand) Validate() ([]personality.Category, error) {
	if !shared.ProfileID(c.ProfileID).IsValid() {
		return nil, shared.ErrInvalidProfileID
	}
	if !shared.QuizID(c.QuizID).IsValid() {
		return nil, shared.ErrInvalidQuizID
	}
	if len(c.SubmissionID) > 128 {
		return nil, shared.NewDomainError("quiz", "Validate", shared.ErrValidation, "submission id is too long")
	}
	if c.TimeTakenSeconds < 0 {
		return nil, shared.ErrNegativeTime
	}
	if err := scoring.Validate(c.result()); err != nil {
		return nil, err
	}
	if len(c.Answers) == 0 {
		return nil, nil
	}
	return personality.ParseAnswers(c.Answers)
}

func (c SubmitAttemptCommand) result() scoring.Result {
	return scoring.Result{
		Score:                c.Score,
		TotalQuestions:       c.TotalQuestions,
		TimeRemainingSeconds: c.TimeRemainingSeconds,
	}
}

// AttemptResult is the outcome of a submission.
type AttemptResult struct {
	AttemptID    string
	SubmissionID string
	ProfileID    string
	QuizID       string

	XPEarned            int
	Passed              bool
	PerfectScore        bool
	TimeBonus           int
	ScorePercent        float64
	PreviousBestPercent float64
	PersonalityType     personality.Type

	// AlreadySubmitted is set when the stored attempt was returned instead
	// of recording a new one. No XP was awarded by this call.
	AlreadySubmitted bool

	TotalXP       int
	Level         int
	CurrentStreak int
	Streak        *streak.Summary

	SideEffects []shared.SideEffect
	CompletedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// SubmitAttemptHandler handles the SubmitAttemptCommand.
type SubmitAttemptHandler struct {
	deps       Deps
	calculator *scoring.Calculator
	classifier personality.Classifier
}

// NewSubmitAttemptHandler creates a new SubmitAttemptHandler.
func NewSubmitAttemptHandler(deps Deps, calculator *scoring.Calculator) *SubmitAttemptHandler {
	if calculator == nil {
		calculator = scoring.NewCalculator(scoring.DefaultConfig())
	}
	return &SubmitAttemptHandler{
		deps:       deps.withDefaults("submit_attempt"),
		calculator: calculator,
		classifier: personality.NewClassifier(),
	}
}

// Handle executes the submit attempt command.
func (h *SubmitAttemptHandler) Handle(ctx context.Context, cmd SubmitAttemptCommand) (*AttemptResult, error) {
	answers, err := cmd.Validate()
	if err != nil {
		return nil, err
	}
	if len(answers) > 0 {
		cmd.SingleAttempt = true
	}

	if cmd.SubmissionID != "" {
		if res, err := h.findBySubmission(ctx, cmd); res != nil || err != nil {
			return res, err
		}
	} else {
		cmd.SubmissionID = uuid.NewString()
	}

	// Fast path: no lock needed to see that a single-attempt quiz is done.
	if cmd.SingleAttempt {
		existing, err := h.listAttempts(ctx, cmd)
		if err != nil {
			return nil, err
		}
		if len(existing) > 0 {
			return h.storedResult(ctx, cmd, existing, nil)
		}
	}

	now := h.deps.Clock.Now()
	today := h.deps.Clock.Today()

	var (
		res    *AttemptResult
		events []shared.Event
	)
	err = h.deps.Guard.Do(ctx, "SubmitAttempt", func(ctx context.Context) error {
		return h.deps.Tx.WithinTx(ctx, func(ctx context.Context) error {
			var err error
			res, events, err = h.record(ctx, cmd, answers, now, today)
			return err
		})
	})
	if err != nil {
		if shared.IsConflict(err) {
			return h.resolveConflict(ctx, cmd, err)
		}
		logInvariant(h.deps, err, logger.ProfileID(cmd.ProfileID), logger.QuizID(cmd.QuizID))
		return nil, err
	}

	res.SideEffects = append(res.SideEffects, publish(h.deps, events)...)
	if !res.AlreadySubmitted {
		h.deps.Logger.Info("quiz attempt recorded",
			logger.ProfileID(cmd.ProfileID),
			logger.QuizID(cmd.QuizID),
			logger.XPAmount(res.XPEarned),
			"passed", res.Passed,
		)
	}
	return res, nil
}

// record is the composite write. It runs inside one transaction.
func (h *SubmitAttemptHandler) record(
	ctx context.Context,
	cmd SubmitAttemptCommand,
	answers []personality.Category,
	now time.Time,
	today timeutil.Date,
) (*AttemptResult, []shared.Event, error) {
	profileID := shared.ProfileID(cmd.ProfileID)
	quizID := shared.QuizID(cmd.QuizID)

	p, err := h.deps.Profiles.GetForUpdate(ctx, profileID)
	if err != nil {
		return nil, nil, err
	}

	history, err := h.deps.Attempts.ListAttempts(ctx, profileID, quizID)
	if err != nil {
		return nil, nil, err
	}
	if cmd.SingleAttempt && len(history) > 0 {
		res, err := h.storedResult(ctx, cmd, history, p)
		return res, nil, err
	}

	award, err := h.calculator.ComputeAward(cmd.result(), quiz.History(history))
	if err != nil {
		return nil, nil, err
	}
	if award.XPEarned < 0 {
		return nil, nil, shared.ErrNegativeAward
	}

	var personalityType personality.Type
	if len(answers) > 0 {
		if personalityType, err = h.classifier.Classify(answers); err != nil {
			return nil, nil, err
		}
	}

	attempt := &quiz.Attempt{
		ID:                   uuid.NewString(),
		SubmissionID:         cmd.SubmissionID,
		ProfileID:            profileID,
		QuizID:               quizID,
		Score:                cmd.Score,
		TotalQuestions:       cmd.TotalQuestions,
		TimeTakenSeconds:     cmd.TimeTakenSeconds,
		TimeRemainingSeconds: cmd.TimeRemainingSeconds,
		XPEarned:             award.XPEarned,
		Passed:               award.Passed,
		IsPerfect:            award.PerfectScore,
		SingleAttempt:        cmd.SingleAttempt,
		PersonalityType:      personalityType,
		ActivityDate:         today,
		CompletedAt:          now,
	}
	if err := h.deps.Attempts.Insert(ctx, attempt); err != nil {
		return nil, nil, err
	}

	updated, err := h.deps.Profiles.Increment(ctx, profileID, profile.Increment{XP: award.XPEarned, CompletedQuizzes: 1})
	if err != nil {
		return nil, nil, err
	}

	entry, err := activity.NewEntry(profileID, today, activity.TypeQuiz, award.XPEarned, "quiz:"+cmd.QuizID, now)
	if err != nil {
		return nil, nil, err
	}
	if err := h.deps.Activity.Append(ctx, entry); err != nil {
		return nil, nil, err
	}

	summary, streakEvent, err := reconcileStreak(ctx, h.deps, updated, today)
	if err != nil {
		return nil, nil, err
	}

	events := []shared.Event{shared.AttemptRecordedEvent{
		BaseEvent:       shared.NewBaseEvent(shared.EventAttemptRecorded, cmd.ProfileID, now),
		ProfileID:       cmd.ProfileID,
		QuizID:          cmd.QuizID,
		AttemptID:       attempt.ID,
		XPEarned:        award.XPEarned,
		Passed:          award.Passed,
		IsPerfect:       award.PerfectScore,
		PersonalityType: string(personalityType),
	}}
	if award.XPEarned > 0 {
		events = append(events, shared.NewXPAwardedEvent(cmd.ProfileID, award.XPEarned, updated.XP, "quiz", "quiz:"+cmd.QuizID, now))
	}
	if streakEvent != nil {
		events = append(events, streakEvent)
	}

	return &AttemptResult{
		AttemptID:           attempt.ID,
		SubmissionID:        attempt.SubmissionID,
		ProfileID:           cmd.ProfileID,
		QuizID:              cmd.QuizID,
		XPEarned:            award.XPEarned,
		Passed:              award.Passed,
		PerfectScore:        award.PerfectScore,
		TimeBonus:           award.TimeBonus,
		ScorePercent:        award.ScorePercent,
		PreviousBestPercent: award.PreviousBestPercent,
		PersonalityType:     personalityType,
		TotalXP:             updated.XP,
		Level:               updated.Level().Int(),
		CurrentStreak:       summary.CurrentStreak,
		Streak:              &summary,
		CompletedAt:         now,
	}, events, nil
}

// findBySubmission returns the stored result of a retried submission, or
// (nil, nil) when the key is new.
func (h *SubmitAttemptHandler) findBySubmission(ctx context.Context, cmd SubmitAttemptCommand) (*AttemptResult, error) {
	attempt, err := guard.Call(ctx, h.deps.Guard, "GetBySubmission", func(ctx context.Context) (*quiz.Attempt, error) {
		return h.deps.Attempts.GetBySubmission(ctx, cmd.SubmissionID)
	})
	if shared.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if attempt.ProfileID.String() != cmd.ProfileID || attempt.QuizID.String() != cmd.QuizID {
		return nil, shared.ErrSubmissionMismatch
	}
	return h.storedResult(ctx, cmd, []*quiz.Attempt{attempt}, nil)
}

func (h *SubmitAttemptHandler) listAttempts(ctx context.Context, cmd SubmitAttemptCommand) ([]*quiz.Attempt, error) {
	return guard.Call(ctx, h.deps.Guard, "ListAttempts", func(ctx context.Context) ([]*quiz.Attempt, error) {
		return h.deps.Attempts.ListAttempts(ctx, shared.ProfileID(cmd.ProfileID), shared.QuizID(cmd.QuizID))
	})
}

// resolveConflict runs after the transaction lost a uniqueness race and
// rolled back. The winner's row is returned as an already-submitted result.
func (h *SubmitAttemptHandler) resolveConflict(ctx context.Context, cmd SubmitAttemptCommand, cause error) (*AttemptResult, error) {
	if res, err := h.findBySubmission(ctx, cmd); res != nil || err != nil {
		return res, err
	}
	if cmd.SingleAttempt {
		existing, err := h.listAttempts(ctx, cmd)
		if err != nil {
			return nil, err
		}
		if len(existing) > 0 {
			return h.storedResult(ctx, cmd, existing, nil)
		}
	}
	err := shared.WrapError("quiz", "Submit", shared.ErrInvariantViolation, "conflicting attempt could not be re-read", cause)
	logInvariant(h.deps, err, logger.ProfileID(cmd.ProfileID), logger.QuizID(cmd.QuizID))
	return nil, err
}

// storedResult reports an attempt that already exists. p may be nil, in
// which case the profile is read for the current totals.
func (h *SubmitAttemptHandler) storedResult(ctx context.Context, cmd SubmitAttemptCommand, attempts []*quiz.Attempt, p *profile.Profile) (*AttemptResult, error) {
	if cmd.SingleAttempt && len(attempts) > 1 {
		logInvariant(h.deps, shared.ErrDuplicateAward,
			logger.ProfileID(cmd.ProfileID), logger.QuizID(cmd.QuizID), "attempts", len(attempts))
		return nil, shared.ErrDuplicateAward
	}
	a := attempts[0]

	computeStreak := func(ctx context.Context) (int, error) {
		return currentStreak(ctx, h.deps, a.ProfileID)
	}
	var (
		current int
		err     error
	)
	if p == nil {
		p, err = guard.Call(ctx, h.deps.Guard, "GetProfile", func(ctx context.Context) (*profile.Profile, error) {
			return h.deps.Profiles.GetByID(ctx, a.ProfileID)
		})
		if err != nil {
			return nil, err
		}
		current, err = guard.Call(ctx, h.deps.Guard, "ComputeStreak", computeStreak)
	} else {
		// Inside the caller's transaction.
		current, err = computeStreak(ctx)
	}
	if err != nil {
		return nil, err
	}

	return &AttemptResult{
		AttemptID:        a.ID,
		SubmissionID:     a.SubmissionID,
		ProfileID:        a.ProfileID.String(),
		QuizID:           a.QuizID.String(),
		XPEarned:         a.XPEarned,
		Passed:           a.Passed,
		PerfectScore:     a.IsPerfect,
		ScorePercent:     a.ScorePercent(),
		PersonalityType:  a.PersonalityType,
		AlreadySubmitted: true,
		TotalXP:          p.XP,
		Level:            p.Level().Int(),
		CurrentStreak:    current,
		CompletedAt:      a.CompletedAt,
	}, nil
}
