// Package quiz contains quiz attempts. Attempts are append-only; a
// single-attempt quiz has at most one attempt per profile, enforced by the
// store's unique index.
package quiz

import (
	"time"

	"github.com/alem-hub/alem-quest/internal/domain/personality"
	"github.com/alem-hub/alem-quest/internal/domain/scoring"
	"github.com/alem-hub/alem-quest/internal/domain/shared"
	"github.com/alem-hub/alem-quest/pkg/timeutil"
)

// Attempt is one stored quiz submission.
type Attempt struct {
	ID string

	// SubmissionID is the caller's idempotency key. Retrying a submission
	// with the same key returns this attempt instead of appending another.
	SubmissionID string

	ProfileID            shared.ProfileID
	QuizID               shared.QuizID
	Score                int
	TotalQuestions       int
	TimeTakenSeconds     int
	TimeRemainingSeconds int
	XPEarned             int
	Passed               bool
	IsPerfect            bool
	SingleAttempt        bool
	PersonalityType      personality.Type // empty unless answers were classified
	ActivityDate         timeutil.Date
	CompletedAt          time.Time
}

// PriorScore projects the attempt for scoring history.
func (a *Attempt) PriorScore() scoring.PriorScore {
	return scoring.PriorScore{Score: a.Score, TotalQuestions: a.TotalQuestions}
}

// ScorePercent returns 100*score/total for display.
func (a *Attempt) ScorePercent() float64 {
	if a.TotalQuestions <= 0 {
		return 0
	}
	return float64(a.Score) * 100 / float64(a.TotalQuestions)
}

// History projects attempts for scoring.
func History(attempts []*Attempt) []scoring.PriorScore {
	out := make([]scoring.PriorScore, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, a.PriorScore())
	}
	return out
}
