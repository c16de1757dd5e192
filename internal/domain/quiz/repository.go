package quiz

import (
	"context"

	"github.com/alem-hub/alem-quest/internal/domain/shared"
)

// Repository defines the interface for quiz attempt persistence.
type Repository interface {
	// ListAttempts returns every attempt of a profile at a quiz, oldest first.
	ListAttempts(ctx context.Context, profileID shared.ProfileID, quizID shared.QuizID) ([]*Attempt, error)

	// GetBySubmission returns the attempt stored under a submission id or
	// ErrAttemptNotFound.
	GetBySubmission(ctx context.Context, submissionID string) (*Attempt, error)

	// Insert stores a new attempt. Returns an ErrConflict error when a
	// single-attempt row already exists for (profile, quiz) or the
	// submission id is taken.
	Insert(ctx context.Context, a *Attempt) error
}
