// Package lesson records lesson completions. A lesson awards XP once per
// profile; repeats are reported as already completed.
package lesson

import (
	"context"
	"time"

	"github.com/alem-hub/alem-quest/internal/domain/shared"
	"github.com/alem-hub/alem-quest/pkg/timeutil"
)

// Completion is the first completion of a lesson by a profile.
type Completion struct {
	ProfileID    shared.ProfileID
	LessonID     shared.LessonID
	XPAwarded    int
	ActivityDate timeutil.Date
	CompletedAt  time.Time
}

// SourceRef is the activity-log reference for a completion.
func (c *Completion) SourceRef() string {
	return "lesson:" + c.LessonID.String()
}

// Repository defines the interface for lesson completion persistence.
type Repository interface {
	// Insert stores a completion. Returns an ErrConflict error when the
	// profile already completed the lesson.
	Insert(ctx context.Context, c *Completion) error

	// Get returns a stored completion or an ErrNotFound error.
	Get(ctx context.Context, profileID shared.ProfileID, lessonID shared.LessonID) (*Completion, error)
}
