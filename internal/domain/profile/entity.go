// Package profile contains the learner profile aggregate: the XP balance,
// completion counters and the cached streak.
package profile

import (
	"strings"
	"time"

	"github.com/alem-hub/alem-quest/internal/domain/shared"
)

// maxDisplayNameLength bounds display names in runes.
const maxDisplayNameLength = 64

// Profile is the progress state of one learner. It is mutated only through
// additive increments and the streak reconcile write.
type Profile struct {
	ID          shared.ProfileID
	DisplayName string
	XP          int

	// Streak is advisory. It mirrors the last computed current streak and is
	// never used for ranking or unlocking.
	Streak int

	CompletedLessons int
	CompletedQuizzes int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewProfile creates an empty profile.
func NewProfile(id shared.ProfileID, displayName string, now time.Time) (*Profile, error) {
	if !id.IsValid() {
		return nil, shared.ErrInvalidProfileID
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, shared.NewDomainError("profile", "Create", shared.ErrValidation, "display name is required")
	}
	if len([]rune(displayName)) > maxDisplayNameLength {
		return nil, shared.NewDomainError("profile", "Create", shared.ErrValueOutOfRange, "display name is too long")
	}
	return &Profile{
		ID:          id,
		DisplayName: displayName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Level returns the display level derived from XP.
func (p *Profile) Level() shared.Level {
	return shared.XP(p.XP).Level()
}

// Increment is an additive update to a profile. Every delta must be
// non-negative so XP can never decrease through scoring.
type Increment struct {
	XP               int
	CompletedQuizzes int
	CompletedLessons int
}

// IsZero reports whether the increment changes nothing.
func (i Increment) IsZero() bool {
	return i.XP == 0 && i.CompletedQuizzes == 0 && i.CompletedLessons == 0
}

// Validate rejects negative deltas. A negative XP delta is an invariant
// violation, not a user error: scoring never produces one.
func (i Increment) Validate() error {
	if i.XP < 0 {
		return shared.ErrNegativeXP
	}
	if i.CompletedQuizzes < 0 || i.CompletedLessons < 0 {
		return shared.NewDomainError("profile", "Increment", shared.ErrInvariantViolation, "counter delta cannot be negative")
	}
	return nil
}
