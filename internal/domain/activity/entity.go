// Package activity contains the activity log: one append-only entry per
// learning action, keyed by calendar day. The log is the authoritative source
// for streak computation.
package activity

import (
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/alem-quest/internal/domain/shared"
	"github.com/alem-hub/alem-quest/pkg/timeutil"
)

// Type is the kind of action that produced an entry.
type Type string

const (
	TypeLesson Type = "lesson"
	TypeQuiz   Type = "quiz"
	TypeOther  Type = "other"
)

// IsValid checks if the activity type is known.
func (t Type) IsValid() bool {
	switch t {
	case TypeLesson, TypeQuiz, TypeOther:
		return true
	}
	return false
}

// Entry is one row of the activity log.
type Entry struct {
	ID           string
	ProfileID    shared.ProfileID
	ActivityDate timeutil.Date
	Type         Type
	XPEarned     int

	// SourceRef points at what produced the entry: an attempt id,
	// "challenge:<id>" or "lesson:<id>".
	SourceRef string
	CreatedAt time.Time
}

// NewEntry creates a validated log entry with a fresh id.
func NewEntry(profileID shared.ProfileID, date timeutil.Date, typ Type, xp int, sourceRef string, now time.Time) (*Entry, error) {
	if !profileID.IsValid() {
		return nil, shared.ErrInvalidProfileID
	}
	if !typ.IsValid() {
		return nil, shared.NewDomainError("activity", "NewEntry", shared.ErrValidation, "unknown activity type")
	}
	if date.IsZero() {
		return nil, shared.NewDomainError("activity", "NewEntry", shared.ErrValidation, "activity date is required")
	}
	if xp < 0 {
		return nil, shared.NewDomainError("activity", "NewEntry", shared.ErrNegativeValue, "xp cannot be negative")
	}
	return &Entry{
		ID:           uuid.NewString(),
		ProfileID:    profileID,
		ActivityDate: date,
		Type:         typ,
		XPEarned:     xp,
		SourceRef:    sourceRef,
		CreatedAt:    now,
	}, nil
}

// Dates projects entries onto their activity dates.
func Dates(entries []*Entry) []timeutil.Date {
	out := make([]timeutil.Date, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ActivityDate)
	}
	return out
}

// HasTypesOn reports whether entries contain every one of types on date.
func HasTypesOn(entries []*Entry, date timeutil.Date, types ...Type) bool {
	seen := make(map[Type]bool, len(types))
	for _, e := range entries {
		if e.ActivityDate == date {
			seen[e.Type] = true
		}
	}
	for _, t := range types {
		if !seen[t] {
			return false
		}
	}
	return true
}
