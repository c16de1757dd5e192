// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// ProfileID identifies a learner profile.
type ProfileID string

// maxIDLength bounds every external identifier accepted by the engine.
const maxIDLength = 128

// IsValid checks if the profile ID is non-empty and reasonably sized.
func (p ProfileID) IsValid() bool {
	return validID(string(p))
}

// String returns the string representation.
func (p ProfileID) String() string {
	return string(p)
}

// NewProfileID creates a ProfileID with validation.
func NewProfileID(id string) (ProfileID, error) {
	id = strings.TrimSpace(id)
	if !validID(id) {
		return "", ErrInvalidProfileID
	}
	return ProfileID(id), nil
}

// QuizID identifies a quiz definition.
type QuizID string

// IsValid checks if the quiz ID is non-empty and reasonably sized.
func (q QuizID) IsValid() bool {
	return validID(string(q))
}

// String returns the string representation.
func (q QuizID) String() string {
	return string(q)
}

// LessonID identifies a lesson.
type LessonID string

// IsValid checks if the lesson ID is non-empty and reasonably sized.
func (l LessonID) IsValid() bool {
	return validID(string(l))
}

// String returns the string representation.
func (l LessonID) String() string {
	return string(l)
}

func validID(id string) bool {
	return id != "" && len(id) <= maxIDLength
}

// ═══════════════════════════════════════════════════════════════════════════
// XP Value Object (Experience Points)
// ═══════════════════════════════════════════════════════════════════════════

// XP represents experience points on a profile.
type XP int

// Int returns the underlying int value.
func (x XP) Int() int {
	return int(x)
}

// Level derives the display level: Level = floor(sqrt(XP / 100)) + 1.
// Level is never used for scoring decisions.
func (x XP) Level() Level {
	if x <= 0 {
		return 1
	}
	level := 1
	for 100*level*level <= int(x) {
		level++
	}
	return Level(level)
}

// ═══════════════════════════════════════════════════════════════════════════
// Level Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Level is the display level derived from XP.
type Level int

// Int returns the underlying int value.
func (l Level) Int() int {
	return int(l)
}

// RequiredXP returns the total XP required to reach this level.
func (l Level) RequiredXP() int {
	if l <= 1 {
		return 0
	}
	n := int(l) - 1
	return 100 * n * n
}

// ═══════════════════════════════════════════════════════════════════════════
// Side Effects
// ═══════════════════════════════════════════════════════════════════════════

// SideEffectStatus describes how a best-effort step ended.
type SideEffectStatus string

const (
	// SideEffectSucceeded means the step completed.
	SideEffectSucceeded SideEffectStatus = "succeeded"
	// SideEffectIgnored means the step failed but the caller's result stands.
	SideEffectIgnored SideEffectStatus = "ignored"
	// SideEffectSkipped means there was nothing to do.
	SideEffectSkipped SideEffectStatus = "skipped"
)

// SideEffect records the outcome of a best-effort step that runs after the
// primary write (streak reconcile, event publish, cache invalidation).
// Failures that must reach the caller are returned as errors instead.
type SideEffect struct {
	Name   string           `json:"name"`
	Status SideEffectStatus `json:"status"`
	Err    error            `json:"-"`
}

// Error returns the failure text for ignored steps.
func (s SideEffect) Error() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}

// NewSideEffect classifies err for a named step.
func NewSideEffect(name string, err error) SideEffect {
	if err != nil {
		return SideEffect{Name: name, Status: SideEffectIgnored, Err: err}
	}
	return SideEffect{Name: name, Status: SideEffectSucceeded}
}

// SkippedSideEffect records a step that had nothing to do.
func SkippedSideEffect(name string) SideEffect {
	return SideEffect{Name: name, Status: SideEffectSkipped}
}
