// Package leaderboard contains the ranking rules. Ranking is a pure function
// over entries; the streak values it sorts by must already be recomputed
// from the activity log.
package leaderboard

import (
	"fmt"
	"sort"

	"github.com/alem-hub/alem-quest/internal/domain/shared"
)

// SortKey selects the ranking metric.
type SortKey string

const (
	SortByXP               SortKey = "xp"
	SortByStreak           SortKey = "streak"
	SortByCompletedLessons SortKey = "completed_lessons"
	SortByName             SortKey = "name"
)

// ParseSortKey parses a sort key. Empty means SortByXP.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(s); k {
	case "":
		return SortByXP, nil
	case SortByXP, SortByStreak, SortByCompletedLessons, SortByName:
		return k, nil
	}
	return "", shared.NewDomainError("leaderboard", "ParseSortKey", shared.ErrValidation,
		fmt.Sprintf("unknown sort key %q", s))
}

// SortKeys lists every supported key.
var SortKeys = []SortKey{SortByXP, SortByStreak, SortByCompletedLessons, SortByName}

// Cacheable reports whether rankings by this key may be served from cache.
// Streak rankings are always recomputed.
func (k SortKey) Cacheable() bool {
	return k != SortByStreak
}

// Entry is one ranked profile.
type Entry struct {
	Rank             int              `json:"rank"`
	ProfileID        shared.ProfileID `json:"profile_id"`
	DisplayName      string           `json:"display_name"`
	XP               int              `json:"xp"`
	Level            int              `json:"level"`
	Streak           int              `json:"streak"`
	CompletedLessons int              `json:"completed_lessons"`
	CompletedQuizzes int              `json:"completed_quizzes"`
}

// Rank orders entries in place by key and assigns 1-based ranks by position.
// Numeric keys sort descending, name ascending; ties are broken by profile
// id ascending so repeated queries and pages are stable.
func Rank(entries []*Entry, key SortKey) {
	less := lessFunc(key)
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if less(a, b) {
			return true
		}
		if less(b, a) {
			return false
		}
		return a.ProfileID < b.ProfileID
	})
	for i, e := range entries {
		e.Rank = i + 1
	}
}

func lessFunc(key SortKey) func(a, b *Entry) bool {
	switch key {
	case SortByStreak:
		return func(a, b *Entry) bool { return a.Streak > b.Streak }
	case SortByCompletedLessons:
		return func(a, b *Entry) bool { return a.CompletedLessons > b.CompletedLessons }
	case SortByName:
		return func(a, b *Entry) bool { return a.DisplayName < b.DisplayName }
	default:
		return func(a, b *Entry) bool { return a.XP > b.XP }
	}
}

// Page returns entries[offset:offset+limit] clamped to bounds. limit <= 0
// means no limit.
func Page(entries []*Entry, offset, limit int) []*Entry {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(entries) {
		return []*Entry{}
	}
	end := len(entries)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return entries[offset:end]
}
