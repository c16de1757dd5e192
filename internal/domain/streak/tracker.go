// Package streak derives streak statistics from a profile's activity dates.
//
// The activity log is the only source of truth. Profile.streak is a cache of
// Summary.CurrentStreak and must never feed back into a decision.
package streak

import (
	"fmt"
	"sort"

	"github.com/alem-hub/alem-quest/pkg/timeutil"
)

// Policy decides when a missing "today" breaks the current streak.
type Policy string

const (
	// PolicyGrace keeps the streak alive until today has ended: when today
	// has no activity yet, counting starts from yesterday.
	PolicyGrace Policy = "grace"

	// PolicyStrict breaks the streak as soon as today has no activity.
	PolicyStrict Policy = "strict"
)

// ParsePolicy parses a policy name. Empty means PolicyGrace.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyGrace:
		return PolicyGrace, nil
	case PolicyStrict:
		return PolicyStrict, nil
	}
	return "", fmt.Errorf("streak: unknown policy %q", s)
}

// Summary is the derived streak state of one profile.
type Summary struct {
	CurrentStreak   int             `json:"current_streak"`
	LongestStreak   int             `json:"longest_streak"`
	TotalActiveDays int             `json:"total_active_days"`
	MarkedDates     []timeutil.Date `json:"marked_dates"`
	LastActiveDate  *timeutil.Date  `json:"last_active_date,omitempty"`

	// AtRisk is set when the streak is only alive through the grace day.
	AtRisk bool `json:"at_risk"`
}

// Tracker computes streak summaries under one policy. Every component that
// needs a streak uses the same Tracker so the policy is applied uniformly.
type Tracker struct {
	policy Policy
}

// NewTracker creates a tracker.
func NewTracker(policy Policy) *Tracker {
	if policy == "" {
		policy = PolicyGrace
	}
	return &Tracker{policy: policy}
}

// Policy returns the tracker's policy.
func (t *Tracker) Policy() Policy {
	return t.policy
}

// Compute reduces dates to distinct calendar days and derives the summary
// as of today. Dates after today still count toward totals and the longest
// run but never toward the current streak.
func (t *Tracker) Compute(dates []timeutil.Date, today timeutil.Date) Summary {
	set := make(map[timeutil.Date]struct{}, len(dates))
	for _, d := range dates {
		if d.IsZero() {
			continue
		}
		set[d] = struct{}{}
	}

	marked := make([]timeutil.Date, 0, len(set))
	for d := range set {
		marked = append(marked, d)
	}
	sort.Slice(marked, func(i, j int) bool { return marked[i].Before(marked[j]) })

	s := Summary{
		TotalActiveDays: len(marked),
		MarkedDates:     marked,
		LongestStreak:   longestRun(marked),
	}
	if len(marked) > 0 {
		last := marked[len(marked)-1]
		s.LastActiveDate = &last
	}

	cursor := today
	if _, ok := set[today]; !ok && t.policy == PolicyGrace {
		cursor = today.AddDays(-1)
		s.AtRisk = true
	}
	for {
		if _, ok := set[cursor]; !ok {
			break
		}
		s.CurrentStreak++
		cursor = cursor.AddDays(-1)
	}
	if s.CurrentStreak == 0 {
		s.AtRisk = false
	}
	return s
}

// longestRun returns the longest run of consecutive days in sorted dates.
func longestRun(sorted []timeutil.Date) int {
	if len(sorted) == 0 {
		return 0
	}
	longest, run := 1, 1
	for i := 1; i < len(sorted); i++ {
		if timeutil.DaysBetween(sorted[i-1], sorted[i]) == 1 {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}
