// Package scoring computes the XP award for a quiz completion.
//
// The calculator is a pure value built from Config. It never reads the store
// and never returns a negative award. All percent comparisons are done with
// integer cross-multiplication so 8/10 and 4/5 compare equal and floors are
// exact; the float percents on Award are for display only.
package scoring

import (
	"github.com/alem-hub/alem-quest/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Default scoring constants.
const (
	DefaultBaseXP       = 100
	DefaultPerfectBonus = 50

	// DefaultTimeBonusPerMille is 0.167 XP per remaining second (~10 XP/min),
	// stored per mille so floor(seconds * rate) is computed exactly.
	DefaultTimeBonusPerMille = 167

	DefaultMaxTimeBonus = 50
	DefaultPassPercent  = 80
)

// Config holds the scoring constants.
type Config struct {
	BaseXP            int
	PerfectBonus      int
	TimeBonusPerMille int
	MaxTimeBonus      int
	PassPercent       int
}

// DefaultConfig returns the production scoring constants.
func DefaultConfig() Config {
	return Config{
		BaseXP:            DefaultBaseXP,
		PerfectBonus:      DefaultPerfectBonus,
		TimeBonusPerMille: DefaultTimeBonusPerMille,
		MaxTimeBonus:      DefaultMaxTimeBonus,
		PassPercent:       DefaultPassPercent,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// TYPES
// ══════════════════════════════════════════════════════════════════════════════

// Result is a single quiz outcome being scored.
type Result struct {
	Score                int
	TotalQuestions       int
	TimeRemainingSeconds int
}

// PriorScore is one earlier attempt at the same quiz.
type PriorScore struct {
	Score          int
	TotalQuestions int
}

// Award is the outcome of ComputeAward.
type Award struct {
	XPEarned     int
	Passed       bool
	PerfectScore bool
	TimeBonus    int

	// ScorePercent and PreviousBestPercent are reporting values.
	ScorePercent        float64
	PreviousBestPercent float64
	HasHistory          bool
}

// ══════════════════════════════════════════════════════════════════════════════
// CALCULATOR
// ══════════════════════════════════════════════════════════════════════════════

// Calculator computes XP awards.
type Calculator struct {
	cfg Config
}

// NewCalculator creates a calculator. Non-positive fields fall back to defaults;
// PassPercent is clamped to [1, 100].
func NewCalculator(cfg Config) *Calculator {
	def := DefaultConfig()
	if cfg.BaseXP <= 0 {
		cfg.BaseXP = def.BaseXP
	}
	if cfg.PerfectBonus < 0 {
		cfg.PerfectBonus = def.PerfectBonus
	}
	if cfg.TimeBonusPerMille < 0 {
		cfg.TimeBonusPerMille = def.TimeBonusPerMille
	}
	if cfg.MaxTimeBonus < 0 {
		cfg.MaxTimeBonus = def.MaxTimeBonus
	}
	if cfg.PassPercent <= 0 {
		cfg.PassPercent = def.PassPercent
	}
	if cfg.PassPercent > 100 {
		cfg.PassPercent = 100
	}
	return &Calculator{cfg: cfg}
}

// Config returns the effective constants.
func (c *Calculator) Config() Config {
	return c.cfg
}

// Validate rejects malformed results before any scoring happens.
func Validate(r Result) error {
	switch {
	case r.TotalQuestions <= 0:
		return shared.ErrNoQuestions
	case r.Score < 0:
		return shared.ErrNegativeScore
	case r.Score > r.TotalQuestions:
		return shared.ErrScoreOutOfRange
	case r.TimeRemainingSeconds < 0:
		return shared.ErrNegativeTime
	}
	return nil
}

// ComputeAward scores r against the profile's earlier attempts at the same quiz.
//
//   - not passed: 0
//   - first attempt: BaseXP + timeBonus (+ PerfectBonus when perfect)
//   - reattempt not beating the previous best: 0
//   - improving reattempt: points(new) - points(best) + timeBonus
//     (+ PerfectBonus when perfect and the previous best was not)
func (c *Calculator) ComputeAward(r Result, history []PriorScore) (Award, error) {
	if err := Validate(r); err != nil {
		return Award{}, err
	}

	award := Award{
		Passed:       r.Score*100 >= c.cfg.PassPercent*r.TotalQuestions,
		PerfectScore: r.Score == r.TotalQuestions,
		ScorePercent: percent(r.Score, r.TotalQuestions),
	}

	best, ok := bestOf(history)
	if ok {
		award.HasHistory = true
		award.PreviousBestPercent = percent(best.Score, best.TotalQuestions)
	}

	if !award.Passed {
		return award, nil
	}

	if !ok {
		award.TimeBonus = c.timeBonus(r.TimeRemainingSeconds)
		award.XPEarned = c.cfg.BaseXP + award.TimeBonus
		if award.PerfectScore {
			award.XPEarned += c.cfg.PerfectBonus
		}
		return award, nil
	}

	// score/total <= best.score/best.total
	if r.Score*best.TotalQuestions <= best.Score*r.TotalQuestions {
		return award, nil
	}

	delta := c.points(r.Score, r.TotalQuestions) - c.points(best.Score, best.TotalQuestions)
	if delta < 0 {
		delta = 0
	}
	award.TimeBonus = c.timeBonus(r.TimeRemainingSeconds)
	award.XPEarned = delta + award.TimeBonus
	if award.PerfectScore && best.Score < best.TotalQuestions {
		award.XPEarned += c.cfg.PerfectBonus
	}
	return award, nil
}

// points is floor(score/total * BaseXP).
func (c *Calculator) points(score, total int) int {
	return score * c.cfg.BaseXP / total
}

// timeBonus is floor(seconds * rate), clamped to [0, MaxTimeBonus].
func (c *Calculator) timeBonus(seconds int) int {
	if seconds <= 0 {
		return 0
	}
	bonus := seconds * c.cfg.TimeBonusPerMille / 1000
	if bonus > c.cfg.MaxTimeBonus {
		return c.cfg.MaxTimeBonus
	}
	return bonus
}

// bestOf returns the highest-ratio prior score. Entries without questions
// are ignored.
func bestOf(history []PriorScore) (PriorScore, bool) {
	var best PriorScore
	found := false
	for _, h := range history {
		if h.TotalQuestions <= 0 || h.Score < 0 {
			continue
		}
		if !found || h.Score*best.TotalQuestions > best.Score*h.TotalQuestions {
			best = h
			found = true
		}
	}
	return best, found
}

func percent(score, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(score) * 100 / float64(total)
}
