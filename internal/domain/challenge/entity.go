// Package challenge contains the challenge catalog and the completion ledger.
// A challenge can be completed at most once per profile per calendar day.
package challenge

import (
	"fmt"
	"time"

	"github.com/alem-hub/alem-quest/internal/domain/shared"
	"github.com/alem-hub/alem-quest/pkg/timeutil"
)

// Kind selects the claim rules of a challenge.
type Kind string

const (
	// KindStandard can be claimed at any time.
	KindStandard Kind = "standard"

	// KindDailyStreak requires at least one lesson and one quiz entry in the
	// activity log on the claim date. Checked at claim time only.
	KindDailyStreak Kind = "daily_streak"
)

// IsValid checks if the kind is known.
func (k Kind) IsValid() bool {
	return k == KindStandard || k == KindDailyStreak
}

// Challenge is a catalog entry.
type Challenge struct {
	ID       int64
	Code     string
	Title    string
	Kind     Kind
	XPReward int
	Active   bool
}

// Validate checks catalog invariants.
func (c *Challenge) Validate() error {
	switch {
	case c.ID <= 0:
		return shared.NewDomainError("challenge", "Validate", shared.ErrInvalidID, "challenge id must be positive")
	case c.Code == "":
		return shared.NewDomainError("challenge", "Validate", shared.ErrValidation, "challenge code is required")
	case !c.Kind.IsValid():
		return shared.NewDomainError("challenge", "Validate", shared.ErrValidation, fmt.Sprintf("unknown challenge kind %q", c.Kind))
	case c.XPReward < 0:
		return shared.NewDomainError("challenge", "Validate", shared.ErrNegativeValue, "xp reward cannot be negative")
	}
	return nil
}

// Completion is one row of the ledger, unique on (profile, challenge, date).
type Completion struct {
	ProfileID     shared.ProfileID
	ChallengeID   int64
	CompletedDate timeutil.Date
	XPAwarded     int
	CreatedAt     time.Time
}

// SourceRef is the activity-log reference for a completion.
func (c *Completion) SourceRef() string {
	return fmt.Sprintf("challenge:%d", c.ChallengeID)
}

// DefaultCatalog is seeded into empty stores.
func DefaultCatalog() []Challenge {
	return []Challenge{
		{ID: 1, Code: "daily-login", Title: "Show up today", Kind: KindStandard, XPReward: 10, Active: true},
		{ID: 2, Code: "daily-streak", Title: "Lesson and quiz in one day", Kind: KindDailyStreak, XPReward: 50, Active: true},
		{ID: 3, Code: "weekend-warrior", Title: "Study on the weekend", Kind: KindStandard, XPReward: 25, Active: true},
	}
}
