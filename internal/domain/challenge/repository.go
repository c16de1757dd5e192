package challenge

import (
	"context"

	"github.com/alem-hub/alem-quest/internal/domain/shared"
	"github.com/alem-hub/alem-quest/pkg/timeutil"
)

// Repository defines the interface for the challenge catalog and ledger.
type Repository interface {
	// Get returns a catalog entry or ErrChallengeNotFound.
	Get(ctx context.Context, id int64) (*Challenge, error)

	// List returns the active catalog ordered by id.
	List(ctx context.Context) ([]*Challenge, error)

	// Upsert creates or replaces a catalog entry.
	Upsert(ctx context.Context, c *Challenge) error

	// ListCompletions returns a profile's completions on one date.
	ListCompletions(ctx context.Context, profileID shared.ProfileID, date timeutil.Date) ([]*Completion, error)

	// InsertCompletion stores a completion. Returns an ErrConflict error when
	// (profile, challenge, date) already exists.
	InsertCompletion(ctx context.Context, c *Completion) error
}
