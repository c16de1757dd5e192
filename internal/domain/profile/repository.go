package profile

import (
	"context"

	"github.com/alem-hub/alem-quest/internal/domain/shared"
)

// Repository defines the interface for profile persistence.
type Repository interface {
	// Create stores a new profile. Returns ErrConflict if the id is taken.
	Create(ctx context.Context, p *Profile) error

	// GetByID returns a profile or ErrProfileNotFound.
	GetByID(ctx context.Context, id shared.ProfileID) (*Profile, error)

	// GetForUpdate returns a profile and, inside a transaction, locks its row
	// until the transaction ends. Concurrent scoring of one profile serializes here.
	GetForUpdate(ctx context.Context, id shared.ProfileID) (*Profile, error)

	// Increment applies inc atomically and returns the updated profile.
	Increment(ctx context.Context, id shared.ProfileID, inc Increment) (*Profile, error)

	// SetStreak overwrites the cached streak.
	SetStreak(ctx context.Context, id shared.ProfileID, streak int) error

	// List returns all profiles ordered by id.
	List(ctx context.Context) ([]*Profile, error)
}
