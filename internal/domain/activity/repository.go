package activity

import (
	"context"

	"github.com/alem-hub/alem-quest/internal/domain/shared"
	"github.com/alem-hub/alem-quest/pkg/timeutil"
)

// Repository defines the interface for activity log persistence.
// This interface is implemented by the infrastructure layer.
type Repository interface {
	// Append stores a new entry. Entries are never updated or deleted.
	Append(ctx context.Context, entry *Entry) error

	// ListByProfile returns the full log of a profile ordered by date.
	ListByProfile(ctx context.Context, profileID shared.ProfileID) ([]*Entry, error)

	// ListByProfileOn returns the entries of a profile for one day.
	ListByProfileOn(ctx context.Context, profileID shared.ProfileID, date timeutil.Date) ([]*Entry, error)
}
