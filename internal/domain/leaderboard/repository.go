package leaderboard

import "context"

// Cache stores ranked boards for cacheable sort keys. A miss returns
// (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key SortKey) ([]*Entry, bool, error)
	Set(ctx context.Context, key SortKey, entries []*Entry) error
	Invalidate(ctx context.Context) error
}
