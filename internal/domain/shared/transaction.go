package shared

import "context"

// Transactor runs fn as one atomic unit against the store. Repositories
// called with the ctx passed to fn join the transaction; if fn returns an
// error every write made through that ctx is rolled back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
