// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/alem-hub/alem-quest/internal/domain/challenge"
	"github.com/alem-hub/alem-quest/internal/domain/profile"
	"github.com/alem-hub/alem-quest/internal/domain/shared"
	"github.com/alem-hub/alem-quest/internal/infrastructure/persistence"
	"github.com/alem-hub/alem-quest/internal/infrastructure/persistence/sqlite"
)

// OpenTestStore opens an in-memory SQLite store seeded with the default
// challenge catalog.
func OpenTestStore(t *testing.T) *persistence.Store {
	t.Helper()

	db, err := sqlite.Open(sqlite.MemoryDSN)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	store := persistence.NewSQLiteStore(db)
	t.Cleanup(store.Close)

	if err := store.SeedChallenges(context.Background(), challenge.DefaultCatalog()); err != nil {
		t.Fatalf("seed challenges: %v", err)
	}
	return store
}

// CreateProfile stores a fresh profile.
func CreateProfile(t *testing.T, store *persistence.Store, id, name string) *profile.Profile {
	t.Helper()

	p, err := profile.NewProfile(shared.ProfileID(id), name, time.Now().UTC())
	if err != nil {
		t.Fatalf("new profile: %v", err)
	}
	if err := store.Profiles.Create(context.Background(), p); err != nil {
		t.Fatalf("create profile: %v", err)
	}
	return p
}
