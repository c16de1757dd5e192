package command

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alem-hub/alem-quest/internal/application/guard"
	"github.com/alem-hub/alem-quest/internal/domain/profile"
	"github.com/alem-hub/alem-quest/internal/domain/shared"
	"github.com/alem-hub/alem-quest/internal/domain/streak"
	"github.com/alem-hub/alem-quest/internal/infrastructure/persistence"
	"github.com/alem-hub/alem-quest/internal/testutil"
	"github.com/alem-hub/alem-quest/pkg/logger"
	"github.com/alem-hub/alem-quest/pkg/timeutil"
)

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, timeutil.AlmatyTZ)

// recordingPublisher collects published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
	err    error
}

func (p *recordingPublisher) Publish(event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []shared.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]shared.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

// flakyProfiles fails GetForUpdate with a transient error a fixed number of
// times before delegating.
type flakyProfiles struct {
	profile.Repository
	failures atomic.Int32
}

func (f *flakyProfiles) GetForUpdate(ctx context.Context, id shared.ProfileID) (*profile.Profile, error) {
	if f.failures.Add(-1) >= 0 {
		return nil, shared.StoreUnavailable("profile", "GetForUpdate", errors.New("connection reset"))
	}
	return f.Repository.GetForUpdate(ctx, id)
}

type fixture struct {
	store     *persistence.Store
	publisher *recordingPublisher
	deps      Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := testutil.OpenTestStore(t)
	pub := &recordingPublisher{}
	return &fixture{
		store:     store,
		publisher: pub,
		deps:      depsFor(store, pub, timeutil.FixedClock{At: testNow}),
	}
}

func depsFor(store *persistence.Store, pub shared.EventPublisher, clock timeutil.Clock) Deps {
	return Deps{
		Profiles:   store.Profiles,
		Attempts:   store.Attempts,
		Activity:   store.Activity,
		Challenges: store.Challenges,
		Lessons:    store.Lessons,
		Tx:         store.Tx,
		Tracker:    streak.NewTracker(streak.PolicyGrace),
		Clock:      clock,
		Guard: guard.New(guard.Config{
			MaxAttempts:      3,
			InitialDelay:     time.Millisecond,
			MaxDelay:         time.Millisecond,
			FailureThreshold: 100,
			OpenTimeout:      time.Second,
		}, logger.Discard()),
		Publisher: pub,
		Logger:    logger.Discard(),
	}
}

func (f *fixture) at(t time.Time) Deps {
	d := f.deps
	d.Clock = timeutil.FixedClock{At: t}
	return d
}

func (f *fixture) profile(t *testing.T, id string) *profile.Profile {
	t.Helper()
	p, err := f.store.Profiles.GetByID(context.Background(), shared.ProfileID(id))
	if err != nil {
		t.Fatalf("get profile %s: %v", id, err)
	}
	return p
}
