package guard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-quest/internal/domain/shared"
	"github.com/alem-hub/alem-quest/pkg/circuitbreaker"
	"github.com/alem-hub/alem-quest/pkg/logger"
)

func testGuard() *Guard {
	return New(Config{
		MaxAttempts:      3,
		InitialDelay:     time.Millisecond,
		MaxDelay:         time.Millisecond,
		FailureThreshold: 5,
		OpenTimeout:      time.Minute,
	}, logger.Discard())
}

func TestDo_RetriesTransientFailures(t *testing.T) {
	g := testGuard()
	calls := 0
	err := g.Do(context.Background(), "Insert", func(context.Context) error {
		calls++
		if calls < 3 {
			return shared.StoreUnavailable("quiz", "Insert", errors.New("connection reset"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_PassesDomainErrorsThrough(t *testing.T) {
	g := testGuard()
	for _, domainErr := range []error{shared.ErrNoQuestions, shared.ErrChallengeNotFound, shared.WrapError("quiz", "Insert", shared.ErrConflict, "dup", nil)} {
		calls := 0
		err := g.Do(context.Background(), "op", func(context.Context) error {
			calls++
			return domainErr
		})
		assert.ErrorIs(t, err, domainErr)
		assert.Equal(t, 1, calls)
	}
	assert.Equal(t, circuitbreaker.StateClosed, g.State())
	assert.NoError(t, g.Check(context.Background()))
}

func TestDo_OpenCircuitFailsFast(t *testing.T) {
	g := New(Config{MaxAttempts: 1, FailureThreshold: 2, OpenTimeout: time.Minute}, logger.Discard())
	down := shared.StoreUnavailable("profile", "Get", errors.New("refused"))
	for i := 0; i < 2; i++ {
		_ = g.Do(context.Background(), "Get", func(context.Context) error { return down })
	}
	require.Equal(t, circuitbreaker.StateOpen, g.State())
	assert.EqualError(t, g.Check(context.Background()), "store circuit is open")

	called := false
	err := g.Do(context.Background(), "Get", func(context.Context) error { called = true; return nil })
	assert.False(t, called)
	assert.True(t, shared.IsRetryable(err))
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
}

func TestCall(t *testing.T) {
	v, err := Call(context.Background(), testGuard(), "Get", func(context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}
