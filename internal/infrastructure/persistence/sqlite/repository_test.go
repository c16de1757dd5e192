package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-quest/internal/domain/activity"
	"github.com/alem-hub/alem-quest/internal/domain/challenge"
	"github.com/alem-hub/alem-quest/internal/domain/lesson"
	"github.com/alem-hub/alem-quest/internal/domain/personality"
	"github.com/alem-hub/alem-quest/internal/domain/profile"
	"github.com/alem-hub/alem-quest/internal/domain/quiz"
	"github.com/alem-hub/alem-quest/internal/domain/shared"
	"github.com/alem-hub/alem-quest/pkg/timeutil"
)

var day = timeutil.MustParseDate("2024-01-01")

func openTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := Open(MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func createProfile(t *testing.T, db *Database, id string) {
	t.Helper()
	p, err := profile.NewProfile(shared.ProfileID(id), "Learner "+id, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, NewProfileRepository(db).Create(context.Background(), p))
}

func newAttempt(profileID, quizID string, single bool) *quiz.Attempt {
	return &quiz.Attempt{
		ID:             uuid.NewString(),
		SubmissionID:   uuid.NewString(),
		ProfileID:      shared.ProfileID(profileID),
		QuizID:         shared.QuizID(quizID),
		Score:          8,
		TotalQuestions: 10,
		XPEarned:       110,
		Passed:         true,
		SingleAttempt:  single,
		ActivityDate:   day,
		CompletedAt:    time.Now().UTC(),
	}
}

func TestProfileRepository(t *testing.T) {
	db := openTestDB(t)
	repo := NewProfileRepository(db)
	ctx := context.Background()

	createProfile(t, db, "p1")

	err := repo.Create(ctx, &profile.Profile{ID: "p1", DisplayName: "dup", CreatedAt: time.Now(), UpdatedAt: time.Now()})
	assert.True(t, shared.IsConflict(err), "got %v", err)

	updated, err := repo.Increment(ctx, "p1", profile.Increment{XP: 30, CompletedQuizzes: 1})
	require.NoError(t, err)
	assert.Equal(t, 30, updated.XP)
	assert.Equal(t, 1, updated.CompletedQuizzes)

	_, err = repo.Increment(ctx, "p1", profile.Increment{XP: -5})
	assert.True(t, shared.IsInvariantViolation(err))

	require.NoError(t, repo.SetStreak(ctx, "p1", 4))
	got, err := repo.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 4, got.Streak)
	assert.Equal(t, 30, got.XP)

	_, err = repo.GetByID(ctx, "missing")
	assert.True(t, shared.IsNotFound(err))
	assert.True(t, shared.IsNotFound(repo.SetStreak(ctx, "missing", 1)))

	createProfile(t, db, "a0")
	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, shared.ProfileID("a0"), all[0].ID)
}

func TestAttemptRepository_SingleAttemptUniqueness(t *testing.T) {
	db := openTestDB(t)
	repo := NewAttemptRepository(db)
	ctx := context.Background()
	createProfile(t, db, "p1")

	first := newAttempt("p1", "personality", true)
	first.PersonalityType = personality.TypeBalanced
	require.NoError(t, repo.Insert(ctx, first))

	err := repo.Insert(ctx, newAttempt("p1", "personality", true))
	assert.True(t, shared.IsConflict(err), "got %v", err)

	attempts, err := repo.ListAttempts(ctx, "p1", "personality")
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, personality.TypeBalanced, attempts[0].PersonalityType)
	assert.Equal(t, day, attempts[0].ActivityDate)
}

func TestAttemptRepository_MultiAttemptAndSubmissionKey(t *testing.T) {
	db := openTestDB(t)
	repo := NewAttemptRepository(db)
	ctx := context.Background()
	createProfile(t, db, "p1")

	a1 := newAttempt("p1", "algebra", false)
	require.NoError(t, repo.Insert(ctx, a1))
	require.NoError(t, repo.Insert(ctx, newAttempt("p1", "algebra", false)))

	dup := newAttempt("p1", "algebra", false)
	dup.SubmissionID = a1.SubmissionID
	assert.True(t, shared.IsConflict(repo.Insert(ctx, dup)))

	attempts, err := repo.ListAttempts(ctx, "p1", "algebra")
	require.NoError(t, err)
	assert.Len(t, attempts, 2)

	got, err := repo.GetBySubmission(ctx, a1.SubmissionID)
	require.NoError(t, err)
	assert.Equal(t, a1.ID, got.ID)

	_, err = repo.GetBySubmission(ctx, "nope")
	assert.True(t, shared.IsNotFound(err))
}

func TestActivityRepository(t *testing.T) {
	db := openTestDB(t)
	repo := NewActivityRepository(db)
	ctx := context.Background()
	createProfile(t, db, "p1")

	for _, spec := range []struct {
		date timeutil.Date
		typ  activity.Type
	}{
		{day, activity.TypeQuiz},
		{day.AddDays(-1), activity.TypeLesson},
		{day, activity.TypeLesson},
	} {
		e, err := activity.NewEntry("p1", spec.date, spec.typ, 0, "ref", time.Now().UTC())
		require.NoError(t, err)
		require.NoError(t, repo.Append(ctx, e))
	}

	all, err := repo.ListByProfile(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, day.AddDays(-1), all[0].ActivityDate)

	onDay, err := repo.ListByProfileOn(ctx, "p1", day)
	require.NoError(t, err)
	assert.Len(t, onDay, 2)
	assert.True(t, activity.HasTypesOn(onDay, day, activity.TypeLesson, activity.TypeQuiz))
}

func TestChallengeRepository(t *testing.T) {
	db := openTestDB(t)
	repo := NewChallengeRepository(db)
	ctx := context.Background()
	createProfile(t, db, "p1")

	for _, c := range challenge.DefaultCatalog() {
		c := c
		require.NoError(t, repo.Upsert(ctx, &c))
	}
	catalog, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, catalog, len(challenge.DefaultCatalog()))

	c, err := repo.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, challenge.KindDailyStreak, c.Kind)

	_, err = repo.Get(ctx, 999)
	assert.True(t, shared.IsNotFound(err))

	completion := &challenge.Completion{ProfileID: "p1", ChallengeID: 1, CompletedDate: day, XPAwarded: 10, CreatedAt: time.Now().UTC()}
	require.NoError(t, repo.InsertCompletion(ctx, completion))
	assert.True(t, shared.IsConflict(repo.InsertCompletion(ctx, completion)))

	next := *completion
	next.CompletedDate = day.AddDays(1)
	require.NoError(t, repo.InsertCompletion(ctx, &next))

	list, err := repo.ListCompletions(ctx, "p1", day)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestLessonRepository(t *testing.T) {
	db := openTestDB(t)
	repo := NewLessonRepository(db)
	ctx := context.Background()
	createProfile(t, db, "p1")

	c := &lesson.Completion{ProfileID: "p1", LessonID: "intro", XPAwarded: 20, ActivityDate: day, CompletedAt: time.Now().UTC()}
	require.NoError(t, repo.Insert(ctx, c))
	assert.True(t, shared.IsConflict(repo.Insert(ctx, c)))

	got, err := repo.Get(ctx, "p1", "intro")
	require.NoError(t, err)
	assert.Equal(t, 20, got.XPAwarded)

	_, err = repo.Get(ctx, "p1", "other")
	assert.True(t, shared.IsNotFound(err))
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	profiles := NewProfileRepository(db)
	ctx := context.Background()
	createProfile(t, db, "p1")

	boom := errors.New("boom")
	err := db.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := profiles.Increment(ctx, "p1", profile.Increment{XP: 100}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	p, err := profiles.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.XP)

	require.NoError(t, db.WithinTx(ctx, func(ctx context.Context) error {
		_, err := profiles.Increment(ctx, "p1", profile.Increment{XP: 100})
		return err
	}))
	p, err = profiles.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 100, p.XP)
}
