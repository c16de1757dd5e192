package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-quest/internal/application/command"
	"github.com/alem-hub/alem-quest/internal/application/eventhandler"
	"github.com/alem-hub/alem-quest/internal/application/query"
	"github.com/alem-hub/alem-quest/internal/domain/scoring"
	"github.com/alem-hub/alem-quest/internal/domain/shared"
	"github.com/alem-hub/alem-quest/internal/domain/streak"
	"github.com/alem-hub/alem-quest/internal/infrastructure/messaging"
	"github.com/alem-hub/alem-quest/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/alem-quest/internal/interface/http/handlers"
	"github.com/alem-hub/alem-quest/internal/testutil"
	"github.com/alem-hub/alem-quest/pkg/logger"
	"github.com/alem-hub/alem-quest/pkg/timeutil"
)

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, timeutil.AlmatyTZ)

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *APIError       `json:"error"`
	Meta      *ResponseMeta   `json:"meta"`
	RequestID string          `json:"request_id"`
}

type testServer struct {
	server *Server
	mr     *miniredis.Miniredis
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := testutil.OpenTestStore(t)
	log := logger.Discard()
	clock := timeutil.FixedClock{At: testNow}
	tracker := streak.NewTracker(streak.PolicyGrace)

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	boards := redis.NewLeaderboardCache(redis.NewCacheFromClient(client), 0)

	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{Logger: log})
	t.Cleanup(func() { _ = bus.Close() })
	_, err := eventhandler.NewOnRankingChangedHandler(boards, log, eventhandler.DefaultRankingChangedConfig()).Register(bus)
	require.NoError(t, err)

	cmdDeps := command.Deps{
		Profiles:   store.Profiles,
		Attempts:   store.Attempts,
		Activity:   store.Activity,
		Challenges: store.Challenges,
		Lessons:    store.Lessons,
		Tx:         store.Tx,
		Tracker:    tracker,
		Clock:      clock,
		Publisher:  bus,
		Logger:     log,
	}
	queryDeps := query.Deps{
		Profiles: store.Profiles,
		Activity: store.Activity,
		Tracker:  tracker,
		Clock:    clock,
		Cache:    boards,
		Logger:   log,
	}

	health := handlers.NewCompositeHealthChecker("test")
	health.AddCheck("store", handlers.PingCheck(store), true)

	cfg := DefaultConfig()
	cfg.Version = "test"
	srv := NewServer(cfg, Dependencies{
		CreateProfile:  command.NewCreateProfileHandler(cmdDeps),
		SubmitAttempt:  command.NewSubmitAttemptHandler(cmdDeps, scoring.NewCalculator(scoring.DefaultConfig())),
		CompleteLesson: command.NewCompleteLessonHandler(cmdDeps, command.DefaultLessonXP),
		ClaimChallenge: command.NewClaimChallengeHandler(cmdDeps),
		GetProfile:     query.NewGetProfileHandler(queryDeps),
		GetStreak:      query.NewGetStreakHandler(queryDeps),
		GetLeaderboard: query.NewGetLeaderboardHandler(queryDeps, query.DefaultStreakConcurrency),
		HealthChecker:  health,
		Logger:         log,
	})
	return &testServer{server: srv, mr: mr}
}

func (ts *testServer) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(path, "/api/") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func decodeData(t *testing.T, env envelope, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func (ts *testServer) createProfile(t *testing.T, id, name string) {
	t.Helper()
	rec, _ := ts.do(t, http.MethodPost, "/api/v1/profiles", `{"profile_id":"`+id+`","display_name":"`+name+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILES
// ══════════════════════════════════════════════════════════════════════════════

func TestCreateProfile_Idempotent(t *testing.T) {
	ts := newTestServer(t)

	rec, env := ts.do(t, http.MethodPost, "/api/v1/profiles", `{"profile_id":"alice","display_name":"Alice"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, env.Success)
	assert.NotEmpty(t, env.RequestID)
	assert.Equal(t, env.RequestID, rec.Header().Get("X-Request-ID"))

	var created profileResponse
	decodeData(t, env, &created)
	assert.Equal(t, "alice", created.ProfileID)
	assert.Equal(t, "Alice", created.DisplayName)
	require.NotNil(t, created.Created)
	assert.True(t, *created.Created)

	rec, env = ts.do(t, http.MethodPost, "/api/v1/profiles", `{"profile_id":"alice","display_name":"Other"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var again profileResponse
	decodeData(t, env, &again)
	assert.Equal(t, "Alice", again.DisplayName)
	assert.False(t, *again.Created)
}

func TestCreateProfile_BadBody(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"empty", ""},
		{"malformed", `{"profile_id":`},
		{"unknown field", `{"profile_id":"a","extra":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := ts.do(t, http.MethodPost, "/api/v1/profiles", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, "invalid_request", env.Error.Code)
		})
	}
}

func TestGetProfile(t *testing.T) {
	ts := newTestServer(t)
	ts.createProfile(t, "alice", "Alice")

	rec, env := ts.do(t, http.MethodGet, "/api/v1/profiles/alice", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var view profileResponse
	decodeData(t, env, &view)
	assert.Equal(t, "alice", view.ProfileID)
	assert.Equal(t, 0, view.XP)
	require.NotNil(t, view.Streak)
	assert.Equal(t, 0, view.Streak.CurrentStreak)

	rec, env = ts.do(t, http.MethodGet, "/api/v1/profiles/nobody", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", env.Error.Code)
}

// ══════════════════════════════════════════════════════════════════════════════
// SCORING
// ══════════════════════════════════════════════════════════════════════════════

func TestSubmitAttempt_ReplayReturnsStoredAttempt(t *testing.T) {
	ts := newTestServer(t)
	ts.createProfile(t, "alice", "Alice")

	body := `{"submission_id":"sub-1","score":10,"total_questions":10,"time_taken_seconds":30}`
	rec, env := ts.do(t, http.MethodPost, "/api/v1/profiles/alice/quizzes/q1/attempts", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var first attemptResponse
	decodeData(t, env, &first)
	assert.True(t, first.Passed)
	assert.True(t, first.PerfectScore)
	assert.Positive(t, first.XPEarned)
	assert.Equal(t, first.XPEarned, first.TotalXP)
	assert.Equal(t, 1, first.CurrentStreak)
	assert.False(t, first.AlreadySubmitted)

	rec, env = ts.do(t, http.MethodPost, "/api/v1/profiles/alice/quizzes/q1/attempts", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var replay attemptResponse
	decodeData(t, env, &replay)
	assert.True(t, replay.AlreadySubmitted)
	assert.Equal(t, first.AttemptID, replay.AttemptID)
	assert.Equal(t, first.TotalXP, replay.TotalXP)
}

func TestSubmitAttempt_Errors(t *testing.T) {
	ts := newTestServer(t)
	ts.createProfile(t, "alice", "Alice")

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		code   string
	}{
		{
			name:   "score above total",
			path:   "/api/v1/profiles/alice/quizzes/q1/attempts",
			body:   `{"score":11,"total_questions":10}`,
			status: http.StatusBadRequest,
			code:   "validation_error",
		},
		{
			name:   "no questions",
			path:   "/api/v1/profiles/alice/quizzes/q1/attempts",
			body:   `{"score":0,"total_questions":0}`,
			status: http.StatusBadRequest,
			code:   "validation_error",
		},
		{
			name:   "unknown profile",
			path:   "/api/v1/profiles/bob/quizzes/q1/attempts",
			body:   `{"score":5,"total_questions":10}`,
			status: http.StatusNotFound,
			code:   "not_found",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := ts.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestCompleteLesson(t *testing.T) {
	ts := newTestServer(t)
	ts.createProfile(t, "alice", "Alice")

	rec, env := ts.do(t, http.MethodPost, "/api/v1/profiles/alice/lessons/intro/complete", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var first lessonResponse
	decodeData(t, env, &first)
	assert.Equal(t, command.DefaultLessonXP, first.XPAwarded)
	assert.False(t, first.AlreadyCompleted)

	rec, env = ts.do(t, http.MethodPost, "/api/v1/profiles/alice/lessons/intro/complete", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var second lessonResponse
	decodeData(t, env, &second)
	assert.True(t, second.AlreadyCompleted)
	assert.Equal(t, 0, second.XPAwarded)
	assert.Equal(t, command.DefaultLessonXP, second.TotalXP)
}

func TestClaimChallenge(t *testing.T) {
	ts := newTestServer(t)
	ts.createProfile(t, "alice", "Alice")

	t.Run("daily streak precondition is a 200", func(t *testing.T) {
		rec, env := ts.do(t, http.MethodPost, "/api/v1/profiles/alice/challenges/2/claim", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var res claimResponse
		decodeData(t, env, &res)
		assert.Equal(t, string(command.ClaimPreconditionNotMet), res.Outcome)
		assert.NotEmpty(t, res.Reason)
		assert.Equal(t, 0, res.XPAwarded)
	})

	t.Run("second claim on the same date", func(t *testing.T) {
		rec, env := ts.do(t, http.MethodPost, "/api/v1/profiles/alice/challenges/1/claim", `{"date":"2024-03-10"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var first claimResponse
		decodeData(t, env, &first)
		assert.Equal(t, string(command.ClaimCompleted), first.Outcome)
		assert.Positive(t, first.XPAwarded)

		rec, env = ts.do(t, http.MethodPost, "/api/v1/profiles/alice/challenges/1/claim", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var second claimResponse
		decodeData(t, env, &second)
		assert.Equal(t, string(command.ClaimAlreadyCompleted), second.Outcome)
		assert.True(t, second.AlreadyCompleted)
		assert.Equal(t, first.TotalXP, second.TotalXP)
	})

	t.Run("bad input", func(t *testing.T) {
		rec, _ := ts.do(t, http.MethodPost, "/api/v1/profiles/alice/challenges/abc/claim", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec, _ = ts.do(t, http.MethodPost, "/api/v1/profiles/alice/challenges/1/claim", `{"date":"10.03.2024"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec, env := ts.do(t, http.MethodPost, "/api/v1/profiles/alice/challenges/1/claim", `{"date":"2024-03-11"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "validation_error", env.Error.Code)

		rec, env = ts.do(t, http.MethodPost, "/api/v1/profiles/alice/challenges/1/claim", `{"date":"2024-02-10"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "validation_error", env.Error.Code)

		rec, _ = ts.do(t, http.MethodPost, "/api/v1/profiles/alice/challenges/99/claim", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestGetStreak(t *testing.T) {
	ts := newTestServer(t)
	ts.createProfile(t, "alice", "Alice")
	ts.do(t, http.MethodPost, "/api/v1/profiles/alice/lessons/intro/complete", "")

	rec, env := ts.do(t, http.MethodGet, "/api/v1/profiles/alice/streak", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var res streakResponse
	decodeData(t, env, &res)
	assert.Equal(t, timeutil.DateOf(testNow), res.Today)
	assert.Equal(t, streak.PolicyGrace, res.Policy)
	assert.Equal(t, 1, res.Summary.CurrentStreak)
	assert.Equal(t, []timeutil.Date{timeutil.DateOf(testNow)}, res.Summary.MarkedDates)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD
// ══════════════════════════════════════════════════════════════════════════════

func TestLeaderboard_CacheInvalidatedByScoring(t *testing.T) {
	ts := newTestServer(t)
	ts.createProfile(t, "alice", "Alice")
	ts.createProfile(t, "bob", "Bob")

	rec, env := ts.do(t, http.MethodGet, "/api/v1/leaderboard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, env.Meta)
	assert.False(t, env.Meta.FromCache)
	assert.Equal(t, 2, env.Meta.Total)

	_, env = ts.do(t, http.MethodGet, "/api/v1/leaderboard", "")
	assert.True(t, env.Meta.FromCache)

	rec, _ = ts.do(t, http.MethodPost, "/api/v1/profiles/bob/lessons/intro/complete", "")
	require.Equal(t, http.StatusOK, rec.Code)

	_, env = ts.do(t, http.MethodGet, "/api/v1/leaderboard?sort=xp", "")
	assert.False(t, env.Meta.FromCache)

	var board leaderboardResponse
	decodeData(t, env, &board)
	require.Len(t, board.Entries, 2)
	assert.Equal(t, shared.ProfileID("bob"), board.Entries[0].ProfileID)
	assert.Equal(t, 1, board.Entries[0].Rank)
	assert.Equal(t, shared.ProfileID("alice"), board.Entries[1].ProfileID)
}

func TestLeaderboard_Paging(t *testing.T) {
	ts := newTestServer(t)
	for _, id := range []string{"a", "b", "c"} {
		ts.createProfile(t, id, strings.ToUpper(id))
	}

	rec, env := ts.do(t, http.MethodGet, "/api/v1/leaderboard?sort=name&limit=1&offset=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, env.Meta.Total)
	assert.Equal(t, 1, env.Meta.Limit)

	var board leaderboardResponse
	decodeData(t, env, &board)
	require.Len(t, board.Entries, 1)
	assert.Equal(t, "B", board.Entries[0].DisplayName)
	assert.Equal(t, 2, board.Entries[0].Rank)

	rec, _ = ts.do(t, http.MethodGet, "/api/v1/leaderboard?sort=name&limit=1&offset=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestLeaderboard_BadParams(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{
		"/api/v1/leaderboard?limit=abc",
		"/api/v1/leaderboard?offset=-1",
		"/api/v1/leaderboard?sort=karma",
	} {
		rec, env := ts.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.False(t, env.Success, path)
	}
}

func TestLeaderboard_CacheDownStillServes(t *testing.T) {
	ts := newTestServer(t)
	ts.createProfile(t, "alice", "Alice")
	ts.mr.Close()

	rec, env := ts.do(t, http.MethodGet, "/api/v1/leaderboard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, env.Meta.Total)

	var board leaderboardResponse
	decodeData(t, env, &board)
	names := make([]string, 0, len(board.SideEffects))
	for _, e := range board.SideEffects {
		names = append(names, e.Name)
		assert.Equal(t, shared.SideEffectIgnored, e.Status)
	}
	assert.Equal(t, []string{"cache_get", "cache_set"}, names)
}

// ══════════════════════════════════════════════════════════════════════════════
// PLUMBING
// ══════════════════════════════════════════════════════════════════════════════

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t)

	rec, _ := ts.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var status handlers.HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Healthy)
	assert.Contains(t, status.Checks, "store")

	rec, _ = ts.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReady_CriticalCheckFails(t *testing.T) {
	health := handlers.NewCompositeHealthChecker("test")
	health.AddCheck("store", func(context.Context) error { return errors.New("down") }, true)
	srv := NewServer(DefaultConfig(), Dependencies{HealthChecker: health, Logger: logger.Discard()})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouting(t *testing.T) {
	ts := newTestServer(t)

	rec, env := ts.do(t, http.MethodGet, "/api/v1/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "route_not_found", env.Error.Code)

	rec, env = ts.do(t, http.MethodDelete, "/api/v1/profiles/alice", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "method_not_allowed", env.Error.Code)
}

func TestMiddleware_RequestIDAndCORS(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/leaderboard", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))

	preflight := httptest.NewRequest(http.MethodOptions, "/api/v1/profiles", nil)
	preflight.Header.Set("Origin", "https://app.example.com")
	rec = httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, preflight)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMiddleware_RecoversPanic(t *testing.T) {
	srv := NewServer(DefaultConfig(), Dependencies{Logger: logger.Discard()})
	h := srv.buildMiddlewareChain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestWriteDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		status     int
		code       string
		retryAfter bool
	}{
		{"validation", shared.ErrNoQuestions, http.StatusBadRequest, "validation_error", false},
		{"not found", shared.ErrProfileNotFound, http.StatusNotFound, "not_found", false},
		{"conflict", shared.NewDomainError("quiz", "Insert", shared.ErrConflict, "duplicate"), http.StatusConflict, "conflict", false},
		{"precondition", shared.ErrDailyStreakUnmet, http.StatusUnprocessableEntity, "precondition_not_met", false},
		{"unavailable", shared.StoreUnavailable("profile", "Get", errors.New("reset")), http.StatusServiceUnavailable, "store_unavailable", true},
		{"invariant", shared.ErrDuplicateAward, http.StatusInternalServerError, "invariant_violation", false},
		{"unknown", errors.New("secret detail"), http.StatusInternalServerError, "internal_error", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeDomainError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)

			assert.Equal(t, tt.status, rec.Code)
			var env envelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			assert.Equal(t, tt.code, env.Error.Code)
			assert.NotContains(t, env.Error.Message, "secret")
			assert.Equal(t, tt.retryAfter, rec.Header().Get("Retry-After") != "")
		})
	}
}
