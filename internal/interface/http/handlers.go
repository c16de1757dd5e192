package http

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/alem-hub/alem-quest/internal/application/command"
	"github.com/alem-hub/alem-quest/internal/application/query"
	"github.com/alem-hub/alem-quest/internal/domain/leaderboard"
	"github.com/alem-hub/alem-quest/internal/domain/streak"
	"github.com/alem-hub/alem-quest/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"healthy": true,
		"uptime":  s.Uptime().String(),
		"version": s.config.Version,
	})
}

// handleReady handles the readiness probe endpoint.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type createProfileRequest struct {
	ProfileID   string `json:"profile_id"`
	DisplayName string `json:"display_name"`
}

type profileResponse struct {
	ProfileID        string          `json:"profile_id"`
	DisplayName      string          `json:"display_name"`
	XP               int             `json:"xp"`
	Level            int             `json:"level"`
	NextLevelXP      int             `json:"next_level_xp,omitempty"`
	CompletedLessons int             `json:"completed_lessons"`
	CompletedQuizzes int             `json:"completed_quizzes"`
	Streak           *streak.Summary `json:"streak,omitempty"`
	CreatedAt        string          `json:"created_at,omitempty"`
	UpdatedAt        string          `json:"updated_at,omitempty"`
	Created          *bool           `json:"created,omitempty"`
	SideEffects      []sideEffectDTO `json:"side_effects"`
}

// handleCreateProfile registers a profile. Repeating the call with an
// existing id returns the stored profile with 200.
func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var req createProfileRequest
	if err := s.decodeJSON(w, r, &req, false); err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := s.deps.CreateProfile.Handle(r.Context(), command.CreateProfileCommand{
		ProfileID:   req.ProfileID,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	p := result.Profile
	created := result.Created
	resp := profileResponse{
		ProfileID:        p.ID.String(),
		DisplayName:      p.DisplayName,
		XP:               p.XP,
		Level:            p.Level().Int(),
		CompletedLessons: p.CompletedLessons,
		CompletedQuizzes: p.CompletedQuizzes,
		CreatedAt:        formatTime(p.CreatedAt),
		UpdatedAt:        formatTime(p.UpdatedAt),
		Created:          &created,
		SideEffects:      toSideEffects(result.SideEffects),
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeData(w, r, status, resp, nil)
}

// handleGetProfile returns a profile with its computed streak.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	view, err := s.deps.GetProfile.Handle(r.Context(), query.GetProfileQuery{ProfileID: mux.Vars(r)["id"]})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	summary := view.Streak
	writeData(w, r, http.StatusOK, profileResponse{
		ProfileID:        view.ProfileID,
		DisplayName:      view.DisplayName,
		XP:               view.XP,
		Level:            view.Level,
		NextLevelXP:      view.NextLevelXP,
		CompletedLessons: view.CompletedLessons,
		CompletedQuizzes: view.CompletedQuizzes,
		Streak:           &summary,
		CreatedAt:        formatTime(view.CreatedAt),
		UpdatedAt:        formatTime(view.UpdatedAt),
		SideEffects:      toSideEffects(view.SideEffects),
	}, nil)
}

type streakResponse struct {
	ProfileID   string          `json:"profile_id"`
	Today       timeutil.Date   `json:"today"`
	Policy      streak.Policy   `json:"policy"`
	Summary     streak.Summary  `json:"summary"`
	SideEffects []sideEffectDTO `json:"side_effects"`
}

// handleGetStreak returns the streak computed from the activity log.
func (s *Server) handleGetStreak(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.GetStreak.Handle(r.Context(), query.GetStreakQuery{ProfileID: mux.Vars(r)["id"]})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeData(w, r, http.StatusOK, streakResponse{
		ProfileID:   result.ProfileID,
		Today:       result.Today,
		Policy:      result.Policy,
		Summary:     result.Summary,
		SideEffects: toSideEffects(result.SideEffects),
	}, nil)
}

// ══════════════════════════════════════════════════════════════════════════════
// SCORING HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type submitAttemptRequest struct {
	SubmissionID         string   `json:"submission_id"`
	Score                int      `json:"score"`
	TotalQuestions       int      `json:"total_questions"`
	TimeTakenSeconds     int      `json:"time_taken_seconds"`
	TimeRemainingSeconds int      `json:"time_remaining_seconds"`
	SingleAttempt        bool     `json:"single_attempt"`
	Answers              []string `json:"answers,omitempty"`
}

type attemptResponse struct {
	AttemptID           string          `json:"attempt_id"`
	SubmissionID        string          `json:"submission_id,omitempty"`
	ProfileID           string          `json:"profile_id"`
	QuizID              string          `json:"quiz_id"`
	XPEarned            int             `json:"xp_earned"`
	Passed              bool            `json:"passed"`
	PerfectScore        bool            `json:"perfect_score"`
	TimeBonus           int             `json:"time_bonus"`
	ScorePercent        float64         `json:"score_percent"`
	PreviousBestPercent float64         `json:"previous_best_percent"`
	PersonalityType     string          `json:"personality_type,omitempty"`
	AlreadySubmitted    bool            `json:"already_submitted"`
	TotalXP             int             `json:"total_xp"`
	Level               int             `json:"level"`
	CurrentStreak       int             `json:"current_streak"`
	Streak              *streak.Summary `json:"streak,omitempty"`
	CompletedAt         string          `json:"completed_at,omitempty"`
	SideEffects         []sideEffectDTO `json:"side_effects"`
}

// handleSubmitAttempt scores a quiz submission. A replayed submission
// returns the stored attempt with 200.
func (s *Server) handleSubmitAttempt(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req submitAttemptRequest
	if err := s.decodeJSON(w, r, &req, false); err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := s.deps.SubmitAttempt.Handle(r.Context(), command.SubmitAttemptCommand{
		ProfileID:            vars["id"],
		QuizID:               vars["quizId"],
		SubmissionID:         req.SubmissionID,
		Score:                req.Score,
		TotalQuestions:       req.TotalQuestions,
		TimeTakenSeconds:     req.TimeTakenSeconds,
		TimeRemainingSeconds: req.TimeRemainingSeconds,
		SingleAttempt:        req.SingleAttempt,
		Answers:              req.Answers,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	status := http.StatusCreated
	if result.AlreadySubmitted {
		status = http.StatusOK
	}
	writeData(w, r, status, attemptResponse{
		AttemptID:           result.AttemptID,
		SubmissionID:        result.SubmissionID,
		ProfileID:           result.ProfileID,
		QuizID:              result.QuizID,
		XPEarned:            result.XPEarned,
		Passed:              result.Passed,
		PerfectScore:        result.PerfectScore,
		TimeBonus:           result.TimeBonus,
		ScorePercent:        result.ScorePercent,
		PreviousBestPercent: result.PreviousBestPercent,
		PersonalityType:     string(result.PersonalityType),
		AlreadySubmitted:    result.AlreadySubmitted,
		TotalXP:             result.TotalXP,
		Level:               result.Level,
		CurrentStreak:       result.CurrentStreak,
		Streak:              result.Streak,
		CompletedAt:         formatTime(result.CompletedAt),
		SideEffects:         toSideEffects(result.SideEffects),
	}, nil)
}

type lessonResponse struct {
	ProfileID        string          `json:"profile_id"`
	LessonID         string          `json:"lesson_id"`
	AlreadyCompleted bool            `json:"already_completed"`
	XPAwarded        int             `json:"xp_awarded"`
	TotalXP          int             `json:"total_xp"`
	Level            int             `json:"level"`
	CurrentStreak    int             `json:"current_streak"`
	CompletedAt      string          `json:"completed_at,omitempty"`
	SideEffects      []sideEffectDTO `json:"side_effects"`
}

// handleCompleteLesson marks a lesson completed.
func (s *Server) handleCompleteLesson(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	result, err := s.deps.CompleteLesson.Handle(r.Context(), command.CompleteLessonCommand{
		ProfileID: vars["id"],
		LessonID:  vars["lessonId"],
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeData(w, r, http.StatusOK, lessonResponse{
		ProfileID:        result.ProfileID,
		LessonID:         result.LessonID,
		AlreadyCompleted: result.AlreadyCompleted,
		XPAwarded:        result.XPAwarded,
		TotalXP:          result.TotalXP,
		Level:            result.Level,
		CurrentStreak:    result.CurrentStreak,
		CompletedAt:      formatTime(result.CompletedAt),
		SideEffects:      toSideEffects(result.SideEffects),
	}, nil)
}

type claimChallengeRequest struct {
	// Date is YYYY-MM-DD; empty means today.
	Date string `json:"date"`
}

type claimResponse struct {
	ProfileID        string          `json:"profile_id"`
	ChallengeID      int64           `json:"challenge_id"`
	Date             timeutil.Date   `json:"date"`
	Outcome          string          `json:"outcome"`
	AlreadyCompleted bool            `json:"already_completed"`
	Reason           string          `json:"reason,omitempty"`
	XPAwarded        int             `json:"xp_awarded"`
	TotalXP          int             `json:"total_xp"`
	CurrentStreak    int             `json:"current_streak"`
	SideEffects      []sideEffectDTO `json:"side_effects"`
}

// handleClaimChallenge claims a challenge. Every outcome, including an
// unmet precondition, is a 200 with the outcome in the body.
func (s *Server) handleClaimChallenge(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	challengeID, err := strconv.ParseInt(vars["challengeId"], 10, 64)
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "challenge id must be an integer")
		return
	}

	var req claimChallengeRequest
	if err := s.decodeJSON(w, r, &req, true); err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	var date timeutil.Date
	if req.Date != "" {
		if date, err = timeutil.ParseDate(req.Date); err != nil {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "date must be YYYY-MM-DD")
			return
		}
	}

	result, err := s.deps.ClaimChallenge.Handle(r.Context(), command.ClaimChallengeCommand{
		ProfileID:   vars["id"],
		ChallengeID: challengeID,
		Date:        date,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeData(w, r, http.StatusOK, claimResponse{
		ProfileID:        result.ProfileID,
		ChallengeID:      result.ChallengeID,
		Date:             result.Date,
		Outcome:          string(result.Outcome),
		AlreadyCompleted: result.AlreadyCompleted,
		Reason:           result.Reason,
		XPAwarded:        result.XPAwarded,
		TotalXP:          result.TotalXP,
		CurrentStreak:    result.CurrentStreak,
		SideEffects:      toSideEffects(result.SideEffects),
	}, nil)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type leaderboardResponse struct {
	SortBy      leaderboard.SortKey  `json:"sort_by"`
	Entries     []*leaderboard.Entry `json:"entries"`
	GeneratedAt string               `json:"generated_at,omitempty"`
	SideEffects []sideEffectDTO      `json:"side_effects"`
}

// handleGetLeaderboard handles GET /api/v1/leaderboard?sort=&limit=&offset=.
func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := s.deps.GetLeaderboard.Handle(r.Context(), query.GetLeaderboardQuery{
		SortBy: r.URL.Query().Get("sort"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	entries := result.Entries
	if entries == nil {
		entries = []*leaderboard.Entry{}
	}
	writeData(w, r, http.StatusOK, leaderboardResponse{
		SortBy:      result.SortBy,
		Entries:     entries,
		GeneratedAt: formatTime(result.GeneratedAt),
		SideEffects: toSideEffects(result.SideEffects),
	}, &ResponseMeta{
		Total:     result.Total,
		Limit:     result.Limit,
		Offset:    result.Offset,
		FromCache: result.FromCache,
	})
}
