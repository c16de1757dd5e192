package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/alem-quest/internal/domain/personality"
	"github.com/alem-hub/alem-quest/internal/domain/quiz"
	"github.com/alem-hub/alem-quest/internal/domain/shared"
	"github.com/alem-hub/alem-quest/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// QUIZ ATTEMPT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const attemptColumns = `id, submission_id, profile_id, quiz_id, score, total_questions,
	time_taken_seconds, time_remaining_seconds, xp_earned, passed, is_perfect,
	single_attempt, personality_type, activity_date, completed_at`

// AttemptRepository implements quiz.Repository for PostgreSQL.
type AttemptRepository struct {
	conn *Connection
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(conn *Connection) *AttemptRepository {
	return &AttemptRepository{conn: conn}
}

// ListAttempts returns attempts of a profile at a quiz, oldest first.
func (r *AttemptRepository) ListAttempts(ctx context.Context, profileID shared.ProfileID, quizID shared.QuizID) ([]*quiz.Attempt, error) {
	rows, err := r.conn.querier(ctx).Query(ctx,
		`SELECT `+attemptColumns+` FROM quiz_attempts
		 WHERE profile_id = $1 AND quiz_id = $2
		 ORDER BY completed_at, id`,
		profileID.String(), quizID.String(),
	)
	if err != nil {
		return nil, mapError("quiz", "ListAttempts", err)
	}
	defer rows.Close()

	var out []*quiz.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows, "ListAttempts")
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, mapError("quiz", "ListAttempts", rows.Err())
}

// GetBySubmission returns the attempt stored under a submission id.
func (r *AttemptRepository) GetBySubmission(ctx context.Context, submissionID string) (*quiz.Attempt, error) {
	row := r.conn.querier(ctx).QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM quiz_attempts WHERE submission_id = $1`, submissionID)
	return scanAttempt(row, "GetBySubmission")
}

// Insert stores a new attempt.
func (r *AttemptRepository) Insert(ctx context.Context, a *quiz.Attempt) error {
	query := `
		INSERT INTO quiz_attempts (` + attemptColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	var personalityType *string
	if a.PersonalityType != "" {
		v := string(a.PersonalityType)
		personalityType = &v
	}
	_, err := r.conn.querier(ctx).Exec(ctx, query,
		a.ID, a.SubmissionID, a.ProfileID.String(), a.QuizID.String(),
		a.Score, a.TotalQuestions, a.TimeTakenSeconds, a.TimeRemainingSeconds,
		a.XPEarned, a.Passed, a.IsPerfect, a.SingleAttempt, personalityType,
		a.ActivityDate.Time(), a.CompletedAt,
	)
	return mapError("quiz", "Insert", err)
}

func scanAttempt(row pgx.Row, op string) (*quiz.Attempt, error) {
	var (
		a               quiz.Attempt
		profileID       string
		quizID          string
		personalityType *string
		activityDate    time.Time
	)
	err := row.Scan(&a.ID, &a.SubmissionID, &profileID, &quizID, &a.Score, &a.TotalQuestions,
		&a.TimeTakenSeconds, &a.TimeRemainingSeconds, &a.XPEarned, &a.Passed, &a.IsPerfect,
		&a.SingleAttempt, &personalityType, &activityDate, &a.CompletedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrAttemptNotFound
		}
		return nil, mapError("quiz", op, err)
	}
	a.ProfileID = shared.ProfileID(profileID)
	a.QuizID = shared.QuizID(quizID)
	if personalityType != nil {
		a.PersonalityType = personality.Type(*personalityType)
	}
	a.ActivityDate = timeutil.DateOf(activityDate)
	return &a, nil
}
