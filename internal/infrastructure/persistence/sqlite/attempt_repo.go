package sqlite

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/alem-hub/alem-quest/internal/domain/personality"
	"github.com/alem-hub/alem-quest/internal/domain/quiz"
	"github.com/alem-hub/alem-quest/internal/domain/shared"
	"github.com/alem-hub/alem-quest/pkg/timeutil"
)

// AttemptRepository implements quiz.Repository.
type AttemptRepository struct {
	db *Database
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(db *Database) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// ListAttempts returns attempts of a profile at a quiz, oldest first.
func (r *AttemptRepository) ListAttempts(ctx context.Context, profileID shared.ProfileID, quizID shared.QuizID) ([]*quiz.Attempt, error) {
	var rows []AttemptRow
	err := r.db.conn(ctx).
		Where("profile_id = ? AND quiz_id = ?", profileID.String(), quizID.String()).
		Order("completed_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, mapError("quiz", "ListAttempts", err)
	}
	out := make([]*quiz.Attempt, 0, len(rows))
	for i := range rows {
		a, err := toAttempt(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// GetBySubmission returns the attempt stored under a submission id.
func (r *AttemptRepository) GetBySubmission(ctx context.Context, submissionID string) (*quiz.Attempt, error) {
	var row AttemptRow
	err := r.db.conn(ctx).Where("submission_id = ?", submissionID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrAttemptNotFound
		}
		return nil, mapError("quiz", "GetBySubmission", err)
	}
	return toAttempt(&row)
}

// Insert stores a new attempt.
func (r *AttemptRepository) Insert(ctx context.Context, a *quiz.Attempt) error {
	row := AttemptRow{
		ID:                   a.ID,
		SubmissionID:         a.SubmissionID,
		ProfileID:            a.ProfileID.String(),
		QuizID:               a.QuizID.String(),
		Score:                a.Score,
		TotalQuestions:       a.TotalQuestions,
		TimeTakenSeconds:     a.TimeTakenSeconds,
		TimeRemainingSeconds: a.TimeRemainingSeconds,
		XPEarned:             a.XPEarned,
		Passed:               a.Passed,
		IsPerfect:            a.IsPerfect,
		SingleAttempt:        a.SingleAttempt,
		ActivityDate:         a.ActivityDate.String(),
		CompletedAt:          a.CompletedAt,
	}
	if a.PersonalityType != "" {
		v := string(a.PersonalityType)
		row.PersonalityType = &v
	}
	return mapError("quiz", "Insert", r.db.conn(ctx).Create(&row).Error)
}

func toAttempt(row *AttemptRow) (*quiz.Attempt, error) {
	date, err := timeutil.ParseDate(row.ActivityDate)
	if err != nil {
		return nil, mapError("quiz", "Scan", err)
	}
	a := &quiz.Attempt{
		ID:                   row.ID,
		SubmissionID:         row.SubmissionID,
		ProfileID:            shared.ProfileID(row.ProfileID),
		QuizID:               shared.QuizID(row.QuizID),
		Score:                row.Score,
		TotalQuestions:       row.TotalQuestions,
		TimeTakenSeconds:     row.TimeTakenSeconds,
		TimeRemainingSeconds: row.TimeRemainingSeconds,
		XPEarned:             row.XPEarned,
		Passed:               row.Passed,
		IsPerfect:            row.IsPerfect,
		SingleAttempt:        row.SingleAttempt,
		ActivityDate:         date,
		CompletedAt:          row.CompletedAt,
	}
	if row.PersonalityType != nil {
		a.PersonalityType = personality.Type(*row.PersonalityType)
	}
	return a, nil
}
