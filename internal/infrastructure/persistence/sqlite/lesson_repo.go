package sqlite

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/alem-hub/alem-quest/internal/domain/lesson"
	"github.com/alem-hub/alem-quest/internal/domain/shared"
	"github.com/alem-hub/alem-quest/pkg/timeutil"
)

// LessonRepository implements lesson.Repository.
type LessonRepository struct {
	db *Database
}

// NewLessonRepository creates a new LessonRepository.
func NewLessonRepository(db *Database) *LessonRepository {
	return &LessonRepository{db: db}
}

// Insert stores a completion.
func (r *LessonRepository) Insert(ctx context.Context, c *lesson.Completion) error {
	row := LessonCompletionRow{
		ProfileID:    c.ProfileID.String(),
		LessonID:     c.LessonID.String(),
		XPAwarded:    c.XPAwarded,
		ActivityDate: c.ActivityDate.String(),
		CompletedAt:  c.CompletedAt,
	}
	return mapError("lesson", "Insert", r.db.conn(ctx).Create(&row).Error)
}

// Get returns a stored completion.
func (r *LessonRepository) Get(ctx context.Context, profileID shared.ProfileID, lessonID shared.LessonID) (*lesson.Completion, error) {
	var row LessonCompletionRow
	err := r.db.conn(ctx).
		Where("profile_id = ? AND lesson_id = ?", profileID.String(), lessonID.String()).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewDomainError("lesson", "Get", shared.ErrNotFound, "lesson completion not found")
		}
		return nil, mapError("lesson", "Get", err)
	}
	date, err := timeutil.ParseDate(row.ActivityDate)
	if err != nil {
		return nil, mapError("lesson", "Scan", err)
	}
	return &lesson.Completion{
		ProfileID:    profileID,
		LessonID:     lessonID,
		XPAwarded:    row.XPAwarded,
		ActivityDate: date,
		CompletedAt:  row.CompletedAt,
	}, nil
}
