package postgres

import (
	"context"
	"time"

	"github.com/alem-hub/alem-quest/internal/domain/lesson"
	"github.com/alem-hub/alem-quest/internal/domain/shared"
	"github.com/alem-hub/alem-quest/pkg/timeutil"
)

// LessonRepository implements lesson.Repository for PostgreSQL.
type LessonRepository struct {
	conn *Connection
}

// NewLessonRepository creates a new LessonRepository.
func NewLessonRepository(conn *Connection) *LessonRepository {
	return &LessonRepository{conn: conn}
}

// Insert stores a completion; the primary key makes it at-most-once.
func (r *LessonRepository) Insert(ctx context.Context, c *lesson.Completion) error {
	_, err := r.conn.querier(ctx).Exec(ctx, `
		INSERT INTO lesson_completions (profile_id, lesson_id, xp_awarded, activity_date, completed_at)
		VALUES ($1, $2, $3, $4, $5)
	`, c.ProfileID.String(), c.LessonID.String(), c.XPAwarded, c.ActivityDate.Time(), c.CompletedAt)
	return mapError("lesson", "Insert", err)
}

// Get returns a stored completion.
func (r *LessonRepository) Get(ctx context.Context, profileID shared.ProfileID, lessonID shared.LessonID) (*lesson.Completion, error) {
	c := lesson.Completion{ProfileID: profileID, LessonID: lessonID}
	var date time.Time
	err := r.conn.querier(ctx).QueryRow(ctx, `
		SELECT xp_awarded, activity_date, completed_at
		FROM lesson_completions
		WHERE profile_id = $1 AND lesson_id = $2
	`, profileID.String(), lessonID.String()).Scan(&c.XPAwarded, &date, &c.CompletedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.NewDomainError("lesson", "Get", shared.ErrNotFound, "lesson completion not found")
		}
		return nil, mapError("lesson", "Get", err)
	}
	c.ActivityDate = timeutil.DateOf(date)
	return &c, nil
}
