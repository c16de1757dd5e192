package sqlite

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/alem-hub/alem-quest/internal/domain/profile"
	"github.com/alem-hub/alem-quest/internal/domain/shared"
)

// ProfileRepository implements profile.Repository.
type ProfileRepository struct {
	db *Database
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(db *Database) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Create creates a new profile.
func (r *ProfileRepository) Create(ctx context.Context, p *profile.Profile) error {
	row := ProfileRow{
		ID:               p.ID.String(),
		DisplayName:      p.DisplayName,
		XP:               p.XP,
		Streak:           p.Streak,
		CompletedLessons: p.CompletedLessons,
		CompletedQuizzes: p.CompletedQuizzes,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
	return mapError("profile", "Create", r.db.conn(ctx).Create(&row).Error)
}

// GetByID returns a profile by id.
func (r *ProfileRepository) GetByID(ctx context.Context, id shared.ProfileID) (*profile.Profile, error) {
	var row ProfileRow
	err := r.db.conn(ctx).Where("id = ?", id.String()).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrProfileNotFound
		}
		return nil, mapError("profile", "GetByID", err)
	}
	return toProfile(&row), nil
}

// GetForUpdate returns the profile. SQLite transactions hold the database
// write lock, so no row lock is needed.
func (r *ProfileRepository) GetForUpdate(ctx context.Context, id shared.ProfileID) (*profile.Profile, error) {
	return r.GetByID(ctx, id)
}

// Increment applies additive deltas in a single UPDATE.
func (r *ProfileRepository) Increment(ctx context.Context, id shared.ProfileID, inc profile.Increment) (*profile.Profile, error) {
	if err := inc.Validate(); err != nil {
		return nil, err
	}
	res := r.db.conn(ctx).Model(&ProfileRow{}).Where("id = ?", id.String()).Updates(map[string]interface{}{
		"xp":                gorm.Expr("xp + ?", inc.XP),
		"completed_quizzes": gorm.Expr("completed_quizzes + ?", inc.CompletedQuizzes),
		"completed_lessons": gorm.Expr("completed_lessons + ?", inc.CompletedLessons),
		"updated_at":        time.Now().UTC(),
	})
	if res.Error != nil {
		return nil, mapError("profile", "Increment", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, shared.ErrProfileNotFound
	}
	return r.GetByID(ctx, id)
}

// SetStreak overwrites the cached streak.
func (r *ProfileRepository) SetStreak(ctx context.Context, id shared.ProfileID, streak int) error {
	res := r.db.conn(ctx).Model(&ProfileRow{}).Where("id = ?", id.String()).Updates(map[string]interface{}{
		"streak":     streak,
		"updated_at": time.Now().UTC(),
	})
	if res.Error != nil {
		return mapError("profile", "SetStreak", res.Error)
	}
	if res.RowsAffected == 0 {
		return shared.ErrProfileNotFound
	}
	return nil
}

// List returns all profiles ordered by id.
func (r *ProfileRepository) List(ctx context.Context) ([]*profile.Profile, error) {
	var rows []ProfileRow
	if err := r.db.conn(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, mapError("profile", "List", err)
	}
	out := make([]*profile.Profile, 0, len(rows))
	for i := range rows {
		out = append(out, toProfile(&rows[i]))
	}
	return out, nil
}

func toProfile(row *ProfileRow) *profile.Profile {
	return &profile.Profile{
		ID:               shared.ProfileID(row.ID),
		DisplayName:      row.DisplayName,
		XP:               row.XP,
		Streak:           row.Streak,
		CompletedLessons: row.CompletedLessons,
		CompletedQuizzes: row.CompletedQuizzes,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
}
