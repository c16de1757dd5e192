package sqlite

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/alem-hub/alem-quest/internal/domain/challenge"
	"github.com/alem-hub/alem-quest/internal/domain/shared"
	"github.com/alem-hub/alem-quest/pkg/timeutil"
)

// ChallengeRepository implements challenge.Repository.
type ChallengeRepository struct {
	db *Database
}

// NewChallengeRepository creates a new ChallengeRepository.
func NewChallengeRepository(db *Database) *ChallengeRepository {
	return &ChallengeRepository{db: db}
}

// Get returns a catalog entry.
func (r *ChallengeRepository) Get(ctx context.Context, id int64) (*challenge.Challenge, error) {
	var row ChallengeRow
	err := r.db.conn(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrChallengeNotFound
		}
		return nil, mapError("challenge", "Get", err)
	}
	return toChallenge(&row), nil
}

// List returns the active catalog.
func (r *ChallengeRepository) List(ctx context.Context) ([]*challenge.Challenge, error) {
	var rows []ChallengeRow
	if err := r.db.conn(ctx).Where("active = ?", true).Order("id").Find(&rows).Error; err != nil {
		return nil, mapError("challenge", "List", err)
	}
	out := make([]*challenge.Challenge, 0, len(rows))
	for i := range rows {
		out = append(out, toChallenge(&rows[i]))
	}
	return out, nil
}

// Upsert creates or replaces a catalog entry.
func (r *ChallengeRepository) Upsert(ctx context.Context, c *challenge.Challenge) error {
	if err := c.Validate(); err != nil {
		return err
	}
	row := ChallengeRow{
		ID:       c.ID,
		Code:     c.Code,
		Title:    c.Title,
		Kind:     string(c.Kind),
		XPReward: c.XPReward,
		Active:   c.Active,
	}
	err := r.db.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&row).Error
	return mapError("challenge", "Upsert", err)
}

// ListCompletions returns a profile's completions on one date.
func (r *ChallengeRepository) ListCompletions(ctx context.Context, profileID shared.ProfileID, date timeutil.Date) ([]*challenge.Completion, error) {
	var rows []ChallengeCompletionRow
	err := r.db.conn(ctx).
		Where("profile_id = ? AND completed_date = ?", profileID.String(), date.String()).
		Order("challenge_id").
		Find(&rows).Error
	if err != nil {
		return nil, mapError("challenge", "ListCompletions", err)
	}
	out := make([]*challenge.Completion, 0, len(rows))
	for _, row := range rows {
		out = append(out, &challenge.Completion{
			ProfileID:     profileID,
			ChallengeID:   row.ChallengeID,
			CompletedDate: date,
			XPAwarded:     row.XPAwarded,
			CreatedAt:     row.CreatedAt,
		})
	}
	return out, nil
}

// InsertCompletion stores a completion; the composite primary key makes it
// at-most-once.
func (r *ChallengeRepository) InsertCompletion(ctx context.Context, c *challenge.Completion) error {
	row := ChallengeCompletionRow{
		ProfileID:     c.ProfileID.String(),
		ChallengeID:   c.ChallengeID,
		CompletedDate: c.CompletedDate.String(),
		XPAwarded:     c.XPAwarded,
		CreatedAt:     c.CreatedAt,
	}
	return mapError("challenge", "InsertCompletion", r.db.conn(ctx).Create(&row).Error)
}

func toChallenge(row *ChallengeRow) *challenge.Challenge {
	return &challenge.Challenge{
		ID:       row.ID,
		Code:     row.Code,
		Title:    row.Title,
		Kind:     challenge.Kind(row.Kind),
		XPReward: row.XPReward,
		Active:   row.Active,
	}
}
