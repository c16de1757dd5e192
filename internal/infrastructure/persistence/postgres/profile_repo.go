package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/alem-quest/internal/domain/profile"
	"github.com/alem-hub/alem-quest/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const profileColumns = `id, display_name, xp, streak, completed_lessons, completed_quizzes, created_at, updated_at`

// ProfileRepository implements profile.Repository for PostgreSQL.
type ProfileRepository struct {
	conn *Connection
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(conn *Connection) *ProfileRepository {
	return &ProfileRepository{conn: conn}
}

// Create creates a new profile.
func (r *ProfileRepository) Create(ctx context.Context, p *profile.Profile) error {
	query := `
		INSERT INTO profiles (id, display_name, xp, streak, completed_lessons, completed_quizzes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.conn.querier(ctx).Exec(ctx, query,
		p.ID.String(), p.DisplayName, p.XP, p.Streak,
		p.CompletedLessons, p.CompletedQuizzes, p.CreatedAt, p.UpdatedAt,
	)
	return mapError("profile", "Create", err)
}

// GetByID returns a profile by id.
func (r *ProfileRepository) GetByID(ctx context.Context, id shared.ProfileID) (*profile.Profile, error) {
	row := r.conn.querier(ctx).QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id.String())
	return scanProfile(row, "GetByID")
}

// GetForUpdate locks the profile row for the rest of the transaction.
// Outside a transaction it behaves like GetByID.
func (r *ProfileRepository) GetForUpdate(ctx context.Context, id shared.ProfileID) (*profile.Profile, error) {
	if !inTx(ctx) {
		return r.GetByID(ctx, id)
	}
	row := r.conn.querier(ctx).QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1 FOR UPDATE`, id.String())
	return scanProfile(row, "GetForUpdate")
}

// Increment applies additive deltas in a single UPDATE.
func (r *ProfileRepository) Increment(ctx context.Context, id shared.ProfileID, inc profile.Increment) (*profile.Profile, error) {
	if err := inc.Validate(); err != nil {
		return nil, err
	}
	query := `
		UPDATE profiles SET
			xp = xp + $2,
			completed_quizzes = completed_quizzes + $3,
			completed_lessons = completed_lessons + $4,
			updated_at = $5
		WHERE id = $1
		RETURNING ` + profileColumns
	row := r.conn.querier(ctx).QueryRow(ctx, query,
		id.String(), inc.XP, inc.CompletedQuizzes, inc.CompletedLessons, time.Now().UTC(),
	)
	return scanProfile(row, "Increment")
}

// SetStreak overwrites the cached streak.
func (r *ProfileRepository) SetStreak(ctx context.Context, id shared.ProfileID, streak int) error {
	tag, err := r.conn.querier(ctx).Exec(ctx,
		`UPDATE profiles SET streak = $2, updated_at = $3 WHERE id = $1`,
		id.String(), streak, time.Now().UTC(),
	)
	if err != nil {
		return mapError("profile", "SetStreak", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrProfileNotFound
	}
	return nil
}

// List returns all profiles ordered by id.
func (r *ProfileRepository) List(ctx context.Context) ([]*profile.Profile, error) {
	rows, err := r.conn.querier(ctx).Query(ctx, `SELECT `+profileColumns+` FROM profiles ORDER BY id`)
	if err != nil {
		return nil, mapError("profile", "List", err)
	}
	defer rows.Close()

	var out []*profile.Profile
	for rows.Next() {
		p, err := scanProfile(rows, "List")
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, mapError("profile", "List", rows.Err())
}

func scanProfile(row pgx.Row, op string) (*profile.Profile, error) {
	var p profile.Profile
	var id string
	err := row.Scan(&id, &p.DisplayName, &p.XP, &p.Streak,
		&p.CompletedLessons, &p.CompletedQuizzes, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrProfileNotFound
		}
		return nil, mapError("profile", op, err)
	}
	p.ID = shared.ProfileID(id)
	return &p, nil
}
