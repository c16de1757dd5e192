package postgres

import (
	"context"
	"time"

	"github.com/alem-hub/alem-quest/internal/domain/challenge"
	"github.com/alem-hub/alem-quest/internal/domain/shared"
	"github.com/alem-hub/alem-quest/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHALLENGE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ChallengeRepository implements challenge.Repository for PostgreSQL.
type ChallengeRepository struct {
	conn *Connection
}

// NewChallengeRepository creates a new ChallengeRepository.
func NewChallengeRepository(conn *Connection) *ChallengeRepository {
	return &ChallengeRepository{conn: conn}
}

// Get returns a catalog entry.
func (r *ChallengeRepository) Get(ctx context.Context, id int64) (*challenge.Challenge, error) {
	var c challenge.Challenge
	var kind string
	err := r.conn.querier(ctx).QueryRow(ctx,
		`SELECT id, code, title, kind, xp_reward, active FROM challenges WHERE id = $1`, id,
	).Scan(&c.ID, &c.Code, &c.Title, &kind, &c.XPReward, &c.Active)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrChallengeNotFound
		}
		return nil, mapError("challenge", "Get", err)
	}
	c.Kind = challenge.Kind(kind)
	return &c, nil
}

// List returns the active catalog.
func (r *ChallengeRepository) List(ctx context.Context) ([]*challenge.Challenge, error) {
	rows, err := r.conn.querier(ctx).Query(ctx,
		`SELECT id, code, title, kind, xp_reward, active FROM challenges WHERE active ORDER BY id`)
	if err != nil {
		return nil, mapError("challenge", "List", err)
	}
	defer rows.Close()

	var out []*challenge.Challenge
	for rows.Next() {
		var c challenge.Challenge
		var kind string
		if err := rows.Scan(&c.ID, &c.Code, &c.Title, &kind, &c.XPReward, &c.Active); err != nil {
			return nil, mapError("challenge", "List", err)
		}
		c.Kind = challenge.Kind(kind)
		out = append(out, &c)
	}
	return out, mapError("challenge", "List", rows.Err())
}

// Upsert creates or replaces a catalog entry.
func (r *ChallengeRepository) Upsert(ctx context.Context, c *challenge.Challenge) error {
	if err := c.Validate(); err != nil {
		return err
	}
	_, err := r.conn.querier(ctx).Exec(ctx, `
		INSERT INTO challenges (id, code, title, kind, xp_reward, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			code = EXCLUDED.code,
			title = EXCLUDED.title,
			kind = EXCLUDED.kind,
			xp_reward = EXCLUDED.xp_reward,
			active = EXCLUDED.active
	`, c.ID, c.Code, c.Title, string(c.Kind), c.XPReward, c.Active)
	return mapError("challenge", "Upsert", err)
}

// ListCompletions returns a profile's completions on one date.
func (r *ChallengeRepository) ListCompletions(ctx context.Context, profileID shared.ProfileID, date timeutil.Date) ([]*challenge.Completion, error) {
	rows, err := r.conn.querier(ctx).Query(ctx, `
		SELECT challenge_id, xp_awarded, created_at
		FROM challenge_completions
		WHERE profile_id = $1 AND completed_date = $2
		ORDER BY challenge_id
	`, profileID.String(), date.Time())
	if err != nil {
		return nil, mapError("challenge", "ListCompletions", err)
	}
	defer rows.Close()

	var out []*challenge.Completion
	for rows.Next() {
		c := challenge.Completion{ProfileID: profileID, CompletedDate: date}
		var createdAt time.Time
		if err := rows.Scan(&c.ChallengeID, &c.XPAwarded, &createdAt); err != nil {
			return nil, mapError("challenge", "ListCompletions", err)
		}
		c.CreatedAt = createdAt
		out = append(out, &c)
	}
	return out, mapError("challenge", "ListCompletions", rows.Err())
}

// InsertCompletion stores a completion; the primary key makes it at-most-once.
func (r *ChallengeRepository) InsertCompletion(ctx context.Context, c *challenge.Completion) error {
	_, err := r.conn.querier(ctx).Exec(ctx, `
		INSERT INTO challenge_completions (profile_id, challenge_id, completed_date, xp_awarded, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, c.ProfileID.String(), c.ChallengeID, c.CompletedDate.Time(), c.XPAwarded, c.CreatedAt)
	return mapError("challenge", "InsertCompletion", err)
}
