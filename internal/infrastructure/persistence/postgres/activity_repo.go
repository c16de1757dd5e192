package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/alem-quest/internal/domain/activity"
	"github.com/alem-hub/alem-quest/internal/domain/shared"
	"github.com/alem-hub/alem-quest/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITY LOG REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const activityColumns = `id, profile_id, activity_date, activity_type, xp_earned, source_ref, created_at`

// ActivityRepository implements activity.Repository for PostgreSQL.
type ActivityRepository struct {
	conn *Connection
}

// NewActivityRepository creates a new ActivityRepository.
func NewActivityRepository(conn *Connection) *ActivityRepository {
	return &ActivityRepository{conn: conn}
}

// Append stores a new entry.
func (r *ActivityRepository) Append(ctx context.Context, e *activity.Entry) error {
	_, err := r.conn.querier(ctx).Exec(ctx,
		`INSERT INTO activity_log (`+activityColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.ProfileID.String(), e.ActivityDate.Time(), string(e.Type), e.XPEarned, e.SourceRef, e.CreatedAt,
	)
	return mapError("activity", "Append", err)
}

// ListByProfile returns the full log of a profile ordered by date.
func (r *ActivityRepository) ListByProfile(ctx context.Context, profileID shared.ProfileID) ([]*activity.Entry, error) {
	rows, err := r.conn.querier(ctx).Query(ctx,
		`SELECT `+activityColumns+` FROM activity_log WHERE profile_id = $1 ORDER BY activity_date, created_at`,
		profileID.String(),
	)
	if err != nil {
		return nil, mapError("activity", "ListByProfile", err)
	}
	return collectEntries(rows, "ListByProfile")
}

// ListByProfileOn returns the entries of a profile for one day.
func (r *ActivityRepository) ListByProfileOn(ctx context.Context, profileID shared.ProfileID, date timeutil.Date) ([]*activity.Entry, error) {
	rows, err := r.conn.querier(ctx).Query(ctx,
		`SELECT `+activityColumns+` FROM activity_log WHERE profile_id = $1 AND activity_date = $2 ORDER BY created_at`,
		profileID.String(), date.Time(),
	)
	if err != nil {
		return nil, mapError("activity", "ListByProfileOn", err)
	}
	return collectEntries(rows, "ListByProfileOn")
}

func collectEntries(rows pgx.Rows, op string) ([]*activity.Entry, error) {
	defer rows.Close()

	var out []*activity.Entry
	for rows.Next() {
		var (
			e         activity.Entry
			profileID string
			date      time.Time
			typ       string
		)
		if err := rows.Scan(&e.ID, &profileID, &date, &typ, &e.XPEarned, &e.SourceRef, &e.CreatedAt); err != nil {
			return nil, mapError("activity", op, err)
		}
		e.ProfileID = shared.ProfileID(profileID)
		e.ActivityDate = timeutil.DateOf(date)
		e.Type = activity.Type(typ)
		out = append(out, &e)
	}
	return out, mapError("activity", op, rows.Err())
}
