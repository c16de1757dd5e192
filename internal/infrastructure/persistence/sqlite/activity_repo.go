package sqlite

import (
	"context"

	"github.com/alem-hub/alem-quest/internal/domain/activity"
	"github.com/alem-hub/alem-quest/internal/domain/shared"
	"github.com/alem-hub/alem-quest/pkg/timeutil"
)

// ActivityRepository implements activity.Repository.
type ActivityRepository struct {
	db *Database
}

// NewActivityRepository creates a new ActivityRepository.
func NewActivityRepository(db *Database) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Append stores a new entry.
func (r *ActivityRepository) Append(ctx context.Context, e *activity.Entry) error {
	row := ActivityRow{
		ID:           e.ID,
		ProfileID:    e.ProfileID.String(),
		ActivityDate: e.ActivityDate.String(),
		ActivityType: string(e.Type),
		XPEarned:     e.XPEarned,
		SourceRef:    e.SourceRef,
		CreatedAt:    e.CreatedAt,
	}
	return mapError("activity", "Append", r.db.conn(ctx).Create(&row).Error)
}

// ListByProfile returns the full log of a profile ordered by date.
func (r *ActivityRepository) ListByProfile(ctx context.Context, profileID shared.ProfileID) ([]*activity.Entry, error) {
	var rows []ActivityRow
	err := r.db.conn(ctx).
		Where("profile_id = ?", profileID.String()).
		Order("activity_date, created_at").
		Find(&rows).Error
	if err != nil {
		return nil, mapError("activity", "ListByProfile", err)
	}
	return toEntries(rows)
}

// ListByProfileOn returns the entries of a profile for one day.
func (r *ActivityRepository) ListByProfileOn(ctx context.Context, profileID shared.ProfileID, date timeutil.Date) ([]*activity.Entry, error) {
	var rows []ActivityRow
	err := r.db.conn(ctx).
		Where("profile_id = ? AND activity_date = ?", profileID.String(), date.String()).
		Order("created_at").
		Find(&rows).Error
	if err != nil {
		return nil, mapError("activity", "ListByProfileOn", err)
	}
	return toEntries(rows)
}

func toEntries(rows []ActivityRow) ([]*activity.Entry, error) {
	out := make([]*activity.Entry, 0, len(rows))
	for _, row := range rows {
		date, err := timeutil.ParseDate(row.ActivityDate)
		if err != nil {
			return nil, mapError("activity", "Scan", err)
		}
		out = append(out, &activity.Entry{
			ID:           row.ID,
			ProfileID:    shared.ProfileID(row.ProfileID),
			ActivityDate: date,
			Type:         activity.Type(row.ActivityType),
			XPEarned:     row.XPEarned,
			SourceRef:    row.SourceRef,
			CreatedAt:    row.CreatedAt,
		})
	}
	return out, nil
}
