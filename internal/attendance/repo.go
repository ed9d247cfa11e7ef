package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// PostgresRepository persists attendance data in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repo.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// AttendeeExists reports whether an attendee row exists for id.
func (r *PostgresRepository) AttendeeExists(ctx context.Context, id int64) (bool, error) {
	row := r.db.QueryRowContext(ctx, `SELECT 1 FROM attendees WHERE id = $1`, id)
	var one int
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// InsertEvent appends a new scan event. No uniqueness constraint applies;
// every accepted scan produces a row.
func (r *PostgresRepository) InsertEvent(ctx context.Context, evt Event) (Event, error) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.ScannedAt.IsZero() {
		evt.ScannedAt = time.Now().UTC()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_events (id, attendee_id, activity_id, station_id, scanned_at)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at
	`, evt.ID, evt.AttendeeID, evt.ActivityID, evt.StationID, evt.ScannedAt)
	if err := row.Scan(&evt.CreatedAt); err != nil {
		return Event{}, err
	}
	return evt, nil
}
