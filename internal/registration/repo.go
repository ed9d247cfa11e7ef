package registration

import (
	"context"
	"database/sql"
)

// PostgresRepository persists registration data in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repo.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateAttendee inserts the attendee and returns the assigned id.
func (r *PostgresRepository) CreateAttendee(ctx context.Context, a Attendee) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO attendees (name, email, organization, phone, category)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id
	`, a.Name, a.Email, a.Organization, a.Phone, a.Category).Scan(&id)
	return id, err
}

// SaveBadge stores the derived token and rendered QR on the attendee row.
// Re-running it re-derives the badge, which is the supported regeneration path.
func (r *PostgresRepository) SaveBadge(ctx context.Context, attendeeID int64, token string, qrPNG []byte) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE attendees SET badge_token = $2, qr_png = $3 WHERE id = $1
	`, attendeeID, token, qrPNG)
	return err
}

// CreateEnrollments inserts one enrollment per activity; duplicates are
// ignored so a repeated registration form submit cannot double-enroll.
func (r *PostgresRepository) CreateEnrollments(ctx context.Context, attendeeID int64, activityIDs []int64) error {
	for _, actID := range activityIDs {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO enrollments (attendee_id, activity_id)
			VALUES ($1,$2)
			ON CONFLICT (attendee_id, activity_id) DO NOTHING
		`, attendeeID, actID)
		if err != nil {
			return err
		}
	}
	return nil
}

// ListActivities returns the catalog ordered by id.
func (r *PostgresRepository) ListActivities(ctx context.Context) ([]Activity, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, kind, name FROM activities ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.ID, &a.Kind, &a.Name); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
