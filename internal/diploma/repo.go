package diploma

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresStore reads enrollments joined with attendee and activity rows and
// owns the diploma_sent column. No other package writes it.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const enrollmentColumns = `
	e.id, e.attendee_id, e.activity_id, e.diploma_sent,
	a.name, a.email, act.name
`

func (s *PostgresStore) scanEnrollment(row *sql.Row) (*Enrollment, error) {
	var enr Enrollment
	err := row.Scan(&enr.ID, &enr.AttendeeID, &enr.ActivityID, &enr.DiplomaSent,
		&enr.AttendeeName, &enr.AttendeeEmail, &enr.ActivityName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &enr, nil
}

// Enrollment returns the enrollment for (attendeeID, activityID) with the
// marker read fresh, or nil when the attendee never registered for it.
func (s *PostgresStore) Enrollment(ctx context.Context, attendeeID, activityID int64) (*Enrollment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+enrollmentColumns+`
		FROM enrollments e
		JOIN attendees a ON a.id = e.attendee_id
		JOIN activities act ON act.id = e.activity_id
		WHERE e.attendee_id = $1 AND e.activity_id = $2
	`, attendeeID, activityID)
	return s.scanEnrollment(row)
}

// EnrollmentByID returns one enrollment by its id, or nil.
func (s *PostgresStore) EnrollmentByID(ctx context.Context, id int64) (*Enrollment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+enrollmentColumns+`
		FROM enrollments e
		JOIN attendees a ON a.id = e.attendee_id
		JOIN activities act ON act.id = e.activity_id
		WHERE e.id = $1
	`, id)
	return s.scanEnrollment(row)
}

// MarkSent sets diploma_sent with a single conditional update. The WHERE
// clause makes the transition atomic: of two concurrent issuers only one
// observes rows-affected = 1.
func (s *PostgresStore) MarkSent(ctx context.Context, enrollmentID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE enrollments SET diploma_sent = TRUE
		WHERE id = $1 AND diploma_sent = FALSE
	`, enrollmentID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
