package attendance

import (
	"context"
	"time"

	"checkin/internal/badge"
)

// Reason classifies a rejected scan. These are client-input outcomes, not
// server errors: the request terminates normally either way.
type Reason string

const (
	ReasonBadToken    Reason = "bad_token"
	ReasonUnknownUser Reason = "unknown_user"
)

// Event is one recorded scan. Append-only; repeated scans of the same
// attendee/activity pair are valid (re-entry) and recorded each time.
type Event struct {
	ID         string
	AttendeeID int64
	ActivityID *int64
	StationID  string
	ScannedAt  time.Time
	CreatedAt  time.Time
}

// ScanResult reports whether a scan was accepted and, if so, for whom.
type ScanResult struct {
	Accepted   bool
	AttendeeID int64
	Reason     Reason
}

// Repository persists scan events and resolves attendee existence.
type Repository interface {
	AttendeeExists(ctx context.Context, id int64) (bool, error)
	InsertEvent(ctx context.Context, evt Event) (Event, error)
}

// Recorder turns badge scans into attendance events.
type Recorder struct {
	repo Repository
}

// NewRecorder creates a recorder backed by a repository.
func NewRecorder(repo Repository) *Recorder {
	return &Recorder{repo: repo}
}

// RecordScan decodes the badge token, confirms the attendee exists, and
// appends an attendance event. Rejections have no side effect. Uniqueness is
// deliberately not enforced here; the diploma marker guards duplicate
// issuance downstream.
func (r *Recorder) RecordScan(ctx context.Context, token string, activityID *int64, stationID string) (ScanResult, error) {
	id, ok := badge.Decode(token)
	if !ok {
		return ScanResult{Reason: ReasonBadToken}, nil
	}

	exists, err := r.repo.AttendeeExists(ctx, id)
	if err != nil {
		return ScanResult{}, err
	}
	if !exists {
		return ScanResult{Reason: ReasonUnknownUser}, nil
	}

	evt := Event{
		AttendeeID: id,
		ActivityID: activityID,
		StationID:  stationID,
		ScannedAt:  time.Now().UTC(),
	}
	if _, err := r.repo.InsertEvent(ctx, evt); err != nil {
		return ScanResult{}, err
	}
	return ScanResult{Accepted: true, AttendeeID: id}, nil
}
