package diploma

import (
	"context"
	"errors"
	"fmt"
	"html"
	"time"

	"checkin/internal/mailer"
)

// Reason explains a TryIssue or Resend outcome.
type Reason string

const (
	ReasonSent               Reason = "sent"
	ReasonNotDue             Reason = "not_due"
	ReasonRenderFailed       Reason = "render_failed"
	ReasonDeliveryFailed     Reason = "delivery_failed"
	ReasonChannelUnavailable Reason = "channel_unavailable"
)

// ErrEnrollmentNotFound is returned by Resend for an unknown enrollment id.
var ErrEnrollmentNotFound = errors.New("diploma: enrollment not found")

// Enrollment pairs an attendee with an activity and carries the sole mutable
// field this package owns: the diploma-sent marker.
type Enrollment struct {
	ID            int64
	AttendeeID    int64
	ActivityID    int64
	AttendeeName  string
	AttendeeEmail string
	ActivityName  string
	DiplomaSent   bool
}

// Outcome reports one issuance attempt. OK with ReasonNotDue means there was
// nothing to do; OK with ReasonSent means the diploma was delivered. A false
// OK leaves the enrollment pending and retryable.
type Outcome struct {
	OK        bool
	Reason    Reason
	Transport string
	Err       error
}

// Store reads enrollments and commits the diploma-sent marker. The marker
// must be read fresh at decision time and written with a conditional update
// keyed by enrollment id.
type Store interface {
	Enrollment(ctx context.Context, attendeeID, activityID int64) (*Enrollment, error)
	EnrollmentByID(ctx context.Context, id int64) (*Enrollment, error)
	MarkSent(ctx context.Context, enrollmentID int64) (bool, error)
}

// Sender is the delivery channel surface the orchestrator needs.
type Sender interface {
	Send(ctx context.Context, msg mailer.Message) (mailer.Result, error)
}

// Service decides whether a diploma is due, renders it, delivers it, and
// commits the marker only after a definitive delivery outcome.
type Service struct {
	store    Store
	renderer Renderer
	sender   Sender
	now      func() time.Time
}

// NewService wires the orchestrator.
func NewService(store Store, renderer Renderer, sender Sender) *Service {
	return &Service{store: store, renderer: renderer, sender: sender, now: time.Now}
}

// TryIssue runs the eligibility gate and, when due, the full issuance
// pipeline for (attendeeID, activityID). A missing enrollment or an already
// set marker is not an error: the outcome is OK with ReasonNotDue, and no
// render or send happens.
func (s *Service) TryIssue(ctx context.Context, attendeeID, activityID int64) (Outcome, error) {
	enr, err := s.store.Enrollment(ctx, attendeeID, activityID)
	if err != nil {
		return Outcome{}, err
	}
	if enr == nil || enr.DiplomaSent {
		return Outcome{OK: true, Reason: ReasonNotDue}, nil
	}
	return s.issue(ctx, enr)
}

// Resend bypasses the marker check on explicit operator request and runs
// render and delivery for the enrollment. The marker is still committed on
// success so automatic issuance stays idempotent afterwards.
func (s *Service) Resend(ctx context.Context, enrollmentID int64) (Outcome, error) {
	enr, err := s.store.EnrollmentByID(ctx, enrollmentID)
	if err != nil {
		return Outcome{}, err
	}
	if enr == nil {
		return Outcome{}, ErrEnrollmentNotFound
	}
	return s.issue(ctx, enr)
}

// issue delivers first and marks second. The ordering guarantees the marker
// is never true for an attendee who got nothing; the cost is that a crash
// between send success and the marker write allows one duplicate resend on
// the next trigger. That window is accepted, not masked.
func (s *Service) issue(ctx context.Context, enr *Enrollment) (Outcome, error) {
	date := s.now().Format("02/01/2006")
	pdf, err := s.renderer.Render(Data{Name: enr.AttendeeName, Activity: enr.ActivityName, Date: date})
	if err != nil {
		return Outcome{Reason: ReasonRenderFailed, Err: err}, nil
	}

	res, err := s.sender.Send(ctx, mailer.Message{
		To:      enr.AttendeeEmail,
		Subject: "Diploma de participación",
		HTML: fmt.Sprintf(
			"<p>Hola <strong>%s</strong>:</p><p>Adjunto encontrarás tu diploma por el %s.</p><p>¡Gracias por participar!</p>",
			html.EscapeString(enr.AttendeeName), html.EscapeString(enr.ActivityName)),
		Attachments: []mailer.Attachment{{
			Filename: "diploma.pdf",
			Content:  pdf,
			MIMEType: "application/pdf",
		}},
	})
	if err != nil {
		reason := ReasonDeliveryFailed
		if errors.Is(err, mailer.ErrChannelUnavailable) {
			reason = ReasonChannelUnavailable
		}
		return Outcome{Reason: reason, Err: err}, nil
	}

	// Delivery is definitive from here on; a marker failure is surfaced to
	// the caller but cannot undo the send.
	if _, err := s.store.MarkSent(ctx, enr.ID); err != nil {
		return Outcome{OK: true, Reason: ReasonSent, Transport: res.Transport}, err
	}
	return Outcome{OK: true, Reason: ReasonSent, Transport: res.Transport}, nil
}

// Render produces the diploma bytes for an enrollment without delivering,
// for the direct download endpoint.
func (s *Service) Render(ctx context.Context, enrollmentID int64) (*Enrollment, []byte, error) {
	enr, err := s.store.EnrollmentByID(ctx, enrollmentID)
	if err != nil {
		return nil, nil, err
	}
	if enr == nil {
		return nil, nil, ErrEnrollmentNotFound
	}
	pdf, err := s.renderer.Render(Data{Name: enr.AttendeeName, Activity: enr.ActivityName, Date: s.now().Format("02/01/2006")})
	if err != nil {
		return nil, nil, err
	}
	return enr, pdf, nil
}
