package registration

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"strings"
	"time"

	"checkin/internal/badge"
	"checkin/internal/mailer"
)

// Attendee categories. Internal attendees must register with an email on the
// configured institutional domain.
const (
	CategoryInternal = "internal"
	CategoryExternal = "external"
)

var (
	ErrMissingFields = errors.New("registration: name and email required")
	ErrWrongDomain   = errors.New("registration: email domain not allowed for internal attendees")
)

// Attendee is a registered participant.
type Attendee struct {
	ID           int64
	Name         string
	Email        string
	Organization string
	Phone        string
	Category     string
	BadgeToken   string
	CreatedAt    time.Time
}

// Activity is one catalog entry, read-only from this package.
type Activity struct {
	ID   int64
	Kind string
	Name string
}

// Repository persists attendees and their enrollments.
type Repository interface {
	CreateAttendee(ctx context.Context, a Attendee) (int64, error)
	SaveBadge(ctx context.Context, attendeeID int64, token string, qrPNG []byte) error
	CreateEnrollments(ctx context.Context, attendeeID int64, activityIDs []int64) error
	ListActivities(ctx context.Context) ([]Activity, error)
}

// Sender is the mail channel surface used for the confirmation email.
type Sender interface {
	Send(ctx context.Context, msg mailer.Message) (mailer.Result, error)
}

// Input is a registration request.
type Input struct {
	Name         string
	Email        string
	Organization string
	Phone        string
	Category     string
	ActivityIDs  []int64
}

// Service registers attendees, issues their badge, and sends the QR email.
type Service struct {
	repo          Repository
	sender        Sender
	allowedDomain string
}

// NewService wires registration. allowedDomain gates internal attendees.
func NewService(repo Repository, sender Sender, allowedDomain string) *Service {
	return &Service{repo: repo, sender: sender, allowedDomain: allowedDomain}
}

// Register creates the attendee and one enrollment per selected activity,
// derives the badge token from the new id, stores the QR, and emails it.
// Confirmation email failure is logged but never fails the registration:
// the badge can still be recovered from the stored QR.
func (s *Service) Register(ctx context.Context, in Input) (Attendee, error) {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Email) == "" {
		return Attendee{}, ErrMissingFields
	}
	if in.Category != CategoryInternal {
		in.Category = CategoryExternal
	}
	if in.Category == CategoryInternal && s.allowedDomain != "" &&
		!strings.HasSuffix(strings.ToLower(in.Email), strings.ToLower(strings.TrimSpace(s.allowedDomain))) {
		return Attendee{}, ErrWrongDomain
	}

	a := Attendee{
		Name:         strings.TrimSpace(in.Name),
		Email:        strings.TrimSpace(in.Email),
		Organization: in.Organization,
		Phone:        in.Phone,
		Category:     in.Category,
	}
	id, err := s.repo.CreateAttendee(ctx, a)
	if err != nil {
		return Attendee{}, err
	}
	a.ID = id

	if len(in.ActivityIDs) > 0 {
		if err := s.repo.CreateEnrollments(ctx, id, in.ActivityIDs); err != nil {
			return Attendee{}, err
		}
	}

	a.BadgeToken = badge.Encode(id)
	qrPNG, err := badge.QR(a.BadgeToken)
	if err != nil {
		return Attendee{}, err
	}
	if err := s.repo.SaveBadge(ctx, id, a.BadgeToken, qrPNG); err != nil {
		return Attendee{}, err
	}

	if _, err := s.sender.Send(ctx, confirmationEmail(a, qrPNG)); err != nil {
		log.Printf("registration: confirmation email to %s failed: %v", a.Email, err)
	}
	return a, nil
}

// Activities lists the catalog for the registration form.
func (s *Service) Activities(ctx context.Context) ([]Activity, error) {
	return s.repo.ListActivities(ctx)
}

func confirmationEmail(a Attendee, qrPNG []byte) mailer.Message {
	return mailer.Message{
		To:      a.Email,
		Subject: "Tu código QR de asistencia",
		HTML: fmt.Sprintf(
			`<p>Hola <strong>%s</strong>:</p><p>Presenta este código al ingresar:</p><img src="cid:qr.png" style="width:160px;height:160px;">`,
			html.EscapeString(a.Name)),
		Attachments: []mailer.Attachment{{
			Filename:  "qr.png",
			Content:   qrPNG,
			MIMEType:  "image/png",
			ContentID: "qr.png",
		}},
	}
}
