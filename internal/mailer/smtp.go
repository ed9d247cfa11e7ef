package mailer

import (
	"bytes"
	"context"
	"time"

	mail "github.com/wneessen/go-mail"

	"checkin/internal/config"
)

// NewChannelFromConfig builds the delivery channel from the configured
// transports in fallback priority order: submission first, implicit TLS
// second. Unconfigured slots are skipped; with none configured the channel
// reports unavailable on first use.
func NewChannelFromConfig(cfg config.App) *Channel {
	var transports []Transport
	if cfg.SMTPPrimary.Configured() {
		transports = append(transports,
			NewSMTPTransport("smtp-primary", cfg.SMTPPrimary, cfg.MailFrom, cfg.MailFromName, cfg.MailSendTimeout))
	}
	if cfg.SMTPSecondary.Configured() {
		transports = append(transports,
			NewSMTPTransport("smtp-fallback", cfg.SMTPSecondary, cfg.MailFrom, cfg.MailFromName, cfg.MailSendTimeout))
	}
	return NewChannel(transports, cfg.MailProbeTimeout)
}

// SMTPTransport delivers through one SMTP endpoint using go-mail. The same
// type serves both the submission (STARTTLS) and implicit-TLS transports;
// config.SMTP.SSL picks the mode.
type SMTPTransport struct {
	name     string
	cfg      config.SMTP
	from     string
	fromName string
	timeout  time.Duration
}

// NewSMTPTransport builds a transport named for logs and metrics.
func NewSMTPTransport(name string, cfg config.SMTP, from, fromName string, timeout time.Duration) *SMTPTransport {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &SMTPTransport{name: name, cfg: cfg, from: from, fromName: fromName, timeout: timeout}
}

// Name identifies the transport in logs and send results.
func (t *SMTPTransport) Name() string { return t.name }

func (t *SMTPTransport) client() (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(t.cfg.Port),
		mail.WithTimeout(t.timeout),
	}
	if t.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(t.cfg.Username),
			mail.WithPassword(t.cfg.Password),
		)
	}
	if t.cfg.SSL {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	return mail.NewClient(t.cfg.Host, opts...)
}

// Verify dials and authenticates without sending anything.
func (t *SMTPTransport) Verify(ctx context.Context) error {
	c, err := t.client()
	if err != nil {
		return err
	}
	if err := c.DialWithContext(ctx); err != nil {
		return err
	}
	return c.Close()
}

// Deliver sends one message.
func (t *SMTPTransport) Deliver(ctx context.Context, msg Message) error {
	m := mail.NewMsg()
	if err := m.FromFormat(t.fromName, t.from); err != nil {
		return err
	}
	if err := m.To(msg.To); err != nil {
		return err
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextHTML, msg.HTML)

	for _, a := range msg.Attachments {
		opts := []mail.FileOption{}
		if a.MIMEType != "" {
			opts = append(opts, mail.WithFileContentType(mail.ContentType(a.MIMEType)))
		}
		if a.ContentID != "" {
			if err := m.EmbedReader(a.Filename, bytes.NewReader(a.Content), append(opts, mail.WithFileContentID(a.ContentID))...); err != nil {
				return err
			}
			continue
		}
		if err := m.AttachReader(a.Filename, bytes.NewReader(a.Content), opts...); err != nil {
			return err
		}
	}

	c, err := t.client()
	if err != nil {
		return err
	}
	return c.DialAndSendWithContext(ctx, m)
}
