package mailer

import "context"

// Attachment is opaque binary content carried with a message. When ContentID
// is set the attachment is embedded inline and referable from the HTML body
// as cid:<ContentID>.
type Attachment struct {
	Filename  string
	Content   []byte
	MIMEType  string
	ContentID string
}

// Message is a single outbound email.
type Message struct {
	To          string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// Result reports which transport carried a successful send.
type Result struct {
	Transport string
}

// Transport is one configured delivery mechanism. Verify performs a
// connectivity/credential check without sending; Deliver sends one message.
type Transport interface {
	Name() string
	Verify(ctx context.Context) error
	Deliver(ctx context.Context, msg Message) error
}
