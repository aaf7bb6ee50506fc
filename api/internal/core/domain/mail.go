package domain

import "context"

// MailMessage is a single outbound notification.
type MailMessage struct {
	To      string // optional, overrides the configured destination
	Subject string
	Body    string
	HTML    bool
}

// Mailer delivers notifications over the configured SMTP relay.
type Mailer interface {
	Send(ctx context.Context, msg MailMessage) error
}
