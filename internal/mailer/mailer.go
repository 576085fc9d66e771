// File: internal/mailer/mailer.go
// Package mailer sends transactional and broadcast email. Delivery is best
// effort everywhere it is used: a failed send is logged and never blocks
// notification persistence.
package mailer

import "context"

// Email is a single outbound message.
type Email struct {
	To      string
	Subject string
	HTML    string
	Tag     string
}

// Mailer sends a single email.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}
