// File: internal/mailer/postmark.go
package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"

	"vamarket_backend/internal/config"
)

// ErrSendFailed wraps every delivery failure from the underlying provider.
var ErrSendFailed = errors.New("mailer: failed to send email")

type postmarkMailer struct {
	client *postmark.Client
	sender string
}

// NewPostmarkMailer creates a Postmark-backed mailer.
func NewPostmarkMailer(cfg *config.Config) (Mailer, error) {
	if cfg.PostmarkServerToken == "" {
		return nil, errors.New("mailer: POSTMARK_SERVER_TOKEN is required")
	}
	if cfg.MailSenderAddress == "" {
		return nil, errors.New("mailer: MAIL_SENDER_ADDRESS is required")
	}
	return &postmarkMailer{
		client: postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
		sender: cfg.MailSenderAddress,
	}, nil
}

// Send delivers one email through Postmark's transactional API.
func (m *postmarkMailer) Send(ctx context.Context, email Email) error {
	resp, err := m.client.SendEmail(ctx, postmark.Email{
		From:       m.sender,
		To:         email.To,
		Subject:    email.Subject,
		Tag:        email.Tag,
		HTMLBody:   email.HTML,
		TrackOpens: true,
		TrackLinks: "HtmlOnly",
	})
	if err != nil {
		return errors.Join(ErrSendFailed, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(ErrSendFailed,
			fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message))
	}
	return nil
}
