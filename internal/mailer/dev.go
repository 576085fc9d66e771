// File: internal/mailer/dev.go
package mailer

import (
	"context"

	"go.uber.org/zap"

	"vamarket_backend/internal/config"
)

// devMailer logs outbound email instead of sending it. Used when no
// Postmark server token is configured.
type devMailer struct {
	logger *zap.Logger
}

// NewDevMailer creates a mailer for local development.
func NewDevMailer(logger *zap.Logger) Mailer {
	return &devMailer{logger: logger}
}

func (m *devMailer) Send(_ context.Context, email Email) error {
	m.logger.Info("Dev mailer: email not sent",
		zap.String("to", email.To),
		zap.String("subject", email.Subject),
		zap.String("tag", email.Tag),
		zap.Int("html_bytes", len(email.HTML)),
	)
	return nil
}

// NewMailer selects the Postmark mailer when configured and falls back to
// the logging mailer otherwise, so local environments run without tokens.
func NewMailer(cfg *config.Config, logger *zap.Logger) (Mailer, error) {
	if cfg.PostmarkServerToken == "" {
		logger.Warn("POSTMARK_SERVER_TOKEN not set, outbound email will only be logged")
		return NewDevMailer(logger), nil
	}
	return NewPostmarkMailer(cfg)
}
