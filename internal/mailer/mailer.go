// Package mailer sends transactional email, currently only password reset
// messages. A no-op implementation backs deployments without SMTP.
package mailer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"

	"github.com/prn-tf/casebook/internal/config"
)

// Mailer sends password reset emails.
type Mailer interface {
	// SendPasswordReset emails a reset link built from the token.
	SendPasswordReset(ctx context.Context, to, token string) error
}

// SMTPMailer implements Mailer over SMTP using gomail.
type SMTPMailer struct {
	cfg    config.SMTPConfig
	logger zerolog.Logger
}

// NewSMTPMailer creates a new SMTP mailer.
func NewSMTPMailer(cfg config.SMTPConfig, logger zerolog.Logger) *SMTPMailer {
	return &SMTPMailer{
		cfg:    cfg,
		logger: logger.With().Str("component", "mailer").Logger(),
	}
}

// SendPasswordReset emails a reset link built from the token.
func (m *SMTPMailer) SendPasswordReset(ctx context.Context, to, token string) error {
	resetURL := fmt.Sprintf("%s?token=%s", m.cfg.ResetBaseURL, token)

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "Reset your Casebook password")
	msg.SetBody("text/plain", fmt.Sprintf(
		"A password reset was requested for your account.\n\n"+
			"Open the link below to choose a new password. The link expires soon.\n\n%s\n\n"+
			"If you did not request this, you can ignore this email.\n",
		resetURL,
	))

	dialer := gomail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.Username, m.cfg.Password)

	done := make(chan error, 1)
	go func() {
		done <- dialer.DialAndSend(msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send reset email: %w", err)
		}
		m.logger.Info().Str("to", to).Msg("password reset email sent")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NoopMailer discards mail. Used when SMTP is disabled; the reset token still
// lands in the database so operators can recover accounts manually.
type NoopMailer struct {
	logger zerolog.Logger
}

// NewNoopMailer creates a mailer that only logs.
func NewNoopMailer(logger zerolog.Logger) *NoopMailer {
	return &NoopMailer{logger: logger.With().Str("component", "mailer").Logger()}
}

// SendPasswordReset logs the request without sending anything.
func (m *NoopMailer) SendPasswordReset(ctx context.Context, to, token string) error {
	m.logger.Warn().Str("to", to).Msg("smtp disabled, reset email not sent")
	return nil
}
