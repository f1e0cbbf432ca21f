// Package notify delivers translated documents by SMTP.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wneessen/go-mail"

	"blog_trans_bot/internal/domain"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
}

type Sender struct {
	client *mail.Client
	logger *slog.Logger
}

func NewSender(cfg Config, logger *slog.Logger) (*Sender, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	return &Sender{
		client: client,
		logger: logger.With("component", "notify"),
	}, nil
}

func (s *Sender) Send(ctx context.Context, email domain.Email) error {
	msg, err := NewMessage(email)
	if err != nil {
		return err
	}

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	s.logger.Info("email sent", "subject", email.Subject, "recipients", len(email.To))
	return nil
}

// NewMessage builds the HTML message for email.
func NewMessage(email domain.Email) (*mail.Msg, error) {
	if len(email.To) == 0 {
		return nil, domain.ErrNoRecipients
	}

	msg := mail.NewMsg()
	if err := msg.From(email.From); err != nil {
		return nil, fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(email.To...); err != nil {
		return nil, fmt.Errorf("set recipients: %w", err)
	}
	msg.Subject(email.Subject)
	msg.SetBodyString(mail.TypeTextHTML, email.HTMLBody)

	return msg, nil
}
