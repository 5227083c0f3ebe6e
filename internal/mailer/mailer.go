// AngelaMos | 2026
// mailer.go

package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mail "github.com/go-mail/mail"

	"github.com/nfphealth/nfp-backend/internal/config"
)

type Message struct {
	To      []string
	Bcc     []string
	Subject string
	Text    string
}

// Sender delivers a plain-text message. Implementations are safe for
// concurrent use.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type SMTPSender struct {
	Name    string
	Host    string
	Port    int
	From    string
	User    string
	Pass    string
	Timeout time.Duration

	logger *slog.Logger
	dial   func(d *mail.Dialer, m *mail.Message) error
}

func NewSMTPSender(
	name, host string,
	port int,
	from, user, pass string,
	logger *slog.Logger,
) *SMTPSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPSender{
		Name:    name,
		Host:    host,
		Port:    port,
		From:    from,
		User:    user,
		Pass:    pass,
		Timeout: 10 * time.Second,
		logger:  logger,
		dial: func(d *mail.Dialer, m *mail.Message) error {
			return d.DialAndSend(m)
		},
	}
}

// Select picks the configured transport: the SendGrid relay when a key and
// from-address are present, then authenticated SMTP, else nil.
func Select(cfg config.MailConfig, logger *slog.Logger) Sender {
	if cfg.SendGridKey != "" && cfg.SendGridFrom != "" {
		return NewSMTPSender("sendgrid",
			cfg.SendGridHost, cfg.SendGridPort,
			cfg.SendGridFrom, "apikey", cfg.SendGridKey,
			logger,
		)
	}

	if cfg.SMTPUser != "" && cfg.SMTPPass != "" {
		return NewSMTPSender("smtp",
			cfg.SMTPHost, cfg.SMTPPort,
			cfg.SMTPUser, cfg.SMTPUser, cfg.SMTPPass,
			logger,
		)
	}

	return nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 && len(msg.Bcc) == 0 {
		return fmt.Errorf("send mail: no recipients")
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}

	m := s.build(msg)

	d := mail.NewDialer(s.Host, s.Port, s.User, s.Pass)
	d.Timeout = s.Timeout
	d.TLSConfig = &tls.Config{
		ServerName: s.Host,
		MinVersion: tls.VersionTLS12,
	}

	if err := s.dial(d, m); err != nil {
		s.logger.ErrorContext(ctx, "smtp send failed",
			"transport", s.Name,
			"host", s.Host,
			"error", err,
		)
		return fmt.Errorf("smtp send via %s: %w", s.Name, err)
	}

	s.logger.InfoContext(ctx, "email sent",
		"transport", s.Name,
		"recipients", len(msg.To)+len(msg.Bcc),
	)
	return nil
}

func (s *SMTPSender) build(msg Message) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", s.From)

	to := msg.To
	if len(to) == 0 {
		// bcc-only mail is addressed to the sender
		to = []string{s.From}
	}
	m.SetHeader("To", to...)

	if len(msg.Bcc) > 0 {
		m.SetHeader("Bcc", msg.Bcc...)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Text)

	return m
}

// Confirmation acknowledges a stored enquiry to the person who sent it.
func Confirmation(to, name, program, message, signature string) Message {
	lines := []string{
		fmt.Sprintf("Hi %s,", name),
		"",
		"Thanks for your enquiry:",
		"",
		message,
		"",
		signature,
	}

	return Message{
		To:      []string{to},
		Subject: fmt.Sprintf("We received your enquiry about %s", program),
		Text:    strings.Join(lines, "\n"),
	}
}

func Verification(to, name, link, signature string) Message {
	lines := []string{
		fmt.Sprintf("Hi %s,", name),
		"",
		"Please confirm your email address by opening the link below:",
		"",
		link,
		"",
		"The link expires in 24 hours.",
		"",
		signature,
	}

	return Message{
		To:      []string{to},
		Subject: "Verify your email address",
		Text:    strings.Join(lines, "\n"),
	}
}

// Notification is the broadcast sent by the bulk email endpoint.
func Notification(recipients []string, text string) Message {
	return Message{
		Bcc:     recipients,
		Subject: "Notification",
		Text:    text,
	}
}
