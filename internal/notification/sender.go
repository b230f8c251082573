package notification

import (
	"context"
	"fmt"
	"log/slog"

	"gopkg.in/gomail.v2"
)

// Sender delivers a rendered message through one channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig holds outbound mail settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Dialer sends gomail messages. *gomail.Dialer satisfies it.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender renders messages from templates and sends them over SMTP.
type SMTPSender struct {
	dialer Dialer
	from   string
}

// NewSMTPSender creates a sender dialing cfg.Host for every message.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return NewSMTPSenderWithDialer(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg.From)
}

// NewSMTPSenderWithDialer creates a sender over an existing dialer.
func NewSMTPSenderWithDialer(d Dialer, from string) *SMTPSender {
	return &SMTPSender{dialer: d, from: from}
}

// Name returns the name of this sender.
func (s *SMTPSender) Name() string { return "smtp" }

// Send renders msg and delivers it. The dial itself is not interruptible;
// ctx is checked before dialing.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	subject, body, err := Render(msg)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.Addressee)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.Addressee, err)
	}
	return nil
}

// LogSender logs messages instead of sending them. It is used when no SMTP
// host is configured.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a log-only sender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Name returns the name of this sender.
func (s *LogSender) Name() string { return "log" }

// Send renders msg and logs it.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	subject, _, err := Render(msg)
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "log sender: mail not sent, no SMTP host configured",
		slog.String("message_id", msg.ID),
		slog.String("addressee", msg.Addressee),
		slog.String("case", string(msg.Subject)),
		slog.String("subject", subject),
	)
	return nil
}
