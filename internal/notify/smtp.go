package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/spec-kit/helpdesk/internal/config"
)

// SMTPSender delivers messages through an SMTP relay.
type SMTPSender struct {
	from   string
	dialer *gomail.Dialer
}

// NewSMTPSender configures a gomail dialer for the relay.
func NewSMTPSender(cfg config.SMTPConfig, from string) *SMTPSender {
	return &SMTPSender{
		from:   from,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

// Send dials the relay once per message.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.PlainBody)
	if msg.HTMLBody != "" {
		m.AddAlternative("text/html", msg.HTMLBody)
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// LogSender records messages instead of delivering them. Used when no relay is configured.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender returns a sender that only logs.
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("email (not delivered: smtp disabled)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject))
	return nil
}

// NewSender picks SMTP when a relay host is configured.
func NewSender(cfg config.Config, logger *zap.Logger) Sender {
	if cfg.SMTP.Enabled() {
		logger.Info("smtp notifications enabled", zap.String("host", cfg.SMTP.Host), zap.Int("port", cfg.SMTP.Port))
		return NewSMTPSender(cfg.SMTP, cfg.Notification.EmailFrom)
	}
	logger.Warn("SMTP_HOST not provided; notifications will only be logged")
	return NewLogSender(logger)
}
