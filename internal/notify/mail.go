package notify

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// MailConfig configures the optional email channel. Nothing in
// shared/config.py names SMTP settings explicitly (only the webhook
// URLs), so this struct's fields are inferred from the gomail.v2 API
// surface itself rather than ported from a specific Python field.
type MailConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	Recipients []string
}

// MailSink delivers an Event as a plain-text email via SMTP, giving the
// spec's "notification channels" interface a second concrete
// implementation beyond the Slack/Teams webhook so gomail.v2 is actually
// exercised rather than only declared in go.mod.
type MailSink struct {
	cfg MailConfig
}

// NewMailSink builds a sink that dials cfg.Host:cfg.Port on every send.
// gomail.v2 does not expose a pooled sender in its public API, so each
// Notify call opens and closes its own SMTP connection.
func NewMailSink(cfg MailConfig) *MailSink {
	return &MailSink{cfg: cfg}
}

func (m *MailSink) Notify(ctx context.Context, event Event) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", m.cfg.Recipients...)
	msg.SetHeader("Subject", fmt.Sprintf("[certguard] %s/%s: %s", event.ServiceID, event.Environment, event.Decision))
	msg.SetBody("text/plain", fmt.Sprintf(
		"Run: %s\nService: %s\nEnvironment: %s\nDecision: %s\nConfidence score: %d\n\n%s",
		event.RunID, event.ServiceID, event.Environment, event.Decision, event.ConfidenceScore, event.Explanation,
	))

	dialer := gomail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.Username, m.cfg.Password)
	if err := dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}
