package auth

import (
	"context"
	"fmt"
	"net/smtp"

	"go.uber.org/zap"
)

// SMTPMailer sends the sign-in link over plain SMTP. No mail library is
// pulled in for a single message type; the Mailer interface keeps it
// swappable.
type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func (m *SMTPMailer) SendMagicLink(_ context.Context, email, link string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: Sign in to Quiznote\r\n\r\n"+
		"Click the link to sign in:\r\n\r\n%s\r\n\r\n"+
		"The link is valid once and expires shortly.\r\n", m.From, email, link)

	addr := fmt.Sprintf("%s:%d", m.Host, m.Port)
	var auth smtp.Auth
	if m.Username != "" {
		auth = smtp.PlainAuth("", m.Username, m.Password, m.Host)
	}
	return smtp.SendMail(addr, auth, m.From, []string{email}, []byte(msg))
}

// LogMailer logs the link instead of sending it. Default for local runs.
type LogMailer struct{ Log *zap.Logger }

func (m *LogMailer) SendMagicLink(_ context.Context, email, link string) error {
	m.Log.Info("magic link issued", zap.String("email", email), zap.String("link", link))
	return nil
}
