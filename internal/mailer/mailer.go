package mailer

import (
	"fmt"
	"net/smtp"

	"github.com/rs/zerolog"
)

// Mailer sends registration confirmation e-mail over plain SMTP.
type Mailer struct {
	from     string
	password string
	host     string
	port     string
	log      *zerolog.Logger
}

func New(from, password, host, port string, log *zerolog.Logger) *Mailer {
	return &Mailer{from: from, password: password, host: host, port: port, log: log}
}

// Enabled reports whether SMTP credentials were configured at all.
func (m *Mailer) Enabled() bool {
	return m.from != "" && m.password != ""
}

// SendAdmittedEmail notifies a participant that their registration was
// accepted.
func (m *Mailer) SendAdmittedEmail(eventName, fullName, recipientEmail string) error {
	if !m.Enabled() {
		m.log.Debug().Msg("mailer disabled, skipping confirmation e-mail")
		return nil
	}

	subject := "Your registration is confirmed"
	body := fmt.Sprintf("Hello %s,\n\nYour registration for \"%s\" has been confirmed.\nSee you there!",
		fullName, eventName)

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		m.from, recipientEmail, subject, body,
	)

	addr := m.host + ":" + m.port
	authSMTP := smtp.PlainAuth("", m.from, m.password, m.host)

	if err := smtp.SendMail(addr, authSMTP, m.from, []string{recipientEmail}, []byte(msg)); err != nil {
		m.log.Warn().Msgf("failed to send e-mail to %s: %v", recipientEmail, err)
		return fmt.Errorf("send email: %w", err)
	}

	m.log.Info().Msgf("confirmation e-mail sent to %s", recipientEmail)
	return nil
}
