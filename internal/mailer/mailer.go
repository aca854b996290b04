package mailer

import (
	"fmt"
	"log/slog"
	"net/smtp"
	"net/url"
)

// Mailer sends the password reset mail over SMTP. Without credentials it
// runs in dev mode and only logs the reset link
// would.
type Mailer struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	BaseURL  string
	Logger   *slog.Logger
}

func (m *Mailer) devMode() bool {
	return m.Username == "" || m.Password == ""
}

func (m *Mailer) resetLink(token string) string {
	return m.BaseURL + "/reset-password?token=" + url.QueryEscape(token)
}

// SendPasswordReset delivers the reset link. Callers treat failures as
// non-fatal and must not surface them to the requester, so the existence of
// an account is never disclosed.
func (m *Mailer) SendPasswordReset(toEmail, token string) error {
	link := m.resetLink(token)

	if m.devMode() {
		if m.Logger != nil {
			m.Logger.Info("password reset link (dev mode)", "email", toEmail, "link", link)
		}
		return nil
	}

	body := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: Password reset\r\n\r\n"+
			"Someone requested a password reset for this address.\r\n"+
			"If that was you, follow the link below within one hour:\r\n\r\n%s\r\n",
		m.From, toEmail, link,
	)

	addr := m.Host + ":" + m.Port
	auth := smtp.PlainAuth("", m.Username, m.Password, m.Host)
	if err := smtp.SendMail(addr, auth, m.From, []string{toEmail}, []byte(body)); err != nil {
		return fmt.Errorf("mailer: send: %w", err)
	}
	return nil
}
