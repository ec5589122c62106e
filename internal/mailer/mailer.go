package mailer

import (
	"fmt"

	"github.com/pkg/errors"
	"gopkg.in/gomail.v2"

	"github.com/dukanshop/dukan/config"
)

// Mailer sends transactional mail over SMTP. Sending is best-effort on all
// call sites; a mail failure never fails the triggering request.
type Mailer struct {
	cfg config.SmtpConfig
}

func NewMailer(cfg config.SmtpConfig) *Mailer {
	return &Mailer{cfg: cfg}
}

// SendWelcome greets a freshly registered user.
func (m *Mailer) SendWelcome(email, username string) error {
	if m.cfg.Host == "" {
		return errors.New("smtp is not configured")
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", email)
	msg.SetHeader("Subject", "Welcome to Dukan")
	msg.SetBody("text/html", fmt.Sprintf(
		"<p>Hi %s,</p><p>Your account is ready. Happy shopping!</p>", username))
	dialer := gomail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.Username, m.cfg.Password)
	return errors.WithStack(dialer.DialAndSend(msg))
}
