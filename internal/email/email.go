package email

import (
	"fmt"
	"net/smtp"
)

// Sender delivers plain-text mail over SMTP. A zero-value Sender is not
// configured and Send fails; callers should check Configured first.
type Sender struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

func (s *Sender) Configured() bool {
	return s != nil && s.Host != "" && s.Port != "" && s.Username != "" && s.Password != ""
}

func (s *Sender) Send(to, subject, body string) error {
	if !s.Configured() {
		return fmt.Errorf("SMTP configuration missing")
	}

	from := s.From
	if from == "" {
		from = s.Username
	}

	auth := smtp.PlainAuth("", s.Username, s.Password, s.Host)

	msg := []byte(fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"\r\n"+
		"%s\r\n", from, to, subject, body))

	addr := fmt.Sprintf("%s:%s", s.Host, s.Port)
	return smtp.SendMail(addr, auth, from, []string{to}, msg)
}
