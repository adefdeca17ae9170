package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"

	"github.com/jordan-wright/email"
)

// SMTPConfig configures the email sender.
type SMTPConfig struct {
	Server   string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// Email sends each message as a plain-text mail.
type Email struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, e *email.Email) error
}

// NewEmail returns an email sender.
func NewEmail(cfg SMTPConfig) *Email {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &Email{
		cfg: cfg,
		send: func(addr string, a smtp.Auth, e *email.Email) error {
			return e.Send(addr, a)
		},
	}
}

func (s *Email) Send(_ context.Context, msg Message) error {
	mail := email.NewEmail()
	mail.From = fmt.Sprintf("FairGame <%s>", s.cfg.From)
	mail.To = s.cfg.To
	mail.Subject = "FairGame: " + msg.Title
	mail.Text = []byte(msg.Body)
	if len(msg.Screenshot) > 0 {
		if _, err := mail.Attach(bytes.NewReader(msg.Screenshot), msg.Tag+".png", "image/png"); err != nil {
			return fmt.Errorf("attach screenshot: %w", err)
		}
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Server, s.cfg.Port)
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Server)
	if err := s.send(addr, auth, mail); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}
