// Package mailer sends the transactional emails of the API.
package mailer

import (
	"context"
	"errors"

	"gopkg.in/gomail.v2"

	"github.com/iliyamo/tour-booking/internal/config"
)

// Email is a plain-text message.
type Email struct {
	To      []string
	Subject string
	Body    string
}

// Mailer delivers an Email.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

var ErrNoRecipients = errors.New("no recipients specified")

// SMTP sends mail through an SMTP relay.
type SMTP struct {
	from   string
	dialer *gomail.Dialer
}

func NewSMTP(cfg config.SMTPConfig) *SMTP {
	return &SMTP{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (m *SMTP) Send(ctx context.Context, email Email) error {
	if len(email.To) == 0 {
		return ErrNoRecipients
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.dialer.DialAndSend(m.message(email))
}

func (m *SMTP) message(email Email) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", email.To...)
	msg.SetHeader("Subject", email.Subject)
	msg.SetBody("text/plain", email.Body)
	return msg
}
