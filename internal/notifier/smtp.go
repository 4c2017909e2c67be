package notifier

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/mail"
	"net/url"

	"github.com/dajohi/goemail"
)

// SMTP sends messages through an SMTP relay.
//
// SMTP implements the Notifier interface.
type SMTP struct {
	smtp        *goemail.SMTP
	mailName    string
	mailAddress string
}

// NewSMTP connects to the relay described by host, a
// "user:password@host:port" string, and sends from the given address.
func NewSMTP(host, mailName, mailAddress string, skipVerify bool) (*SMTP, error) {
	u, err := url.Parse(fmt.Sprintf("smtps://%s", host))
	if err != nil {
		return nil, fmt.Errorf("parse mail host: %w", err)
	}

	a, err := mail.ParseAddress(mailAddress)
	if err != nil {
		return nil, fmt.Errorf("parse mail address: %w", err)
	}

	s, err := goemail.NewSMTP(u.String(), &tls.Config{
		InsecureSkipVerify: skipVerify,
	})
	if err != nil {
		return nil, fmt.Errorf("setup smtp: %w", err)
	}

	return &SMTP{
		smtp:        s,
		mailName:    mailName,
		mailAddress: a.Address,
	}, nil
}

// Send satisfies the Notifier interface.
func (s *SMTP) Send(ctx context.Context, msg Message) error {
	m := goemail.NewMessage(s.mailAddress, msg.Subject, msg.Body)
	m.SetName(s.mailName)
	m.AddTo(msg.To)
	if err := s.smtp.Send(m); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}
