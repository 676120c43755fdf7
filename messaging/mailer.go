package messaging

import (
	"context"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
	"gopkg.in/gomail.v2"
)

// Sender delivers account notification mail. The SMTP implementation is the
// default; tests and queue-backed deployments supply their own.
type Sender interface {
	Send(ctx context.Context, email Email) error
}

// Email is one outbound message.
type Email struct {
	To       []string
	Subject  string
	Body     string
	HTMLBody string
}

// SMTPConfig holds the dialer settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Validate checks the configuration is complete enough to dial.
func (c SMTPConfig) Validate() error {
	if c.Host == "" {
		return goerrors.New("smtp host is required", goerrors.CategoryValidation)
	}
	if c.Port == 0 {
		return goerrors.New("smtp port is required", goerrors.CategoryValidation)
	}
	if c.From == "" {
		return goerrors.New("smtp from address is required", goerrors.CategoryValidation)
	}
	return nil
}

// SMTPSender sends mail through a gomail dialer.
type SMTPSender struct {
	config SMTPConfig
	dialer *gomail.Dialer
}

// NewSMTPSender creates a sender for the given SMTP settings.
func NewSMTPSender(config SMTPConfig) (*SMTPSender, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &SMTPSender{
		config: config,
		dialer: gomail.NewDialer(config.Host, config.Port, config.Username, config.Password),
	}, nil
}

var _ Sender = (*SMTPSender)(nil)

// Send delivers a single message. Delivery respects context cancellation
// only between messages; gomail owns the connection once dialing starts.
func (s *SMTPSender) Send(ctx context.Context, email Email) error {
	if len(email.To) == 0 {
		return goerrors.New("no recipients specified", goerrors.CategoryBadInput)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", s.config.From)
	msg.SetHeader("To", email.To...)
	msg.SetHeader("Subject", email.Subject)

	if email.HTMLBody != "" {
		msg.SetBody("text/html", email.HTMLBody)
		if email.Body != "" {
			msg.AddAlternative("text/plain", email.Body)
		}
	} else {
		msg.SetBody("text/plain", email.Body)
	}

	if err := s.dialer.DialAndSend(msg); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, fmt.Sprintf("failed to send %q", email.Subject))
	}

	return nil
}
