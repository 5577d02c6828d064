// Package mail submits drafted emails over SMTP.
package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	gomail "github.com/wneessen/go-mail"

	"aide/internal/config"
	"aide/internal/fault"
	"aide/internal/session"
)

type Sender struct {
	host    string
	from    string
	options []gomail.Option
	logger  *slog.Logger
}

func NewSender(cfg config.MailConfig, logger *slog.Logger) (*Sender, error) {
	if cfg.Address == "" || cfg.Password == "" {
		return nil, fault.Fatalf("mail: EMAIL_ADDRESS and EMAIL_PASSWORD must be set")
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(cfg.Address),
		gomail.WithPassword(cfg.Password),
	}
	if cfg.ImplicitTLS {
		opts = append(opts, gomail.WithSSL())
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSMandatory))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, gomail.WithTimeout(cfg.Timeout))
	}

	return &Sender{host: cfg.Host, from: cfg.Address, options: opts, logger: logger}, nil
}

// Message builds the plaintext message for e without sending it.
func (s *Sender) Message(e session.Email) (*gomail.Msg, error) {
	m := gomail.NewMsg()
	if err := m.From(s.from); err != nil {
		return nil, fault.Fatal("mail from", err)
	}
	if err := m.To(strings.TrimSpace(e.Recipient)); err != nil {
		return nil, fault.Input("mail recipient", fmt.Errorf("invalid address %q: %w", e.Recipient, err))
	}
	m.Subject(e.Subject)
	m.SetDate()
	m.SetMessageID()
	m.SetBodyString(gomail.TypeTextPlain, e.Body)
	return m, nil
}

// Send submits e once. Sends are not retried since a timed out submission may
// still have been delivered.
func (s *Sender) Send(ctx context.Context, e session.Email) error {
	m, err := s.Message(e)
	if err != nil {
		return err
	}

	client, err := gomail.NewClient(s.host, s.options...)
	if err != nil {
		return fault.Fatal("mail client", err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return classify(err)
	}

	s.logger.Info("mail submitted", "host", s.host, "to", e.Recipient)
	return nil
}

func classify(err error) error {
	var se *gomail.SendError
	if errors.As(err, &se) && se.IsTemp() {
		return fault.Transient("smtp send", err)
	}
	// 535 is the SMTP reply for rejected credentials.
	if msg := strings.ToLower(err.Error()); strings.Contains(msg, "authentication") || strings.Contains(msg, "535") {
		return fault.Fatal("smtp send", err)
	}
	if fault.KindOf(err) == fault.KindTransient {
		return fault.Transient("smtp send", err)
	}
	return fault.Service("smtp send", err)
}
