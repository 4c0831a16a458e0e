package notify

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
)

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	FromName string `yaml:"from_name"`
	// Opportunistic allows plaintext delivery when the server does not offer
	// STARTTLS. Intended for local relays only.
	Opportunistic bool `yaml:"opportunistic"`
}

// SMTPMailer sends messages through a single SMTP relay.
type SMTPMailer struct {
	client   *mail.Client
	from     string
	fromName string
}

func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, fmt.Errorf("notify: smtp host and from address are required")
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	policy := mail.TLSMandatory
	if cfg.Opportunistic {
		policy = mail.TLSOpportunistic
	}
	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTLSPolicy(policy),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("notify: smtp client: %w", err)
	}
	return &SMTPMailer{client: client, from: cfg.From, fromName: cfg.FromName}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	out, err := buildMsg(m.from, m.fromName, msg)
	if err != nil {
		return err
	}
	if err := m.client.DialAndSendWithContext(ctx, out); err != nil {
		return fmt.Errorf("notify: send to %s: %w", msg.To, err)
	}
	return nil
}

func buildMsg(from, fromName string, msg Message) (*mail.Msg, error) {
	out := mail.NewMsg()
	var err error
	if fromName != "" {
		err = out.FromFormat(fromName, from)
	} else {
		err = out.From(from)
	}
	if err != nil {
		return nil, fmt.Errorf("notify: from address: %w", err)
	}
	if msg.Name != "" {
		err = out.AddToFormat(msg.Name, msg.To)
	} else {
		err = out.To(msg.To)
	}
	if err != nil {
		return nil, fmt.Errorf("notify: recipient: %w", err)
	}
	out.Subject(msg.Subject)
	out.SetBodyString(mail.TypeTextPlain, msg.Body)
	return out, nil
}
