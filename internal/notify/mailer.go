package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// Mailer sends one HTML message.
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}

// SMTPConfig configures the SMTP mailer.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	Timeout  time.Duration
}

// SMTPMailer delivers over SMTP with go-mail.
type SMTPMailer struct {
	client *mail.Client
	from   string
	name   string
	logger *zap.Logger
}

// NewSMTPMailer builds an SMTP client. No connection is made until Init or Send.
func NewSMTPMailer(cfg SMTPConfig, logger *zap.Logger) (*SMTPMailer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
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
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &SMTPMailer{client: client, from: from, name: cfg.FromName, logger: logger}, nil
}

// Init dials the server once so misconfiguration shows up at startup.
func (m *SMTPMailer) Init(ctx context.Context) error {
	if err := m.client.DialWithContext(ctx); err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	m.logger.Info("mail server ready")
	return m.client.Close()
}

// Send delivers an HTML message to a single recipient.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, html string) error {
	msg := mail.NewMsg()
	var err error
	if m.name != "" {
		err = msg.FromFormat(m.name, m.from)
	} else {
		err = msg.From(m.from)
	}
	if err != nil {
		return fmt.Errorf("from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("to address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, html)
	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// Shutdown closes any open connection.
func (m *SMTPMailer) Shutdown() error {
	return m.client.Close()
}

// LogMailer writes messages to the log instead of sending them. Used when no SMTP host is set.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

// Send logs the message.
func (m *LogMailer) Send(_ context.Context, to, subject, _ string) error {
	m.logger.Info("email (smtp disabled)", zap.String("to", to), zap.String("subject", subject))
	return nil
}
