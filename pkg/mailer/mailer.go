// Package mailer delivers notification copies by email.
package mailer

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/khalilhajj/PfeManagement/config"
)

var (
	host     = "https://api.sendgrid.com"
	endpoint = "/v3/mail/send"
)

// Message a plain-text email to a single recipient.
type Message struct {
	ToName    string
	ToAddress string
	Subject   string
	Text      string
}

// Mailer sends messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New returns a SendGrid mailer when configured, otherwise a mailer that
// only logs.
func New(cfg *config.MailConfig, logger *zap.Logger) Mailer {
	if !cfg.Enabled() {
		logger.Info("email delivery disabled, sendgrid key or sender missing")
		return &logMailer{logger: logger}
	}
	return NewSendGrid(cfg.SendGridAPIKey, cfg.AppName, cfg.From, logger)
}

// ── SendGrid ──

type sendGridMailer struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
	logger     *zap.Logger
}

// NewSendGrid builds a SendGrid v3 mailer.
func NewSendGrid(key, appName, fromEmail string, logger *zap.Logger) Mailer {
	return &sendGridMailer{
		key:        key,
		from:       sgmail.NewEmail(appName, fromEmail),
		subjPrefix: "[" + appName + "] ",
		logger:     logger,
	}
}

func (m *sendGridMailer) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = m.subjPrefix + msg.Subject
	p.AddTos(sgmail.NewEmail(msg.ToName, msg.ToAddress))

	v3 := sgmail.NewV3Mail()
	v3.SetFrom(m.from)
	v3.AddPersonalizations(p)
	v3.AddContent(sgmail.NewContent("text/plain", msg.Text))
	return v3
}

func (m *sendGridMailer) Send(_ context.Context, msg Message) error {
	if msg.ToAddress == "" {
		return nil
	}
	req := sendgrid.GetRequest(m.key, endpoint, host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m.prepare(msg))

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid: status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

// ── Log only ──

type logMailer struct {
	logger *zap.Logger
}

func (m *logMailer) Send(_ context.Context, msg Message) error {
	m.logger.Debug("email not sent, delivery disabled",
		zap.String("to", msg.ToAddress),
		zap.String("subject", msg.Subject),
	)
	return nil
}
