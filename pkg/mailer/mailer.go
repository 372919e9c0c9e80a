package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// ErrNoRecipient is returned for a message without a To address.
var ErrNoRecipient = errors.New("mailer: message has no recipient")

// Message is one outgoing email.
type Message struct {
	ToName    string
	ToAddress string
	Subject   string
	Text      string
	HTML      string
}

// Sender delivers a message synchronously and reports the outcome.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SendGrid sends mail through the SendGrid v3 API.
type SendGrid struct {
	key  string
	from *sgmail.Email
}

// NewSendGrid creates a SendGrid sender.
func NewSendGrid(apiKey, fromName, fromAddress string) *SendGrid {
	return &SendGrid{key: apiKey, from: sgmail.NewEmail(fromName, fromAddress)}
}

func (s *SendGrid) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	p.AddTos(sgmail.NewEmail(msg.ToName, msg.ToAddress))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.Text))
	if msg.HTML != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}
	return m
}

// Send posts the message. Any status >= 400 is an error.
func (s *SendGrid) Send(ctx context.Context, msg Message) error {
	if msg.ToAddress == "" {
		return ErrNoRecipient
	}
	req := sendgrid.GetRequest(s.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(msg))

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

// Console logs messages instead of sending them. Used when no API key is configured.
type Console struct {
	logger *zap.Logger

	mu   sync.Mutex
	sent []Message
}

// NewConsole creates a logging sender.
func NewConsole(logger *zap.Logger) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Console{logger: logger}
}

// Send records and logs msg.
func (c *Console) Send(_ context.Context, msg Message) error {
	if msg.ToAddress == "" {
		return ErrNoRecipient
	}
	c.mu.Lock()
	c.sent = append(c.sent, msg)
	c.mu.Unlock()
	c.logger.Info("email (console)",
		zap.String("to", msg.ToAddress),
		zap.String("subject", msg.Subject),
		zap.String("text", msg.Text),
	)
	return nil
}

// Sent returns a copy of every message sent so far.
func (c *Console) Sent() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.sent...)
}

// New returns SendGrid when apiKey is set, Console otherwise.
func New(apiKey, fromName, fromAddress string, logger *zap.Logger) Sender {
	if apiKey == "" {
		if logger != nil {
			logger.Warn("SENDGRID_API_KEY not set, emails are logged only")
		}
		return NewConsole(logger)
	}
	return NewSendGrid(apiKey, fromName, fromAddress)
}
