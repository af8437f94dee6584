package email

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"gopkg.in/gomail.v2"

	"schoolerp/internal/platform/config"
)

type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

type Message struct {
	To          string
	Subject     string
	Body        string
	Attachments []Attachment
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New picks the mailer named by EMAIL_PROVIDER.
func New(cfg config.Config) Mailer {
	switch cfg.EmailProvider {
	case "smtp":
		return &SMTPMailer{
			from:   cfg.EmailFrom,
			dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
		}
	case "sendgrid":
		return &SendGridMailer{from: cfg.EmailFrom, client: sendgrid.NewSendClient(cfg.SendGridAPIKey)}
	default:
		return &NoopMailer{}
	}
}

// NoopMailer drops messages but remembers them for inspection.
type NoopMailer struct {
	mu   sync.Mutex
	sent []Message
}

func (m *NoopMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *NoopMailer) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}

type SMTPMailer struct {
	from   string
	dialer *gomail.Dialer
}

func (s *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.dialer.DialAndSend(buildMessage(s.from, msg))
}

func buildMessage(from string, msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)
	for _, att := range msg.Attachments {
		content := att.Content
		settings := []gomail.FileSetting{
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(content)
				return err
			}),
		}
		if att.ContentType != "" {
			settings = append(settings, gomail.SetHeader(map[string][]string{"Content-Type": {att.ContentType}}))
		}
		m.Attach(att.Filename, settings...)
	}
	return m
}

type SendGridMailer struct {
	from   string
	client *sendgrid.Client
}

func (s *SendGridMailer) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return nil
	}
	res, err := s.client.SendWithContext(ctx, buildSendGrid(s.from, msg))
	if err != nil {
		return err
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid rejected message: status %d", res.StatusCode)
	}
	return nil
}

func buildSendGrid(from string, msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	for _, to := range strings.Split(msg.To, ",") {
		if to = strings.TrimSpace(to); to != "" {
			p.AddTos(sgmail.NewEmail("", to))
		}
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(sgmail.NewEmail("", from))
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.Body))
	for _, att := range msg.Attachments {
		m.AddAttachment(&sgmail.Attachment{
			Content:     base64.StdEncoding.EncodeToString(att.Content),
			Type:        att.ContentType,
			Filename:    att.Filename,
			Disposition: "attachment",
		})
	}
	return m
}
