// Package notification turns domain events into outbound email. Delivery of
// mail is best effort and never affects the transactions that triggered it.
package notification

import (
	"context"
	"fmt"
	"html/template"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"

	"leadflow_backend/platform/config"
)

// Sender delivers the notification emails this system sends.
type Sender interface {
	SendDeliveryNotice(ctx context.Context, toEmail, clientName string, leadCount int, exportURL string) error
	SendRunSummary(ctx context.Context, toEmail string, served, skipped, leads, errCount int) error
	SendQuotaAlert(ctx context.Context, toEmail, clientName string, remaining, batchesLeft int) error
}

// NewSender returns the SMTP sender, or a no-op one when email is disabled.
func NewSender(cfg config.EmailConfig) Sender {
	if !cfg.GetEmailEnabled() || cfg.GetSMTPHost() == "" {
		return NoopSender{}
	}
	return &SMTPSender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
	}
}

// NoopSender drops all mail. Used in development and tests.
type NoopSender struct{}

func (NoopSender) SendDeliveryNotice(context.Context, string, string, int, string) error { return nil }
func (NoopSender) SendRunSummary(context.Context, string, int, int, int, int) error      { return nil }
func (NoopSender) SendQuotaAlert(context.Context, string, string, int, int) error        { return nil }

// SMTPSender delivers mail over a direct SMTP connection via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// Compile-time check that SMTPSender implements Sender.
var _ Sender = (*SMTPSender)(nil)

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (s *SMTPSender) SendDeliveryNotice(ctx context.Context, toEmail, clientName string, leadCount int, exportURL string) error {
	subject := fmt.Sprintf("Your batch of %d leads is ready", leadCount)
	link := ""
	if exportURL != "" {
		link = fmt.Sprintf(`<p><a href="%s">Download your leads (link valid for 24 hours)</a></p>`,
			template.HTMLEscapeString(exportURL))
	}
	content := fmt.Sprintf(
		`<p>Hi %s,</p><p>We just delivered %d fresh leads to your account.</p>%s<p>Happy selling!</p>`,
		template.HTMLEscapeString(clientName), leadCount, link)
	return s.send(ctx, toEmail, subject, content)
}

func (s *SMTPSender) SendRunSummary(ctx context.Context, toEmail string, served, skipped, leads, errCount int) error {
	subject := fmt.Sprintf("Delivery run: %d clients served, %d leads", served, leads)
	content := fmt.Sprintf(
		`<p>Delivery run finished.</p><ul><li>Clients served: %d</li><li>Clients skipped: %d</li><li>Leads delivered: %d</li><li>Errors: %d</li></ul>`,
		served, skipped, leads, errCount)
	return s.send(ctx, toEmail, subject, content)
}

func (s *SMTPSender) SendQuotaAlert(ctx context.Context, toEmail, clientName string, remaining, batchesLeft int) error {
	subject := fmt.Sprintf("Quota running low for %s", clientName)
	content := fmt.Sprintf(
		`<p>Client <strong>%s</strong> has %d leads of quota left (%d full batches).</p><p>Consider a top-up before the next run.</p>`,
		template.HTMLEscapeString(clientName), remaining, batchesLeft)
	return s.send(ctx, toEmail, subject, content)
}
