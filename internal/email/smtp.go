// Package email sends outbound reminder emails over SMTP.
package email

import (
	"context"
	"fmt"
	"net"
	"time"

	"mailpilot_backend/platform/config"

	gomail "github.com/wneessen/go-mail"
)

// SMTPSender delivers reminder emails via a direct SMTP connection.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
	enabled   bool
}

// NewSMTPSender creates a new SMTPSender from the email configuration.
func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	return &SMTPSender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
		enabled:   cfg.IsEmailEnabled(),
	}
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	if !s.enabled {
		// Email delivery is optional; in-app notifications are the
		// primary channel.
		return nil
	}

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

// SendOverdueReminderEmail tells the user a follow-up reminder has become
// overdue.
func (s *SMTPSender) SendOverdueReminderEmail(ctx context.Context, toEmail, reminderTitle, threadURL string) error {
	content, err := renderEmailTemplate("overdue_reminder.html", overdueReminderEmailData{
		baseEmailData: baseEmailData{
			Title:    subjectOverdueReminder,
			Heading:  "Opfølgning forfalden",
			CTALabel: "Åbn tråden",
			CTAURL:   threadURL,
		},
		ReminderTitle: reminderTitle,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectOverdueReminder, content)
}

// SendFollowupDigestEmail summarizes the day's due reminders for a user.
func (s *SMTPSender) SendFollowupDigestEmail(ctx context.Context, toEmail string, dueCount int, listURL string) error {
	subject := fmt.Sprintf(subjectFollowupDigestFmt, dueCount)
	content, err := renderEmailTemplate("followup_digest.html", followupDigestEmailData{
		baseEmailData: baseEmailData{
			Title:    subject,
			Heading:  "Dine opfølgninger",
			CTALabel: "Se alle påmindelser",
			CTAURL:   listURL,
		},
		DueCount: dueCount,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content)
}
