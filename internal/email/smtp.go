package email

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// LeadAssignedEmail is the content of an assignment notice.
type LeadAssignedEmail struct {
	LeadName   string
	ForEvent   string
	Reason     string
	AssignedBy string
	LeadURL    string
}

// FollowUpDueEmail is the content of a follow-up reminder.
type FollowUpDueEmail struct {
	LeadName string
	DueAt    time.Time
	LeadURL  string
}

// Sender delivers notification email.
type Sender interface {
	SendLeadAssignedEmail(ctx context.Context, toEmail string, msg LeadAssignedEmail) error
	SendFollowUpDueEmail(ctx context.Context, toEmail string, msg FollowUpDueEmail) error
}

type NoopSender struct{}

func (NoopSender) SendLeadAssignedEmail(context.Context, string, LeadAssignedEmail) error {
	return nil
}

func (NoopSender) SendFollowUpDueEmail(context.Context, string, FollowUpDueEmail) error {
	return nil
}

// SMTPSender implements Sender over a direct SMTP connection via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSMTPSender creates a new SMTPSender with the given SMTP credentials.
func NewSMTPSender(host string, port int, username, password, fromEmail, fromName string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

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

	opts := []gomail.Option{
		gomail.WithPort(s.port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15 * time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	}
	if s.username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.username),
			gomail.WithPassword(s.password),
		)
	}

	client, err := gomail.NewClient(s.host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

func (s *SMTPSender) SendLeadAssignedEmail(ctx context.Context, toEmail string, m LeadAssignedEmail) error {
	content, subject, err := renderLeadAssigned(m)
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content)
}

func (s *SMTPSender) SendFollowUpDueEmail(ctx context.Context, toEmail string, m FollowUpDueEmail) error {
	content, subject, err := renderFollowUpDue(m)
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content)
}

func renderLeadAssigned(m LeadAssignedEmail) (string, string, error) {
	name := displayName(m.LeadName)
	content, err := renderEmailTemplate("lead_assigned.html", leadAssignedEmailData{
		baseEmailData: baseEmailData{
			Title:    "New lead assigned",
			Heading:  "A lead has been assigned to you",
			CTALabel: "Open lead",
			CTAURL:   m.LeadURL,
		},
		LeadName:   name,
		ForEvent:   m.ForEvent,
		Reason:     m.Reason,
		AssignedBy: m.AssignedBy,
	})
	return content, fmt.Sprintf(subjectLeadAssignedFmt, name), err
}

func renderFollowUpDue(m FollowUpDueEmail) (string, string, error) {
	name := displayName(m.LeadName)
	content, err := renderEmailTemplate("follow_up_due.html", followUpDueEmailData{
		baseEmailData: baseEmailData{
			Title:    "Follow-up due",
			Heading:  "Time to follow up",
			CTALabel: "Open lead",
			CTAURL:   m.LeadURL,
		},
		LeadName: name,
		DueAt:    m.DueAt.UTC().Format("02 Jan 2006 15:04 MST"),
	})
	return content, fmt.Sprintf(subjectFollowUpDueFmt, name), err
}

func displayName(name string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	return "unnamed lead"
}
