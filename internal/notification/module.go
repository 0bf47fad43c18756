// Package notification sends email in response to lead events. Domain
// modules publish events and never talk to the mail transport directly.
package notification

import (
	"context"
	"net/mail"
	"strings"

	"fantopark_backend/internal/email"
	"fantopark_backend/internal/events"
	"fantopark_backend/platform/config"
	"fantopark_backend/platform/logger"

	"github.com/google/uuid"
)

// Module routes lead events to the email sender.
type Module struct {
	sender  email.Sender
	baseURL string
	log     *logger.Logger
}

// New creates the notification module. A nil sender disables delivery.
func New(sender email.Sender, cfg config.NotificationConfig, log *logger.Logger) *Module {
	if sender == nil {
		sender = email.NoopSender{}
	}
	return &Module{
		sender:  sender,
		baseURL: strings.TrimRight(cfg.GetAppBaseURL(), "/"),
		log:     log,
	}
}

// NewSender returns the SMTP sender when SMTP is configured, otherwise a
// sender that drops everything.
func NewSender(cfg config.SMTPConfig) email.Sender {
	if !cfg.IsSMTPEnabled() {
		return email.NoopSender{}
	}
	return email.NewSMTPSender(
		cfg.GetSMTPHost(), cfg.GetSMTPPort(),
		cfg.GetSMTPUsername(), cfg.GetSMTPPassword(),
		cfg.GetSMTPFromEmail(), cfg.GetSMTPFromName(),
	)
}

// RegisterHandlers subscribes to the lead events that notify an owner.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.LeadAssigned{}.EventName(), m)
	bus.Subscribe(events.LeadFollowUpDue{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.LeadAssigned:
		return m.handleLeadAssigned(ctx, e)
	case events.LeadFollowUpDue:
		return m.handleLeadFollowUpDue(ctx, e)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

func (m *Module) handleLeadAssigned(ctx context.Context, e events.LeadAssigned) error {
	to, ok := mailbox(e.AssignedTo)
	if !ok {
		m.log.Debug("assignee has no email address, skipping notification", "leadId", e.LeadID, "assignee", e.AssignedTo)
		return nil
	}
	// Operators assigning to themselves do not need a notice.
	if strings.EqualFold(e.AssignedTo, e.AssignedBy) {
		return nil
	}

	err := m.sender.SendLeadAssignedEmail(ctx, to, email.LeadAssignedEmail{
		LeadName:   e.LeadName,
		ForEvent:   e.ForEvent,
		Reason:     e.Reason,
		AssignedBy: e.AssignedBy,
		LeadURL:    m.leadURL(e.LeadID),
	})
	if err != nil {
		m.log.Error("failed to send lead assigned email", "leadId", e.LeadID, "error", err)
		return err
	}
	m.log.Info("lead assigned email sent", "leadId", e.LeadID)
	return nil
}

func (m *Module) handleLeadFollowUpDue(ctx context.Context, e events.LeadFollowUpDue) error {
	to, ok := mailbox(e.AssignedTo)
	if !ok {
		return nil
	}

	err := m.sender.SendFollowUpDueEmail(ctx, to, email.FollowUpDueEmail{
		LeadName: e.LeadName,
		DueAt:    e.FollowUpAt,
		LeadURL:  m.leadURL(e.LeadID),
	})
	if err != nil {
		m.log.Error("failed to send follow-up email", "leadId", e.LeadID, "error", err)
		return err
	}
	return nil
}

func (m *Module) leadURL(id uuid.UUID) string {
	if m.baseURL == "" {
		return ""
	}
	return m.baseURL + "/leads/" + id.String()
}

// mailbox returns the bare address when identity is an email address.
func mailbox(identity string) (string, bool) {
	addr, err := mail.ParseAddress(strings.TrimSpace(identity))
	if err != nil {
		return "", false
	}
	return addr.Address, true
}
