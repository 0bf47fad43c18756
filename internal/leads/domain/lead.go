package domain

import (
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Lead is a sales lead with its client grouping and assignment provenance.
type Lead struct {
	ID             uuid.UUID
	Name           string
	Email          string
	Phone          string
	Company        string
	BusinessType   string
	Source         string
	LeadForEvent   string
	PotentialValue *float64
	Attributes     map[string]any

	Status       Status
	AssignedTo   string
	FollowUpDate *time.Time

	ClientID           string
	IsPrimaryLead      bool
	ClientTotalLeads   int
	ClientEvents       []string
	ClientFirstContact *time.Time

	ManualAssignmentOverride bool
	AutoAssigned             bool
	AssignmentReason         string
	AssignmentRuleID         *uuid.UUID
	AssignmentRuleName       string
	AssignedAt               *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Intake is a raw lead as it arrives from a form, a webhook or an import row.
type Intake struct {
	Name           string
	Email          string
	Phone          string
	Company        string
	BusinessType   string
	Source         string
	LeadForEvent   string
	PotentialValue *float64
	Attributes     map[string]any
	// AssignedTo is a manual owner chosen by the operator.
	AssignedTo string
}

// Record flattens the intake into the field bag assignment rules look at.
// Named fields win over attributes with the same key.
func (in Intake) Record() map[string]any {
	rec := make(map[string]any, len(in.Attributes)+8)
	maps.Copy(rec, in.Attributes)
	setIfNotEmpty(rec, "name", in.Name)
	setIfNotEmpty(rec, "email", in.Email)
	setIfNotEmpty(rec, "phone", in.Phone)
	setIfNotEmpty(rec, "company", in.Company)
	setIfNotEmpty(rec, "business_type", in.BusinessType)
	setIfNotEmpty(rec, "source", in.Source)
	setIfNotEmpty(rec, "lead_for_event", in.LeadForEvent)
	if in.PotentialValue != nil {
		rec["potential_value"] = *in.PotentialValue
	}
	return rec
}

// Intake returns the intake fields of a stored lead, used when an existing
// lead goes through assignment again.
func (l Lead) Intake() Intake {
	return Intake{
		Name:           l.Name,
		Email:          l.Email,
		Phone:          l.Phone,
		Company:        l.Company,
		BusinessType:   l.BusinessType,
		Source:         l.Source,
		LeadForEvent:   l.LeadForEvent,
		PotentialValue: l.PotentialValue,
		Attributes:     l.Attributes,
	}
}

func setIfNotEmpty(rec map[string]any, key, value string) {
	if v := strings.TrimSpace(value); v != "" {
		rec[key] = v
	}
}

// Client is derived from the leads sharing a client id.
type Client struct {
	ClientID          string
	TotalLeads        int
	PrimaryLeadID     uuid.UUID
	PrimaryAssignedTo string
	Events            []string
	FirstContact      *time.Time
	Leads             []Lead
}

// BuildClient derives a client from its leads, which must be ordered oldest
// first. It returns nil for an empty slice.
//
// The primary owner is the assignee of the oldest lead flagged primary,
// falling back to the oldest lead.
func BuildClient(clientID string, leads []Lead) *Client {
	if len(leads) == 0 {
		return nil
	}

	primary := leads[0]
	for _, l := range leads {
		if l.IsPrimaryLead {
			primary = l
			break
		}
	}

	first := leads[0].CreatedAt
	return &Client{
		ClientID:          clientID,
		TotalLeads:        len(leads),
		PrimaryLeadID:     primary.ID,
		PrimaryAssignedTo: primary.AssignedTo,
		Events:            DistinctEvents(leads),
		FirstContact:      &first,
		Leads:             leads,
	}
}

// DistinctEvents lists the events a client asked about, in first-seen order.
func DistinctEvents(leads []Lead) []string {
	seen := make(map[string]struct{}, len(leads))
	events := make([]string, 0, len(leads))
	for _, l := range leads {
		ev := strings.TrimSpace(l.LeadForEvent)
		if ev == "" {
			continue
		}
		if _, ok := seen[ev]; ok {
			continue
		}
		seen[ev] = struct{}{}
		events = append(events, ev)
	}
	return events
}

// StatusChange is one row of a lead's status history.
type StatusChange struct {
	ID           int64
	LeadID       uuid.UUID
	OldStatus    Status
	NewStatus    Status
	ChangedBy    string
	FollowUpDate *time.Time
	Note         string
	CreatedAt    time.Time
}

// OwnerExcluding returns the client's primary owner as seen by lead id.
// A lead is not its own client history.
func (c *Client) OwnerExcluding(id uuid.UUID) string {
	if c == nil {
		return ""
	}
	if c.PrimaryLeadID != id {
		return c.PrimaryAssignedTo
	}
	others := make([]Lead, 0, len(c.Leads))
	for _, l := range c.Leads {
		if l.ID != id {
			others = append(others, l)
		}
	}
	if rest := BuildClient(c.ClientID, others); rest != nil {
		return rest.PrimaryAssignedTo
	}
	return ""
}
