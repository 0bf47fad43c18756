package transport

import (
	"time"

	"github.com/google/uuid"
)

// Request DTOs

// LeadIntakeRequest is one raw lead, from the create form or an import row.
type LeadIntakeRequest struct {
	Name           string         `json:"name" validate:"max=200"`
	Email          string         `json:"email,omitempty" validate:"omitempty,email,max=320"`
	Phone          string         `json:"phone,omitempty" validate:"max=40"`
	Company        string         `json:"company,omitempty" validate:"max=200"`
	BusinessType   string         `json:"business_type,omitempty" validate:"max=50"`
	Source         string         `json:"source,omitempty" validate:"max=100"`
	LeadForEvent   string         `json:"lead_for_event,omitempty" validate:"max=200"`
	PotentialValue *float64       `json:"potential_value,omitempty" validate:"omitempty,min=0"`
	Attributes     map[string]any `json:"attributes,omitempty"`
	AssignedTo     string         `json:"assigned_to,omitempty" validate:"max=320"`
}

type ImportLeadsRequest struct {
	Leads []LeadIntakeRequest `json:"leads" validate:"required,min=1,max=5000,dive"`
}

type BulkAssignRequest struct {
	LeadIDs []uuid.UUID `json:"lead_ids" validate:"max=1000"`
}

type AssignLeadRequest struct {
	AssignedTo string `json:"assigned_to" validate:"required,notblank,max=320"`
}

// UpdateStatusRequest changes a lead's status. An empty status asks the
// server to pick the only possible next one.
type UpdateStatusRequest struct {
	Status       string     `json:"status" validate:"max=50"`
	FollowUpDate *time.Time `json:"follow_up_date,omitempty"`
	Note         string     `json:"note,omitempty" validate:"max=2000"`
}

// Response DTOs

type LeadResponse struct {
	ID                       uuid.UUID      `json:"id"`
	Name                     string         `json:"name"`
	Email                    string         `json:"email,omitempty"`
	Phone                    string         `json:"phone,omitempty"`
	Company                  string         `json:"company,omitempty"`
	BusinessType             string         `json:"business_type,omitempty"`
	Source                   string         `json:"source,omitempty"`
	LeadForEvent             string         `json:"lead_for_event,omitempty"`
	PotentialValue           *float64       `json:"potential_value,omitempty"`
	Attributes               map[string]any `json:"attributes,omitempty"`
	Status                   string         `json:"status"`
	AssignedTo               string         `json:"assigned_to,omitempty"`
	FollowUpDate             *time.Time     `json:"follow_up_date,omitempty"`
	ClientID                 string         `json:"client_id"`
	IsPrimaryLead            bool           `json:"is_primary_lead"`
	ClientTotalLeads         int            `json:"client_total_leads"`
	ClientEvents             []string       `json:"client_events"`
	ClientFirstContact       *time.Time     `json:"client_first_contact,omitempty"`
	ManualAssignmentOverride bool           `json:"manual_assignment_override"`
	AutoAssigned             bool           `json:"auto_assigned"`
	AssignmentReason         string         `json:"assignment_reason,omitempty"`
	AssignmentRuleID         *uuid.UUID     `json:"assignment_rule_id,omitempty"`
	AssignmentRuleName       string         `json:"assignment_rule_name,omitempty"`
	AssignedAt               *time.Time     `json:"assigned_at,omitempty"`
	CreatedAt                time.Time      `json:"created_at"`
	UpdatedAt                time.Time      `json:"updated_at"`
}

type AssignmentResponse struct {
	AssignedTo   string     `json:"assigned_to,omitempty"`
	Source       string     `json:"source"`
	Reason       string     `json:"reason"`
	AutoAssigned bool       `json:"auto_assigned"`
	RuleID       *uuid.UUID `json:"rule_id,omitempty"`
	RuleName     string     `json:"rule_name,omitempty"`
	Override     bool       `json:"override"`
}

type CreateLeadResponse struct {
	Lead       LeadResponse       `json:"lead"`
	Assignment AssignmentResponse `json:"assignment"`
}

type ImportRowResponse struct {
	Index      int        `json:"index"`
	LeadID     *uuid.UUID `json:"lead_id,omitempty"`
	ClientID   string     `json:"client_id,omitempty"`
	AssignedTo string     `json:"assigned_to,omitempty"`
	Source     string     `json:"source,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	Override   bool       `json:"override,omitempty"`
	Error      string     `json:"error,omitempty"`
}

type ImportLeadsResponse struct {
	Total      int                 `json:"total"`
	Created    int                 `json:"created"`
	Failed     int                 `json:"failed"`
	Assigned   int                 `json:"assigned"`
	Unassigned int                 `json:"unassigned"`
	Rows       []ImportRowResponse `json:"rows"`
}

type BulkAssignItemResponse struct {
	LeadID     uuid.UUID `json:"lead_id"`
	AssignedTo string    `json:"assigned_to,omitempty"`
	Source     string    `json:"source,omitempty"`
	Error      string    `json:"error,omitempty"`
}

type BulkAssignResponse struct {
	Processed int                      `json:"processed"`
	Assigned  int                      `json:"assigned"`
	Unmatched int                      `json:"unmatched"`
	Failed    int                      `json:"failed"`
	Items     []BulkAssignItemResponse `json:"items"`
}

type TransitionResponse struct {
	Lead         LeadResponse `json:"lead"`
	From         string       `json:"from"`
	To           string       `json:"to"`
	SubFlow      string       `json:"sub_flow,omitempty"`
	FollowUpDate *time.Time   `json:"follow_up_date,omitempty"`
}

type StatusChangeResponse struct {
	ID           int64      `json:"id"`
	OldStatus    string     `json:"old_status,omitempty"`
	NewStatus    string     `json:"new_status"`
	ChangedBy    string     `json:"changed_by,omitempty"`
	FollowUpDate *time.Time `json:"follow_up_date,omitempty"`
	Note         string     `json:"note,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

type HistoryResponse struct {
	Items []StatusChangeResponse `json:"items"`
}

type ClientResponse struct {
	ClientID          string         `json:"client_id"`
	TotalLeads        int            `json:"total_leads"`
	PrimaryLeadID     uuid.UUID      `json:"primary_lead_id"`
	PrimaryAssignedTo string         `json:"primary_assigned_to,omitempty"`
	Events            []string       `json:"events"`
	FirstContact      *time.Time     `json:"first_contact,omitempty"`
	Leads             []LeadResponse `json:"leads"`
}

// ClientLookupResponse carries a nil client when the phone matches nobody.
type ClientLookupResponse struct {
	Found  bool            `json:"found"`
	Client *ClientResponse `json:"client,omitempty"`
}
