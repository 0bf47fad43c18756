// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"fantopark_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Lead Domain Events
// =============================================================================

// LeadCreated is published after a lead has been persisted by intake.
type LeadCreated struct {
	BaseEvent
	LeadID       uuid.UUID `json:"leadId"`
	ClientID     string    `json:"clientId"`
	Source       string    `json:"source"`
	AssignedTo   string    `json:"assignedTo,omitempty"`
	AutoAssigned bool      `json:"autoAssigned"`
}

func (e LeadCreated) EventName() string { return "leads.lead.created" }

// LeadAssigned is published whenever a lead gets an owner, by rule, by client
// history or by an operator.
type LeadAssigned struct {
	BaseEvent
	LeadID     uuid.UUID  `json:"leadId"`
	LeadName   string     `json:"leadName"`
	ForEvent   string     `json:"leadForEvent"`
	AssignedTo string     `json:"assignedTo"`
	Reason     string     `json:"reason"`
	RuleID     *uuid.UUID `json:"ruleId,omitempty"`
	AssignedBy string     `json:"assignedBy,omitempty"`
}

func (e LeadAssigned) EventName() string { return "leads.lead.assigned" }

// LeadStatusChanged is published after a status transition is committed.
type LeadStatusChanged struct {
	BaseEvent
	LeadID    uuid.UUID `json:"leadId"`
	OldStatus string    `json:"oldStatus"`
	NewStatus string    `json:"newStatus"`
	ChangedBy string    `json:"changedBy"`
	SubFlow   string    `json:"subFlow,omitempty"`
}

func (e LeadStatusChanged) EventName() string { return "leads.status.changed" }

// LeadFollowUpScheduled is published when a transition stores a follow-up date.
type LeadFollowUpScheduled struct {
	BaseEvent
	LeadID     uuid.UUID `json:"leadId"`
	Status     string    `json:"status"`
	FollowUpAt time.Time `json:"followUpAt"`
}

func (e LeadFollowUpScheduled) EventName() string { return "leads.follow_up.scheduled" }

// LeadFollowUpDue is published by the scheduler once a follow-up date has passed.
type LeadFollowUpDue struct {
	BaseEvent
	LeadID     uuid.UUID `json:"leadId"`
	LeadName   string    `json:"leadName"`
	Status     string    `json:"status"`
	AssignedTo string    `json:"assignedTo"`
	FollowUpAt time.Time `json:"followUpAt"`
}

func (e LeadFollowUpDue) EventName() string { return "leads.follow_up.due" }
