package domain

import (
	"strings"

	"github.com/google/uuid"
)

// AssignmentSource says which precedence level produced an owner.
type AssignmentSource string

const (
	SourceManual        AssignmentSource = "manual"
	SourceClientHistory AssignmentSource = "client_history"
	SourceRule          AssignmentSource = "rule"
	SourceNone          AssignmentSource = "none"
)

const (
	ReasonManual        = "Manually assigned"
	ReasonClientHistory = "Existing client: assigned to primary owner"
	ReasonNoRuleMatched = "No assignment rule matched"
)

// RuleMatch is the part of a rule decision a lead records.
type RuleMatch struct {
	AssignedTo string
	RuleID     uuid.UUID
	RuleName   string
	Reason     string
}

// AssignmentOutcome is the owner chosen for a lead and where it came from.
type AssignmentOutcome struct {
	AssignedTo   string
	Source       AssignmentSource
	Reason       string
	AutoAssigned bool
	RuleID       *uuid.UUID
	RuleName     string
	// Override is set when a manual owner disagrees with the client's
	// existing owner.
	Override bool
}

// Assigned reports whether the outcome has an owner.
func (o AssignmentOutcome) Assigned() bool {
	return o.AssignedTo != ""
}

// ResolveAssignment applies manual > client history > rule > unassigned.
// decide is only called when neither a manual owner nor a client owner
// exists, because running rules advances their cursors. A nil decide, or a
// nil match, leaves the lead unassigned.
func ResolveAssignment(manual, clientOwner string, decide func() (*RuleMatch, error)) (AssignmentOutcome, error) {
	manual = strings.TrimSpace(manual)
	clientOwner = strings.TrimSpace(clientOwner)

	if manual != "" {
		return AssignmentOutcome{
			AssignedTo: manual,
			Source:     SourceManual,
			Reason:     ReasonManual,
			Override:   clientOwner != "" && !strings.EqualFold(manual, clientOwner),
		}, nil
	}

	if clientOwner != "" {
		return AssignmentOutcome{
			AssignedTo:   clientOwner,
			Source:       SourceClientHistory,
			Reason:       ReasonClientHistory,
			AutoAssigned: true,
		}, nil
	}

	if decide != nil {
		match, err := decide()
		if err != nil {
			return AssignmentOutcome{}, err
		}
		if match != nil && match.AssignedTo != "" {
			id := match.RuleID
			return AssignmentOutcome{
				AssignedTo:   match.AssignedTo,
				Source:       SourceRule,
				Reason:       match.Reason,
				AutoAssigned: true,
				RuleID:       &id,
				RuleName:     match.RuleName,
			}, nil
		}
	}

	return AssignmentOutcome{Source: SourceNone, Reason: ReasonNoRuleMatched}, nil
}

// InitialStatus is the status a new lead starts in for this outcome.
func (o AssignmentOutcome) InitialStatus() Status {
	if o.Assigned() {
		return StatusAssigned
	}
	return StatusUnassigned
}
