// Package domain provides core business rules for the leads bounded context.
package domain

import (
	"fmt"
	"strings"
	"time"

	"fantopark_backend/platform/apperr"
)

// Status is a lead lifecycle state.
type Status string

const (
	StatusUnassigned         Status = "unassigned"
	StatusAssigned           Status = "assigned"
	StatusContacted          Status = "contacted"
	StatusAttempt1           Status = "attempt_1"
	StatusAttempt2           Status = "attempt_2"
	StatusAttempt3           Status = "attempt_3"
	StatusQualified          Status = "qualified"
	StatusJunk               Status = "junk"
	StatusHot                Status = "hot"
	StatusWarm               Status = "warm"
	StatusCold               Status = "cold"
	StatusConverted          Status = "converted"
	StatusDropped            Status = "dropped"
	StatusPayment            Status = "payment"
	StatusPaymentPostService Status = "payment_post_service"
	StatusPickupLater        Status = "pickup_later"
	StatusPaymentReceived    Status = "payment_received"
)

// SubFlow names the follow-on process a transition starts.
type SubFlow string

const (
	SubFlowNone            SubFlow = ""
	SubFlowPaymentCapture  SubFlow = "payment_capture"
	SubFlowDeferredInvoice SubFlow = "deferred_invoice"
)

// Error codes carried on validation errors from PlanTransition.
const (
	CodeInvalidTransition    = "INVALID_TRANSITION"
	CodeAssignRequired       = "ASSIGN_REQUIRED"
	CodeChoiceRequired       = "CHOICE_REQUIRED"
	CodeFollowUpDateRequired = "FOLLOW_UP_DATE_REQUIRED"
	CodeFollowUpNotDue       = "FOLLOW_UP_NOT_DUE"
	CodeUnknownStatus        = "UNKNOWN_STATUS"
)

type statusSpec struct {
	next []Status
	// assignOnly statuses leave only through the assign action.
	assignOnly bool
	// requiresFollowUp statuses cannot be entered without a follow-up date.
	requiresFollowUp bool
	subFlow          SubFlow
	terminal         bool

	// presentation
	earlyStage bool
	label      string
	color      string
	icon       string
}

// statusTable is the single source of lifecycle rules. Options reads the
// presentation fields from it; validation never does.
var statusTable = map[Status]statusSpec{
	StatusUnassigned: {
		next: []Status{StatusAssigned}, assignOnly: true,
		earlyStage: true, label: "Unassigned",
	},
	StatusAssigned: {
		next:       []Status{StatusContacted, StatusAttempt1, StatusJunk},
		earlyStage: true, label: "Assigned",
	},
	StatusContacted: {
		next:  []Status{StatusQualified, StatusAttempt1, StatusJunk, StatusDropped},
		label: "Contacted", color: "blue", icon: "phone",
	},
	StatusAttempt1: {
		next:       []Status{StatusContacted, StatusAttempt2, StatusJunk},
		earlyStage: true, label: "Attempt 1",
	},
	StatusAttempt2: {
		next:       []Status{StatusContacted, StatusAttempt3, StatusJunk},
		earlyStage: true, label: "Attempt 2",
	},
	StatusAttempt3: {
		next:       []Status{StatusContacted, StatusJunk, StatusDropped},
		earlyStage: true, label: "Attempt 3",
	},
	StatusQualified: {
		next:  []Status{StatusHot, StatusWarm, StatusCold, StatusDropped},
		label: "Qualified", color: "indigo", icon: "check-circle",
	},
	StatusHot: {
		next:  []Status{StatusConverted, StatusWarm, StatusCold, StatusDropped},
		label: "Hot", color: "red", icon: "flame",
	},
	StatusWarm: {
		next:  []Status{StatusHot, StatusCold, StatusConverted, StatusDropped},
		label: "Warm", color: "orange", icon: "sun",
	},
	StatusCold: {
		next:  []Status{StatusHot, StatusWarm, StatusDropped},
		label: "Cold", color: "sky", icon: "snowflake",
	},
	StatusConverted: {
		next:  []Status{StatusPayment, StatusPaymentPostService, StatusPickupLater},
		label: "Converted", color: "green", icon: "trophy",
	},
	StatusPickupLater: {
		next:             []Status{StatusPayment, StatusPaymentPostService, StatusDropped},
		requiresFollowUp: true,
		label:            "Pickup Later", color: "amber", icon: "calendar-clock",
	},
	StatusPayment: {
		next:    []Status{StatusPaymentReceived},
		subFlow: SubFlowPaymentCapture,
		label:   "Payment", color: "emerald", icon: "credit-card",
	},
	StatusPaymentPostService: {
		next:    []Status{StatusPaymentReceived},
		subFlow: SubFlowDeferredInvoice,
		label:   "Payment Post Service", color: "teal", icon: "file-invoice",
	},
	StatusPaymentReceived: {terminal: true, label: "Payment Received", color: "green", icon: "badge-check"},
	StatusJunk:            {terminal: true, label: "Junk", color: "gray", icon: "trash"},
	StatusDropped:         {terminal: true, label: "Dropped", color: "slate", icon: "x-circle"},
}

// ParseStatus normalizes s and reports whether it is a known status.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	_, ok := statusTable[st]
	return st, ok
}

func (s Status) Valid() bool {
	_, ok := statusTable[s]
	return ok
}

func (s Status) IsTerminal() bool {
	return statusTable[s].terminal
}

// IsOpen reports whether a lead in s still counts toward its owner's workload.
func (s Status) IsOpen() bool {
	return s.Valid() && !s.IsTerminal() && s != StatusUnassigned
}

// RequiresFollowUp reports whether entering s needs a follow-up date.
func (s Status) RequiresFollowUp() bool {
	return statusTable[s].requiresFollowUp
}

// SubFlow returns the process started by entering s.
func (s Status) SubFlow() SubFlow {
	return statusTable[s].subFlow
}

// NextStates returns the permitted targets from s.
func NextStates(s Status) []Status {
	next := statusTable[s].next
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// CanTransition reports whether from -> to is an edge of the lifecycle graph.
func CanTransition(from, to Status) bool {
	for _, n := range statusTable[from].next {
		if n == to {
			return true
		}
	}
	return false
}

// OpenStatuses returns every non-terminal status past intake.
func OpenStatuses() []Status {
	out := make([]Status, 0, len(statusTable))
	for _, s := range allStatuses {
		if s.IsOpen() {
			out = append(out, s)
		}
	}
	return out
}

var allStatuses = []Status{
	StatusUnassigned, StatusAssigned, StatusContacted, StatusAttempt1, StatusAttempt2, StatusAttempt3,
	StatusQualified, StatusHot, StatusWarm, StatusCold, StatusConverted, StatusPickupLater,
	StatusPayment, StatusPaymentPostService, StatusPaymentReceived, StatusJunk, StatusDropped,
}

// TransitionRequest is the input to PlanTransition. An empty Target asks
// for the target to be derived.
type TransitionRequest struct {
	Current Status
	Target  Status
	// FollowUpDate is the date supplied with the request.
	FollowUpDate *time.Time
	// CurrentFollowUp is the date already stored on the lead.
	CurrentFollowUp *time.Time
	Now             time.Time
}

// TransitionPlan is a validated status change ready to be persisted.
type TransitionPlan struct {
	From    Status
	To      Status
	SubFlow SubFlow
	// FollowUpDate is the value to store; nil clears it.
	FollowUpDate *time.Time
}

// WaitsForFollowUp reports whether the plan parks the lead until a date.
func (p TransitionPlan) WaitsForFollowUp() bool {
	return p.FollowUpDate != nil
}

// PlanTransition validates a status change without side effects.
func PlanTransition(req TransitionRequest) (TransitionPlan, error) {
	current, ok := statusTable[req.Current]
	if !ok {
		return TransitionPlan{}, apperr.Validation(fmt.Sprintf("lead has unknown status %q", req.Current)).
			WithCode(CodeUnknownStatus)
	}
	if current.assignOnly {
		return TransitionPlan{}, apperr.Validation("lead must be assigned before its status can change").
			WithCode(CodeAssignRequired)
	}
	if current.terminal {
		return TransitionPlan{}, apperr.Validation(fmt.Sprintf("status %s is final", req.Current)).
			WithCode(CodeInvalidTransition).
			WithDetails(map[string]any{"from": req.Current, "allowed": []Status{}})
	}

	target := req.Target
	if target == "" {
		if len(current.next) != 1 {
			return TransitionPlan{}, apperr.Validation("choose the next status").
				WithCode(CodeChoiceRequired).
				WithDetails(map[string]any{"from": req.Current, "options": NextStates(req.Current)})
		}
		target = current.next[0]
	}

	if !CanTransition(req.Current, target) {
		return TransitionPlan{}, apperr.Validation(fmt.Sprintf("cannot move lead from %s to %s", req.Current, target)).
			WithCode(CodeInvalidTransition).
			WithDetails(map[string]any{"from": req.Current, "to": target, "allowed": NextStates(req.Current)})
	}

	if req.Current == StatusPickupLater && target != StatusDropped && req.CurrentFollowUp != nil &&
		req.Now.Before(*req.CurrentFollowUp) {
		return TransitionPlan{}, apperr.Validation("lead is parked until its follow-up date").
			WithCode(CodeFollowUpNotDue).
			WithDetails(map[string]any{"follow_up_date": req.CurrentFollowUp.UTC().Format(time.RFC3339)})
	}

	plan := TransitionPlan{From: req.Current, To: target, SubFlow: target.SubFlow()}
	if target.RequiresFollowUp() {
		if req.FollowUpDate == nil || req.FollowUpDate.IsZero() {
			return TransitionPlan{}, apperr.Validation(fmt.Sprintf("%s needs a follow-up date", target)).
				WithCode(CodeFollowUpDateRequired)
		}
		if !req.FollowUpDate.After(req.Now) {
			return TransitionPlan{}, apperr.Validation("follow-up date must be in the future").
				WithCode(CodeFollowUpDateRequired)
		}
		when := req.FollowUpDate.UTC()
		plan.FollowUpDate = &when
	}
	return plan, nil
}
