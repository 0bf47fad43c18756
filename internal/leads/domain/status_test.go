package domain

import (
	"testing"
	"time"

	"fantopark_backend/platform/apperr"
)

var now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func plan(t *testing.T, req TransitionRequest) (TransitionPlan, error) {
	t.Helper()
	if req.Now.IsZero() {
		req.Now = now
	}
	return PlanTransition(req)
}

func TestEveryEdgeTargetsAKnownStatus(t *testing.T) {
	for from, spec := range statusTable {
		for _, to := range spec.next {
			if !to.Valid() {
				t.Fatalf("%s lists unknown next state %s", from, to)
			}
		}
		if spec.terminal && len(spec.next) > 0 {
			t.Fatalf("terminal status %s has next states", from)
		}
	}
	if len(allStatuses) != len(statusTable) {
		t.Fatalf("allStatuses out of sync with table: %d vs %d", len(allStatuses), len(statusTable))
	}
}

func TestPlanTransitionAllowsGraphEdges(t *testing.T) {
	cases := []struct{ from, to Status }{
		{StatusAssigned, StatusContacted},
		{StatusContacted, StatusQualified},
		{StatusAttempt1, StatusAttempt2},
		{StatusAttempt3, StatusDropped},
		{StatusQualified, StatusHot},
		{StatusWarm, StatusConverted},
		{StatusConverted, StatusPayment},
		{StatusPaymentPostService, StatusPaymentReceived},
	}
	for _, tc := range cases {
		p, err := plan(t, TransitionRequest{Current: tc.from, Target: tc.to})
		if err != nil {
			t.Fatalf("%s -> %s: unexpected error: %v", tc.from, tc.to, err)
		}
		if p.From != tc.from || p.To != tc.to {
			t.Fatalf("unexpected plan %+v", p)
		}
	}
}

func TestPlanTransitionRejectsInvalidEdge(t *testing.T) {
	_, err := plan(t, TransitionRequest{Current: StatusAssigned, Target: StatusConverted})
	if !apperr.HasCode(err, CodeInvalidTransition) || !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected invalid transition, got %v", err)
	}

	_, err = plan(t, TransitionRequest{Current: StatusJunk, Target: StatusContacted})
	if !apperr.HasCode(err, CodeInvalidTransition) {
		t.Fatalf("expected terminal status to reject, got %v", err)
	}
}

func TestPlanTransitionFromUnassignedNeedsAssign(t *testing.T) {
	_, err := plan(t, TransitionRequest{Current: StatusUnassigned, Target: StatusAssigned})
	if !apperr.HasCode(err, CodeAssignRequired) {
		t.Fatalf("expected assign required, got %v", err)
	}
}

func TestPlanTransitionDerivesSingleTarget(t *testing.T) {
	p, err := plan(t, TransitionRequest{Current: StatusPayment})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.To != StatusPaymentReceived {
		t.Fatalf("expected payment_received, got %s", p.To)
	}
}

func TestPlanTransitionBranchPointNeedsChoice(t *testing.T) {
	_, err := plan(t, TransitionRequest{Current: StatusConverted})
	if !apperr.HasCode(err, CodeChoiceRequired) {
		t.Fatalf("expected choice required, got %v", err)
	}
	details, _ := apperr.GetDetails(err).(map[string]any)
	options, _ := details["options"].([]Status)
	if len(options) != 3 {
		t.Fatalf("expected three sibling options, got %v", details)
	}
}

func TestPlanTransitionSubFlows(t *testing.T) {
	p, _ := plan(t, TransitionRequest{Current: StatusConverted, Target: StatusPayment})
	if p.SubFlow != SubFlowPaymentCapture {
		t.Fatalf("expected payment capture, got %q", p.SubFlow)
	}
	p, _ = plan(t, TransitionRequest{Current: StatusConverted, Target: StatusPaymentPostService})
	if p.SubFlow != SubFlowDeferredInvoice {
		t.Fatalf("expected deferred invoice, got %q", p.SubFlow)
	}
}

func TestPickupLaterRequiresFutureFollowUpDate(t *testing.T) {
	_, err := plan(t, TransitionRequest{Current: StatusConverted, Target: StatusPickupLater})
	if !apperr.HasCode(err, CodeFollowUpDateRequired) {
		t.Fatalf("expected follow-up date required, got %v", err)
	}

	past := now.Add(-time.Hour)
	_, err = plan(t, TransitionRequest{Current: StatusConverted, Target: StatusPickupLater, FollowUpDate: &past})
	if !apperr.HasCode(err, CodeFollowUpDateRequired) {
		t.Fatalf("expected past date rejected, got %v", err)
	}

	due := now.Add(48 * time.Hour)
	p, err := plan(t, TransitionRequest{Current: StatusConverted, Target: StatusPickupLater, FollowUpDate: &due})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.WaitsForFollowUp() || !p.FollowUpDate.Equal(due) {
		t.Fatalf("expected follow-up stored, got %+v", p)
	}
}

func TestPickupLaterHoldsUntilDue(t *testing.T) {
	due := now.Add(time.Hour)

	_, err := plan(t, TransitionRequest{Current: StatusPickupLater, Target: StatusPayment, CurrentFollowUp: &due})
	if !apperr.HasCode(err, CodeFollowUpNotDue) {
		t.Fatalf("expected not due, got %v", err)
	}

	if _, err := plan(t, TransitionRequest{Current: StatusPickupLater, Target: StatusDropped, CurrentFollowUp: &due}); err != nil {
		t.Fatalf("dropping a parked lead must be allowed: %v", err)
	}

	p, err := plan(t, TransitionRequest{
		Current: StatusPickupLater, Target: StatusPayment, CurrentFollowUp: &due, Now: due.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("expected transition once due: %v", err)
	}
	if p.FollowUpDate != nil {
		t.Fatalf("leaving pickup_later must clear the follow-up date")
	}
}

func TestOptionsPresentationModes(t *testing.T) {
	early := Options(StatusAssigned)
	if early.Mode != OptionsModeFlat || len(early.Values) != 3 || early.Options != nil {
		t.Fatalf("expected flat options, got %+v", early)
	}

	late := Options(StatusConverted)
	if late.Mode != OptionsModeRich || len(late.Options) != 3 {
		t.Fatalf("expected rich options, got %+v", late)
	}
	for _, o := range late.Options {
		if o.Value == StatusPickupLater && !o.RequiresFollowUpDate {
			t.Fatalf("pickup_later option must flag the date requirement")
		}
		if o.Color == "" || o.Icon == "" {
			t.Fatalf("rich option %s missing presentation", o.Value)
		}
	}

	if !Options(StatusUnassigned).AssignRequired {
		t.Fatalf("unassigned must report assign required")
	}
	if !Options(StatusDropped).Terminal {
		t.Fatalf("dropped must report terminal")
	}
}

func TestPresentationModeDoesNotAffectValidity(t *testing.T) {
	for _, s := range allStatuses {
		opts := Options(s)
		var values []Status
		if opts.Mode == OptionsModeFlat {
			values = opts.Values
		} else {
			for _, o := range opts.Options {
				values = append(values, o.Value)
			}
		}
		for _, v := range values {
			if !CanTransition(s, v) {
				t.Fatalf("%s offers %s which is not a valid edge", s, v)
			}
		}
		if len(values) != len(NextStates(s)) {
			t.Fatalf("%s offers %d options, graph has %d", s, len(values), len(NextStates(s)))
		}
	}
}

func TestParseStatus(t *testing.T) {
	if s, ok := ParseStatus("  Pickup_Later "); !ok || s != StatusPickupLater {
		t.Fatalf("expected pickup_later, got %q %v", s, ok)
	}
	if _, ok := ParseStatus("won"); ok {
		t.Fatalf("expected unknown status")
	}
	if StatusUnassigned.IsOpen() || StatusJunk.IsOpen() || !StatusHot.IsOpen() {
		t.Fatalf("unexpected open classification")
	}
}
