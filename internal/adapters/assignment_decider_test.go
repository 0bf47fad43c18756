package adapters

import (
	"context"
	"errors"
	"testing"

	assignmentdomain "fantopark_backend/internal/assignment/domain"

	"github.com/google/uuid"
)

type stubEngine struct {
	decision *assignmentdomain.Decision
	err      error
	got      assignmentdomain.Record
}

func (s *stubEngine) Decide(_ context.Context, rec assignmentdomain.Record) (*assignmentdomain.Decision, error) {
	s.got = rec
	return s.decision, s.err
}

func TestAssignmentDeciderMapsDecision(t *testing.T) {
	ruleID := uuid.New()
	engine := &stubEngine{decision: &assignmentdomain.Decision{
		AssignedTo: "asha@fantopark.com", RuleMatched: "Corporate", RuleID: ruleID,
		Reason: "Matched rule: Corporate", AutoAssigned: true,
	}}
	decider := NewAssignmentDecider(engine)

	match, err := decider.DecideAssignee(context.Background(), map[string]any{"business_type": "B2B"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if match == nil || match.AssignedTo != "asha@fantopark.com" || match.RuleID != ruleID || match.RuleName != "Corporate" {
		t.Fatalf("unexpected match %+v", match)
	}
	if engine.got["business_type"] != "B2B" {
		t.Fatalf("record not passed through: %v", engine.got)
	}
}

func TestAssignmentDeciderNoMatchAndError(t *testing.T) {
	decider := NewAssignmentDecider(&stubEngine{})
	if match, err := decider.DecideAssignee(context.Background(), nil); match != nil || err != nil {
		t.Fatalf("expected nil match, got %+v, %v", match, err)
	}

	decider = NewAssignmentDecider(&stubEngine{err: errors.New("boom")})
	if _, err := decider.DecideAssignee(context.Background(), nil); err == nil {
		t.Fatalf("expected error")
	}
}
