// Package adapters bridges bounded contexts through the consumer ports each
// context declares.
package adapters

import (
	"context"

	assignmentdomain "fantopark_backend/internal/assignment/domain"
	"fantopark_backend/internal/leads/domain"
	"fantopark_backend/internal/leads/ports"
)

// RuleDecider is what the adapter needs from the assignment engine.
type RuleDecider interface {
	Decide(ctx context.Context, rec assignmentdomain.Record) (*assignmentdomain.Decision, error)
}

// AssignmentDecider adapts the assignment engine for lead intake.
type AssignmentDecider struct {
	engine RuleDecider
}

func NewAssignmentDecider(engine RuleDecider) *AssignmentDecider {
	return &AssignmentDecider{engine: engine}
}

func (a *AssignmentDecider) DecideAssignee(ctx context.Context, record map[string]any) (*domain.RuleMatch, error) {
	decision, err := a.engine.Decide(ctx, assignmentdomain.Record(record))
	if err != nil || decision == nil {
		return nil, err
	}
	return &domain.RuleMatch{
		AssignedTo: decision.AssignedTo,
		RuleID:     decision.RuleID,
		RuleName:   decision.RuleMatched,
		Reason:     decision.Reason,
	}, nil
}

var _ ports.AssignmentDecider = (*AssignmentDecider)(nil)
