// Package ports defines consumer-driven interfaces for external dependencies.
// These interfaces are defined in the Leads domain based on what it needs,
// rather than what other domains choose to offer.
package ports

import (
	"context"
	"time"

	"fantopark_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// AssignmentDecider runs the assignment rules for one lead record. A nil
// match means no rule applied. Each non-nil match has already advanced the
// matched rule's cursor.
type AssignmentDecider interface {
	DecideAssignee(ctx context.Context, record map[string]any) (*domain.RuleMatch, error)
}

// FollowUpScheduler arranges for a parked lead to be re-evaluated at a time.
type FollowUpScheduler interface {
	ScheduleLeadFollowUp(ctx context.Context, leadID uuid.UUID, at time.Time) error
}
