package repository

import (
	"context"
	"time"

	"fantopark_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// LeadReader provides read-only access to lead data.
type LeadReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	ListByClientID(ctx context.Context, clientID string) ([]domain.Lead, error)
}

// LeadWriter creates leads and keeps client aggregates current.
type LeadWriter interface {
	Create(ctx context.Context, params CreateLeadParams) (domain.Lead, error)
	RefreshClientAggregates(ctx context.Context, clientID string) error
}

// LifecycleStore persists status changes and assignments.
type LifecycleStore interface {
	ApplyTransition(ctx context.Context, params TransitionParams) (domain.Lead, error)
	Assign(ctx context.Context, params AssignParams) (domain.Lead, error)
	History(ctx context.Context, leadID uuid.UUID) ([]domain.StatusChange, error)
}

// WorkQueue lists leads waiting for assignment or a follow-up.
type WorkQueue interface {
	ListUnassigned(ctx context.Context, ids []uuid.UUID, limit int) ([]domain.Lead, error)
	ListDueFollowUps(ctx context.Context, cutoff time.Time, limit int) ([]domain.Lead, error)
}

// WorkloadReader counts open leads per owner.
type WorkloadReader interface {
	CountOpenLeads(ctx context.Context, assignees []string) (map[string]int, error)
}

// LeadsRepository is the full persistence surface of the leads context.
type LeadsRepository interface {
	LeadReader
	LeadWriter
	LifecycleStore
	WorkQueue
	WorkloadReader
}

var _ LeadsRepository = (*Repository)(nil)
