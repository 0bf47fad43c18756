package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fantopark_backend/internal/events"
	"fantopark_backend/internal/leads/domain"
	"fantopark_backend/internal/leads/ports"
	"fantopark_backend/internal/leads/repository"
	"fantopark_backend/platform/apperr"
	"fantopark_backend/platform/logger"
	"fantopark_backend/platform/metrics"
	"fantopark_backend/platform/sanitize"

	"github.com/google/uuid"
)

const msgLeadNotFound = "lead not found"

// LifecycleRepository is what status changes and assignment need.
type LifecycleRepository interface {
	repository.LeadReader
	repository.LifecycleStore
}

// TransitionInput is an operator's status change request. An empty Target
// asks for the only possible next status.
type TransitionInput struct {
	Target       string
	FollowUpDate *time.Time
	Note         string
	Actor        string
}

// TransitionResult describes an applied status change.
type TransitionResult struct {
	Lead         domain.Lead
	From         domain.Status
	To           domain.Status
	SubFlow      domain.SubFlow
	FollowUpDate *time.Time
}

// Lifecycle moves leads through their statuses.
type Lifecycle struct {
	repo      LifecycleRepository
	bus       events.Bus
	followUps ports.FollowUpScheduler
	metrics   *metrics.Metrics
	log       *logger.Logger
	now       func() time.Time
}

func NewLifecycle(repo LifecycleRepository, bus events.Bus, log *logger.Logger) *Lifecycle {
	return &Lifecycle{repo: repo, bus: bus, log: log, now: time.Now}
}

// SetFollowUpScheduler enables queueing of follow-up re-evaluation.
func (s *Lifecycle) SetFollowUpScheduler(f ports.FollowUpScheduler) {
	s.followUps = f
}

// SetMetrics enables transition counters.
func (s *Lifecycle) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// Transition validates and applies a status change. A rejected change leaves
// the lead untouched.
func (s *Lifecycle) Transition(ctx context.Context, leadID uuid.UUID, in TransitionInput) (*TransitionResult, error) {
	lead, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		return nil, mapLeadNotFound(err)
	}

	var target domain.Status
	if strings.TrimSpace(in.Target) != "" {
		parsed, ok := domain.ParseStatus(in.Target)
		if !ok {
			return nil, apperr.Validation(fmt.Sprintf("unknown status %q", in.Target)).
				WithCode(domain.CodeUnknownStatus)
		}
		target = parsed
	}

	plan, err := domain.PlanTransition(domain.TransitionRequest{
		Current:         lead.Status,
		Target:          target,
		FollowUpDate:    in.FollowUpDate,
		CurrentFollowUp: lead.FollowUpDate,
		Now:             s.now(),
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.ApplyTransition(ctx, repository.TransitionParams{
		LeadID:       leadID,
		From:         plan.From,
		To:           plan.To,
		FollowUpDate: plan.FollowUpDate,
		ChangedBy:    in.Actor,
		Note:         sanitize.Text(in.Note),
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperr.NotFound(msgLeadNotFound)
		case errors.Is(err, repository.ErrStatusConflict):
			return nil, apperr.Conflict("lead status changed, reload and try again").WithCode("STATUS_CONFLICT")
		}
		return nil, fmt.Errorf("apply transition %s -> %s: %w", plan.From, plan.To, err)
	}

	s.log.StatusTransition(leadID.String(), string(plan.From), string(plan.To), in.Actor)
	if s.metrics != nil {
		s.metrics.StatusTransitions.WithLabelValues(string(plan.From), string(plan.To)).Inc()
	}

	if plan.WaitsForFollowUp() {
		s.scheduleFollowUp(ctx, updated, *plan.FollowUpDate)
	}

	s.bus.Publish(ctx, events.LeadStatusChanged{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    leadID,
		OldStatus: string(plan.From),
		NewStatus: string(plan.To),
		ChangedBy: in.Actor,
		SubFlow:   string(plan.SubFlow),
	})

	return &TransitionResult{
		Lead:         updated,
		From:         plan.From,
		To:           plan.To,
		SubFlow:      plan.SubFlow,
		FollowUpDate: plan.FollowUpDate,
	}, nil
}

func (s *Lifecycle) scheduleFollowUp(ctx context.Context, lead domain.Lead, at time.Time) {
	if s.followUps != nil {
		// The overdue sweep picks the lead up if queueing fails.
		if err := s.followUps.ScheduleLeadFollowUp(ctx, lead.ID, at); err != nil {
			s.log.Warn("failed to queue lead follow-up", "leadId", lead.ID, "followUpAt", at, "error", err)
		}
	}
	s.bus.Publish(ctx, events.LeadFollowUpScheduled{
		BaseEvent:  events.NewBaseEvent(),
		LeadID:     lead.ID,
		Status:     string(lead.Status),
		FollowUpAt: at,
	})
}

// Assign gives a lead an owner chosen by an operator. An unassigned lead
// moves to assigned. The override flag records disagreement with the
// client's existing owner and stays set once raised.
func (s *Lifecycle) Assign(ctx context.Context, leadID uuid.UUID, assignee, actor string) (domain.Lead, error) {
	assignee = strings.TrimSpace(assignee)
	if assignee == "" {
		return domain.Lead{}, apperr.Validation("assignee is required")
	}

	lead, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		return domain.Lead{}, mapLeadNotFound(err)
	}
	if lead.Status.IsTerminal() {
		return domain.Lead{}, apperr.Validation(fmt.Sprintf("cannot assign a lead in final status %s", lead.Status)).
			WithCode(domain.CodeInvalidTransition)
	}

	siblings, err := s.repo.ListByClientID(ctx, lead.ClientID)
	if err != nil {
		return domain.Lead{}, fmt.Errorf("load client leads: %w", err)
	}
	owner := domain.BuildClient(lead.ClientID, siblings).OwnerExcluding(lead.ID)

	outcome, err := domain.ResolveAssignment(assignee, owner, nil)
	if err != nil {
		return domain.Lead{}, err
	}

	updated, err := s.repo.Assign(ctx, repository.AssignParams{LeadID: leadID, Assignment: outcome, ChangedBy: actor})
	if err != nil {
		return domain.Lead{}, mapLeadNotFound(err)
	}

	if lead.Status != updated.Status {
		s.log.StatusTransition(leadID.String(), string(lead.Status), string(updated.Status), actor)
		if s.metrics != nil {
			s.metrics.StatusTransitions.WithLabelValues(string(lead.Status), string(updated.Status)).Inc()
		}
	}
	publishAssigned(ctx, s.bus, updated, outcome, actor)
	return updated, nil
}

// History returns the status changes of a lead.
func (s *Lifecycle) History(ctx context.Context, leadID uuid.UUID) ([]domain.StatusChange, error) {
	if _, err := s.repo.GetByID(ctx, leadID); err != nil {
		return nil, mapLeadNotFound(err)
	}
	return s.repo.History(ctx, leadID)
}

// Options returns the status picker for a lead.
func (s *Lifecycle) Options(ctx context.Context, leadID uuid.UUID) (domain.StatusOptions, error) {
	lead, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		return domain.StatusOptions{}, mapLeadNotFound(err)
	}
	return domain.Options(lead.Status), nil
}

// Get returns a lead by id.
func (s *Lifecycle) Get(ctx context.Context, leadID uuid.UUID) (domain.Lead, error) {
	lead, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		return domain.Lead{}, mapLeadNotFound(err)
	}
	return lead, nil
}

func publishAssigned(ctx context.Context, bus events.Bus, lead domain.Lead, outcome domain.AssignmentOutcome, actor string) {
	bus.Publish(ctx, events.LeadAssigned{
		BaseEvent:  events.NewBaseEvent(),
		LeadID:     lead.ID,
		LeadName:   lead.Name,
		ForEvent:   lead.LeadForEvent,
		AssignedTo: outcome.AssignedTo,
		Reason:     outcome.Reason,
		RuleID:     outcome.RuleID,
		AssignedBy: actor,
	})
}

func mapLeadNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(msgLeadNotFound)
	}
	return err
}
