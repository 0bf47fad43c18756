package service

import (
	"context"
	"errors"
	"slices"
	"strings"

	"fantopark_backend/internal/assignment/domain"
	"fantopark_backend/internal/assignment/repository"
	"fantopark_backend/internal/assignment/transport"
	"fantopark_backend/platform/apperr"
	"fantopark_backend/platform/logger"

	"github.com/google/uuid"
)

// RuleRepository is the persistence surface needed for rule management.
type RuleRepository interface {
	Create(ctx context.Context, params repository.RuleParams) (domain.Rule, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Rule, error)
	List(ctx context.Context, includeInactive bool) ([]domain.Rule, error)
	Update(ctx context.Context, id uuid.UUID, params repository.RuleParams) (domain.Rule, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

// CursorResetter is implemented by cursor stores that cache positions outside
// the rule row.
type CursorResetter interface {
	Reset(ctx context.Context, id uuid.UUID) error
}

const (
	defaultPriority = 100
	msgRuleNotFound = "assignment rule not found"
)

type RuleService struct {
	repo  RuleRepository
	reset CursorResetter
	log   *logger.Logger
}

func NewRuleService(repo RuleRepository, log *logger.Logger) *RuleService {
	return &RuleService{repo: repo, log: log}
}

// SetCursorResetter makes updates that change the assignee pool drop any
// cached cursor.
func (s *RuleService) SetCursorResetter(r CursorResetter) {
	s.reset = r
}

func (s *RuleService) Create(ctx context.Context, req transport.RuleRequest, actor string) (transport.RuleResponse, error) {
	params, err := buildParams(req)
	if err != nil {
		return transport.RuleResponse{}, err
	}
	params.CreatedBy = actor

	rule, err := s.repo.Create(ctx, params)
	if err != nil {
		return transport.RuleResponse{}, err
	}
	s.log.Info("assignment rule created", "ruleId", rule.ID, "rule", rule.Name, "createdBy", actor)
	return ToRuleResponse(rule), nil
}

func (s *RuleService) GetByID(ctx context.Context, id uuid.UUID) (transport.RuleResponse, error) {
	rule, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.RuleResponse{}, mapNotFound(err)
	}
	return ToRuleResponse(rule), nil
}

func (s *RuleService) List(ctx context.Context, includeInactive bool) (transport.RuleListResponse, error) {
	rules, err := s.repo.List(ctx, includeInactive)
	if err != nil {
		return transport.RuleListResponse{}, err
	}
	items := make([]transport.RuleResponse, 0, len(rules))
	for _, rule := range rules {
		items = append(items, ToRuleResponse(rule))
	}
	return transport.RuleListResponse{Items: items, Total: len(items)}, nil
}

// Update replaces the editable fields. The stored cursor is kept; it is
// reduced modulo the new pool size at the next selection.
func (s *RuleService) Update(ctx context.Context, id uuid.UUID, req transport.RuleRequest) (transport.RuleResponse, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.RuleResponse{}, mapNotFound(err)
	}

	params, err := buildParams(req)
	if err != nil {
		return transport.RuleResponse{}, err
	}

	rule, err := s.repo.Update(ctx, id, params)
	if err != nil {
		return transport.RuleResponse{}, mapNotFound(err)
	}

	if s.reset != nil && !slices.Equal(current.Pool(), rule.Pool()) {
		if err := s.reset.Reset(ctx, id); err != nil {
			s.log.Warn("failed to reset cached assignment cursor", "ruleId", id, "error", err)
		}
	}
	s.log.Info("assignment rule updated", "ruleId", rule.ID, "rule", rule.Name)
	return ToRuleResponse(rule), nil
}

func (s *RuleService) SetActive(ctx context.Context, id uuid.UUID, active bool) (transport.RuleResponse, error) {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return transport.RuleResponse{}, mapNotFound(err)
	}
	rule, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.RuleResponse{}, mapNotFound(err)
	}
	s.log.Info("assignment rule activation changed", "ruleId", id, "active", active)
	return ToRuleResponse(rule), nil
}

func buildParams(req transport.RuleRequest) (repository.RuleParams, error) {
	params := repository.RuleParams{
		Name:           strings.TrimSpace(req.Name),
		Description:    strings.TrimSpace(req.Description),
		Priority:       defaultPriority,
		IsActive:       true,
		Conditions:     req.Conditions,
		ConditionLogic: domain.LogicAnd,
		Strategy:       domain.StrategyRoundRobin,
	}
	if req.Priority != nil {
		params.Priority = *req.Priority
	}
	if req.IsActive != nil {
		params.IsActive = *req.IsActive
	}
	if req.ConditionLogic != "" {
		params.ConditionLogic = domain.Logic(strings.ToUpper(req.ConditionLogic))
	}
	if req.AssignmentStrategy != "" {
		params.Strategy = domain.Strategy(req.AssignmentStrategy)
	}
	params.Assignees = make([]domain.Assignee, 0, len(req.Assignees))
	for _, a := range req.Assignees {
		params.Assignees = append(params.Assignees, domain.Assignee{
			Identity: strings.TrimSpace(a.Identity),
			Weight:   a.Weight,
		})
	}

	candidate := domain.Rule{
		Name:           params.Name,
		Conditions:     params.Conditions,
		ConditionLogic: params.ConditionLogic,
		Strategy:       params.Strategy,
		Assignees:      params.Assignees,
	}
	if err := candidate.Validate(); err != nil {
		return repository.RuleParams{}, apperr.Validation("invalid assignment rule").
			WithCode("INVALID_RULE").
			WithDetails(splitJoined(err))
	}
	return params, nil
}

// splitJoined flattens an errors.Join result into its messages.
func splitJoined(err error) []string {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		out := make([]string, 0, len(joined.Unwrap()))
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}

func mapNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(msgRuleNotFound)
	}
	return err
}

// ToRuleResponse converts a rule into its API shape.
func ToRuleResponse(rule domain.Rule) transport.RuleResponse {
	conditions := rule.Conditions
	if conditions == nil {
		conditions = map[string]any{}
	}
	assignees := make([]transport.AssigneeDTO, 0, len(rule.Assignees))
	for _, a := range rule.Assignees {
		assignees = append(assignees, transport.AssigneeDTO{Identity: a.Identity, Weight: a.Weight})
	}
	return transport.RuleResponse{
		ID:                  rule.ID,
		Name:                rule.Name,
		Description:         rule.Description,
		Priority:            rule.Priority,
		IsActive:            rule.IsActive,
		Conditions:          conditions,
		ConditionLogic:      string(rule.ConditionLogic),
		AssignmentStrategy:  string(rule.Strategy),
		Assignees:           assignees,
		LastAssignmentIndex: rule.LastAssignmentIndex,
		CreatedBy:           rule.CreatedBy,
		CreatedAt:           rule.CreatedAt,
		UpdatedAt:           rule.UpdatedAt,
	}
}
