// Package service runs assignment rules against incoming lead records and
// manages the rules themselves.
package service

import (
	"context"
	"fmt"
	"slices"

	"fantopark_backend/internal/assignment/domain"
	"fantopark_backend/internal/assignment/transport"
	"fantopark_backend/platform/apperr"
	"fantopark_backend/platform/logger"
	"fantopark_backend/platform/metrics"
)

// RuleLister returns active rules in evaluation order.
type RuleLister interface {
	ListActive(ctx context.Context) ([]domain.Rule, error)
}

const (
	outcomeAssigned       = "assigned"
	outcomeNoMatch        = "no_match"
	outcomeEmptyAssignees = "empty_assignees"
	outcomeError          = "error"
)

// Engine walks the active rules for one record and produces a Decision from
// the first rule that matches and can select somebody.
type Engine struct {
	rules     RuleLister
	cursors   CursorStore
	selectors map[domain.Strategy]Selector
	log       *logger.Logger
	metrics   *metrics.Metrics
}

// NewEngine creates an engine. m may be nil.
func NewEngine(rules RuleLister, cursors CursorStore, log *logger.Logger, m *metrics.Metrics) *Engine {
	return &Engine{
		rules:     rules,
		cursors:   cursors,
		selectors: newSelectors(cursors, nil, log),
		log:       log,
		metrics:   m,
	}
}

// SetWorkloadCounter enables workload-aware selection for least_busy rules.
func (e *Engine) SetWorkloadCounter(w WorkloadCounter) {
	e.selectors = newSelectors(e.cursors, w, e.log)
}

// Decide returns the assignment for rec, or nil when no rule applies.
// Each successful call advances the matched rule's cursor, so calling it
// twice for the same lead can pick different assignees.
func (e *Engine) Decide(ctx context.Context, rec domain.Record) (*domain.Decision, error) {
	rules, err := e.rules.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}

	for i := range rules {
		rule := &rules[i]
		if err := rule.CompileError(); err != nil {
			e.log.Warn("skipping assignment rule with invalid conditions", "ruleId", rule.ID, "rule", rule.Name, "error", err)
			continue
		}
		if !rule.Matches(rec) {
			continue
		}

		selector, ok := e.selectors[rule.Strategy]
		if !ok {
			e.log.Warn("skipping assignment rule with unknown strategy", "ruleId", rule.ID, "strategy", rule.Strategy)
			continue
		}

		selection, err := selector.Select(ctx, rule)
		if err != nil {
			e.count(rule.Strategy, outcomeError)
			return nil, apperr.Wrap(apperr.KindInternal, "failed to advance assignment cursor", err).
				WithOp("assignment.Decide")
		}
		if selection == nil {
			e.log.EmptyAssigneeList(rule.ID.String(), rule.Name)
			e.count(rule.Strategy, outcomeEmptyAssignees)
			continue
		}

		e.log.AssignmentDecided(rule.ID.String(), rule.Name, string(rule.Strategy), selection.Identity)
		e.count(rule.Strategy, outcomeAssigned)
		return &domain.Decision{
			AssignedTo:   selection.Identity,
			RuleMatched:  rule.Name,
			RuleID:       rule.ID,
			Strategy:     rule.Strategy,
			Reason:       "Matched rule: " + rule.Name,
			AutoAssigned: true,
		}, nil
	}

	e.count("", outcomeNoMatch)
	return nil, nil
}

// Preview reports which rule would take rec and who its strategy would
// pick next, without advancing any cursor.
func (e *Engine) Preview(ctx context.Context, rec domain.Record) (transport.TestRuleResponse, error) {
	rules, err := e.rules.ListActive(ctx)
	if err != nil {
		return transport.TestRuleResponse{}, fmt.Errorf("list active rules: %w", err)
	}

	resp := transport.TestRuleResponse{Evaluations: make([]transport.RuleEvaluation, 0, len(rules))}
	for i := range rules {
		rule := &rules[i]
		eval := transport.RuleEvaluation{RuleID: rule.ID, RuleName: rule.Name, Priority: rule.Priority}

		switch {
		case resp.Matched:
			eval.Skipped = "an earlier rule matched"
		case rule.CompileError() != nil:
			eval.Skipped = "invalid conditions"
		case !rule.Matches(rec):
		default:
			eval.Matched = true
			pool := rule.Pool()
			if len(pool) == 0 {
				eval.Skipped = "no assignees"
				break
			}
			selector, ok := e.selectors[rule.Strategy]
			if !ok {
				eval.Skipped = "unknown strategy"
				break
			}
			next, err := selector.Peek(ctx, rule)
			if err != nil {
				return transport.TestRuleResponse{}, fmt.Errorf("preview rule %s: %w", rule.ID, err)
			}
			if next == nil {
				eval.Skipped = "no assignees"
				break
			}
			id := rule.ID
			resp.Matched = true
			resp.RuleID = &id
			resp.RuleName = rule.Name
			resp.Strategy = string(rule.Strategy)
			resp.Candidates = uniqueInOrder(pool)
			resp.NextAssignee = next.Identity
		}
		resp.Evaluations = append(resp.Evaluations, eval)
	}
	return resp, nil
}

func (e *Engine) count(strategy domain.Strategy, outcome string) {
	if e.metrics == nil {
		return
	}
	e.metrics.AssignmentDecisions.WithLabelValues(string(strategy), outcome).Inc()
}

func uniqueInOrder(pool []string) []string {
	out := make([]string, 0, len(pool))
	for _, id := range pool {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
