package service

import (
	"context"

	"fantopark_backend/internal/assignment/domain"
	"fantopark_backend/platform/logger"
)

// CursorStore advances a rule's cursor atomically and returns the new slot.
type CursorStore interface {
	NextCursor(ctx context.Context, rule *domain.Rule, poolSize int) (int, error)
}

// WorkloadCounter reports open leads per assignee.
type WorkloadCounter interface {
	CountOpenLeads(ctx context.Context, assignees []string) (map[string]int, error)
}

// Selection is the assignee picked for a matched rule.
type Selection struct {
	Identity string
	Slot     int
}

// Selector picks one assignee for a rule. A nil Selection with a nil error
// means the rule has nobody to assign to. Peek reports who Select would
// pick next without moving any cursor.
type Selector interface {
	Select(ctx context.Context, rule *domain.Rule) (*Selection, error)
	Peek(ctx context.Context, rule *domain.Rule) (*Selection, error)
}

// cursorSelector serves round_robin and weighted_round_robin; the difference
// is entirely in Rule.Pool.
type cursorSelector struct {
	cursors CursorStore
}

func (s cursorSelector) Select(ctx context.Context, rule *domain.Rule) (*Selection, error) {
	pool := rule.Pool()
	if len(pool) == 0 {
		return nil, nil
	}
	slot, err := s.cursors.NextCursor(ctx, rule, len(pool))
	if err != nil {
		return nil, err
	}
	if slot < 0 || slot >= len(pool) {
		return nil, nil
	}
	return &Selection{Identity: pool[slot], Slot: slot}, nil
}

func (s cursorSelector) Peek(_ context.Context, rule *domain.Rule) (*Selection, error) {
	pool := rule.Pool()
	if len(pool) == 0 {
		return nil, nil
	}
	slot := domain.NextIndex(rule.LastAssignmentIndex, len(pool))
	return &Selection{Identity: pool[slot], Slot: slot}, nil
}

// leastBusySelector picks the assignee with the fewest open leads, ties
// going to the earlier assignee. Without a workload signal it behaves as
// round robin.
type leastBusySelector struct {
	workload WorkloadCounter
	fallback Selector
	log      *logger.Logger
}

func (s leastBusySelector) Select(ctx context.Context, rule *domain.Rule) (*Selection, error) {
	if sel, ok := s.pick(ctx, rule); ok {
		return sel, nil
	}
	return s.fallback.Select(ctx, rule)
}

func (s leastBusySelector) Peek(ctx context.Context, rule *domain.Rule) (*Selection, error) {
	if sel, ok := s.pick(ctx, rule); ok {
		return sel, nil
	}
	return s.fallback.Peek(ctx, rule)
}

// pick returns false when the workload signal is unavailable and the
// fallback should decide.
func (s leastBusySelector) pick(ctx context.Context, rule *domain.Rule) (*Selection, bool) {
	if s.workload == nil {
		return nil, false
	}

	pool := rule.Pool()
	if len(pool) == 0 {
		return nil, true
	}

	counts, err := s.workload.CountOpenLeads(ctx, pool)
	if err != nil {
		if s.log != nil {
			s.log.Warn("workload lookup failed, falling back to round robin", "ruleId", rule.ID, "error", err)
		}
		return nil, false
	}

	best := 0
	for i := 1; i < len(pool); i++ {
		if counts[pool[i]] < counts[pool[best]] {
			best = i
		}
	}
	return &Selection{Identity: pool[best], Slot: best}, true
}

// newSelectors builds the strategy table. Adding a strategy only touches
// this table.
func newSelectors(cursors CursorStore, workload WorkloadCounter, log *logger.Logger) map[domain.Strategy]Selector {
	rr := cursorSelector{cursors: cursors}
	return map[domain.Strategy]Selector{
		domain.StrategyRoundRobin:         rr,
		domain.StrategyWeightedRoundRobin: rr,
		domain.StrategyLeastBusy:          leastBusySelector{workload: workload, fallback: rr, log: log},
	}
}
