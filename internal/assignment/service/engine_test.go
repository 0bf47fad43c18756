package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"fantopark_backend/internal/assignment/domain"
	"fantopark_backend/platform/logger"
	"fantopark_backend/platform/metrics"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeRuleLister struct {
	rules []domain.Rule
	err   error
}

func (f *fakeRuleLister) ListActive(context.Context) ([]domain.Rule, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Rule, len(f.rules))
	copy(out, f.rules)
	return out, nil
}

// memoryCursors behaves like the Postgres store: (cursor+1) % size, persisted
// per rule id.
type memoryCursors struct {
	mu      sync.Mutex
	cursors map[uuid.UUID]int
	calls   int
	err     error
}

func newMemoryCursors() *memoryCursors {
	return &memoryCursors{cursors: map[uuid.UUID]int{}}
}

func (m *memoryCursors) NextCursor(_ context.Context, rule *domain.Rule, size int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return -1, m.err
	}
	next := domain.NextIndex(m.cursors[rule.ID], size)
	m.cursors[rule.ID] = next
	rule.LastAssignmentIndex = next
	return next, nil
}

type fakeWorkload struct {
	counts map[string]int
	err    error
}

func (f fakeWorkload) CountOpenLeads(context.Context, []string) (map[string]int, error) {
	return f.counts, f.err
}

func mustRule(t *testing.T, name string, priority int, strategy domain.Strategy, conditions map[string]any, assignees ...string) domain.Rule {
	t.Helper()
	rule := domain.Rule{
		ID:             uuid.New(),
		Name:           name,
		Priority:       priority,
		IsActive:       true,
		Conditions:     conditions,
		ConditionLogic: domain.LogicAnd,
		Strategy:       strategy,
	}
	for _, a := range assignees {
		rule.Assignees = append(rule.Assignees, domain.Assignee{Identity: a})
	}
	if err := rule.Compile(); err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return rule
}

func TestDecideRoundRobinVisitsEveryAssigneeOnce(t *testing.T) {
	rule := mustRule(t, "website", 1, domain.StrategyRoundRobin,
		map[string]any{"source": "website"}, "a@x.com", "b@x.com", "c@x.com")
	engine := NewEngine(&fakeRuleLister{rules: []domain.Rule{rule}}, newMemoryCursors(), logger.Nop(), nil)

	seen := map[string]int{}
	var order []string
	for i := 0; i < 3; i++ {
		dec, err := engine.Decide(context.Background(), domain.Record{"source": "website"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if dec == nil {
			t.Fatalf("expected decision on call %d", i)
		}
		if dec.RuleID != rule.ID || !dec.AutoAssigned || dec.RuleMatched != "website" {
			t.Fatalf("unexpected decision %+v", dec)
		}
		seen[dec.AssignedTo]++
		order = append(order, dec.AssignedTo)
	}
	for _, a := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		if seen[a] != 1 {
			t.Fatalf("expected %s exactly once, got %v", a, seen)
		}
	}
	if order[0] != "b@x.com" {
		t.Fatalf("expected first pick at slot 1, got %s", order[0])
	}
}

func TestDecideFirstMatchByPriorityWins(t *testing.T) {
	high := mustRule(t, "corporate", 1, domain.StrategyRoundRobin,
		map[string]any{"business_type": "B2B"}, "corp@x.com")
	catchAll := mustRule(t, "catch-all", 10, domain.StrategyRoundRobin, nil, "any@x.com")
	engine := NewEngine(&fakeRuleLister{rules: []domain.Rule{high, catchAll}}, newMemoryCursors(), logger.Nop(), nil)

	dec, err := engine.Decide(context.Background(), domain.Record{"business_type": "B2B"})
	if err != nil || dec == nil || dec.AssignedTo != "corp@x.com" {
		t.Fatalf("expected corporate rule to win, got %+v, %v", dec, err)
	}
	dec, err = engine.Decide(context.Background(), domain.Record{"business_type": "B2C"})
	if err != nil || dec == nil || dec.AssignedTo != "any@x.com" {
		t.Fatalf("expected catch-all, got %+v, %v", dec, err)
	}
}

func TestDecideSkipsRuleWithoutAssignees(t *testing.T) {
	empty := mustRule(t, "empty", 1, domain.StrategyRoundRobin, nil)
	next := mustRule(t, "next", 2, domain.StrategyRoundRobin, nil, "n@x.com")
	cursors := newMemoryCursors()
	engine := NewEngine(&fakeRuleLister{rules: []domain.Rule{empty, next}}, cursors, logger.Nop(), nil)

	dec, err := engine.Decide(context.Background(), domain.Record{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec == nil || dec.RuleID != next.ID {
		t.Fatalf("expected fall through to next rule, got %+v", dec)
	}
	if _, touched := cursors.cursors[empty.ID]; touched {
		t.Fatalf("empty rule cursor must not move")
	}
}

func TestDecideSkipsRuleWithInvalidStoredConditions(t *testing.T) {
	broken := domain.Rule{ID: uuid.New(), Name: "broken", Strategy: domain.StrategyRoundRobin,
		ConditionLogic: domain.LogicAnd, Assignees: []domain.Assignee{{Identity: "x@x.com"}}}
	broken.LoadConditions([]byte(`{"source":{"regex":"web.*"}}`))
	good := mustRule(t, "good", 2, domain.StrategyRoundRobin, nil, "g@x.com")
	engine := NewEngine(&fakeRuleLister{rules: []domain.Rule{broken, good}}, newMemoryCursors(), logger.Nop(), nil)

	dec, err := engine.Decide(context.Background(), domain.Record{"source": "website"})
	if err != nil || dec == nil || dec.AssignedTo != "g@x.com" {
		t.Fatalf("expected broken rule skipped, got %+v, %v", dec, err)
	}
}

func TestDecideNoMatchReturnsNil(t *testing.T) {
	rule := mustRule(t, "website", 1, domain.StrategyRoundRobin, map[string]any{"source": "website"}, "a@x.com")
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	engine := NewEngine(&fakeRuleLister{rules: []domain.Rule{rule}}, newMemoryCursors(), logger.Nop(), m)

	dec, err := engine.Decide(context.Background(), domain.Record{"source": "walk_in"})
	if err != nil || dec != nil {
		t.Fatalf("expected no decision, got %+v, %v", dec, err)
	}
	if got := testutil.ToFloat64(m.AssignmentDecisions.WithLabelValues("", outcomeNoMatch)); got != 1 {
		t.Fatalf("expected one no_match count, got %v", got)
	}
}

func TestDecideCursorFailureReturnsError(t *testing.T) {
	rule := mustRule(t, "any", 1, domain.StrategyRoundRobin, nil, "a@x.com")
	cursors := newMemoryCursors()
	cursors.err = errors.New("connection reset")
	engine := NewEngine(&fakeRuleLister{rules: []domain.Rule{rule}}, cursors, logger.Nop(), nil)

	dec, err := engine.Decide(context.Background(), domain.Record{})
	if err == nil || dec != nil {
		t.Fatalf("expected error without decision, got %+v, %v", dec, err)
	}
}

func TestDecideRuleListFailure(t *testing.T) {
	engine := NewEngine(&fakeRuleLister{err: errors.New("db down")}, newMemoryCursors(), logger.Nop(), nil)
	if _, err := engine.Decide(context.Background(), domain.Record{}); err == nil {
		t.Fatalf("expected list error to surface")
	}
}

func TestDecideConcurrentCallsShareCursor(t *testing.T) {
	rule := mustRule(t, "any", 1, domain.StrategyRoundRobin, nil, "a", "b", "c", "d")
	engine := NewEngine(&fakeRuleLister{rules: []domain.Rule{rule}}, newMemoryCursors(), logger.Nop(), nil)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[string]int{}
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dec, err := engine.Decide(context.Background(), domain.Record{})
			if err != nil || dec == nil {
				t.Errorf("unexpected %+v, %v", dec, err)
				return
			}
			mu.Lock()
			seen[dec.AssignedTo]++
			mu.Unlock()
		}()
	}
	wg.Wait()
	for _, a := range []string{"a", "b", "c", "d"} {
		if seen[a] != 10 {
			t.Fatalf("expected even spread, got %v", seen)
		}
	}
}

func TestLeastBusyWithoutWorkloadFallsBackToRoundRobin(t *testing.T) {
	rule := mustRule(t, "lb", 1, domain.StrategyLeastBusy, nil, "a", "b")
	cursors := newMemoryCursors()
	engine := NewEngine(&fakeRuleLister{rules: []domain.Rule{rule}}, cursors, logger.Nop(), nil)

	first, _ := engine.Decide(context.Background(), domain.Record{})
	second, _ := engine.Decide(context.Background(), domain.Record{})
	if first.AssignedTo != "b" || second.AssignedTo != "a" {
		t.Fatalf("expected round robin order b,a; got %s,%s", first.AssignedTo, second.AssignedTo)
	}
	if cursors.calls != 2 {
		t.Fatalf("expected cursor advanced twice, got %d", cursors.calls)
	}
}

func TestLeastBusyPicksFewestOpenLeads(t *testing.T) {
	rule := mustRule(t, "lb", 1, domain.StrategyLeastBusy, nil, "a", "b", "c")
	cursors := newMemoryCursors()
	engine := NewEngine(&fakeRuleLister{rules: []domain.Rule{rule}}, cursors, logger.Nop(), nil)
	engine.SetWorkloadCounter(fakeWorkload{counts: map[string]int{"a": 4, "b": 1, "c": 1}})

	dec, err := engine.Decide(context.Background(), domain.Record{})
	if err != nil || dec == nil {
		t.Fatalf("unexpected %+v, %v", dec, err)
	}
	if dec.AssignedTo != "b" {
		t.Fatalf("expected tie to go to earlier assignee b, got %s", dec.AssignedTo)
	}
	if cursors.calls != 0 {
		t.Fatalf("workload selection must not move the cursor")
	}

	engine.SetWorkloadCounter(fakeWorkload{err: errors.New("timeout")})
	dec, err = engine.Decide(context.Background(), domain.Record{})
	if err != nil || dec == nil || cursors.calls != 1 {
		t.Fatalf("expected round robin fallback on workload error, got %+v, %v", dec, err)
	}
}

func TestWeightedRoundRobinFollowsWeights(t *testing.T) {
	heavy, light := 3, 1
	rule := domain.Rule{
		ID: uuid.New(), Name: "weighted", ConditionLogic: domain.LogicAnd,
		Strategy: domain.StrategyWeightedRoundRobin,
		Assignees: []domain.Assignee{
			{Identity: "senior", Weight: &heavy},
			{Identity: "junior", Weight: &light},
		},
	}
	if err := rule.Compile(); err != nil {
		t.Fatalf("compile: %v", err)
	}
	engine := NewEngine(&fakeRuleLister{rules: []domain.Rule{rule}}, newMemoryCursors(), logger.Nop(), nil)

	seen := map[string]int{}
	for i := 0; i < 40; i++ {
		dec, err := engine.Decide(context.Background(), domain.Record{})
		if err != nil || dec == nil {
			t.Fatalf("unexpected %+v, %v", dec, err)
		}
		seen[dec.AssignedTo]++
	}
	if seen["senior"] != 30 || seen["junior"] != 10 {
		t.Fatalf("expected 30/10 split, got %v", seen)
	}
}

func TestPreviewDoesNotMoveCursor(t *testing.T) {
	skip := mustRule(t, "corporate", 1, domain.StrategyRoundRobin, map[string]any{"business_type": "B2B"}, "corp")
	rule := mustRule(t, "any", 2, domain.StrategyRoundRobin, nil, "a", "b", "a")
	later := mustRule(t, "later", 3, domain.StrategyRoundRobin, nil, "z")
	cursors := newMemoryCursors()
	engine := NewEngine(&fakeRuleLister{rules: []domain.Rule{skip, rule, later}}, cursors, logger.Nop(), nil)

	resp, err := engine.Preview(context.Background(), domain.Record{"business_type": "B2C"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Matched || resp.RuleName != "any" || resp.NextAssignee != "b" {
		t.Fatalf("unexpected preview %+v", resp)
	}
	if len(resp.Candidates) != 2 {
		t.Fatalf("expected deduplicated candidates, got %v", resp.Candidates)
	}
	if len(resp.Evaluations) != 3 || resp.Evaluations[0].Matched || resp.Evaluations[2].Skipped == "" {
		t.Fatalf("unexpected evaluations %+v", resp.Evaluations)
	}
	if cursors.calls != 0 {
		t.Fatalf("preview must not touch cursors")
	}
}

func TestPreviewFollowsLeastBusyStrategy(t *testing.T) {
	rule := mustRule(t, "lb", 1, domain.StrategyLeastBusy, nil, "a", "b", "c")
	cursors := newMemoryCursors()
	engine := NewEngine(&fakeRuleLister{rules: []domain.Rule{rule}}, cursors, logger.Nop(), nil)
	engine.SetWorkloadCounter(fakeWorkload{counts: map[string]int{"a": 2, "b": 5, "c": 0}})

	resp, err := engine.Preview(context.Background(), domain.Record{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.NextAssignee != "c" {
		t.Fatalf("expected least loaded assignee c, got %q", resp.NextAssignee)
	}

	engine.SetWorkloadCounter(fakeWorkload{err: errors.New("timeout")})
	resp, err = engine.Preview(context.Background(), domain.Record{})
	if err != nil || resp.NextAssignee != "b" {
		t.Fatalf("expected round robin preview b on workload error, got %q, %v", resp.NextAssignee, err)
	}
	if cursors.calls != 0 {
		t.Fatalf("preview must not touch cursors")
	}
}
