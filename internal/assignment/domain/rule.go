package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Strategy selects how a matched rule picks an assignee.
type Strategy string

const (
	StrategyRoundRobin         Strategy = "round_robin"
	StrategyWeightedRoundRobin Strategy = "weighted_round_robin"
	StrategyLeastBusy          Strategy = "least_busy"
)

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyRoundRobin, StrategyWeightedRoundRobin, StrategyLeastBusy:
		return true
	}
	return false
}

// DefaultWeight applies to weighted assignees without an explicit weight.
const DefaultWeight = 50

// Assignee is an identity eligible to own leads matched by a rule.
type Assignee struct {
	Identity string `json:"identity"`
	Weight   *int   `json:"weight,omitempty"`
}

// EffectiveWeight returns the weight used to build the weighted pool.
func (a Assignee) EffectiveWeight() int {
	if a.Weight == nil {
		return DefaultWeight
	}
	if *a.Weight < 0 {
		return 0
	}
	return *a.Weight
}

// Rule is an assignment rule as loaded from storage, with its conditions
// compiled once.
type Rule struct {
	ID                  uuid.UUID
	Name                string
	Description         string
	Priority            int
	IsActive            bool
	Conditions          map[string]any
	ConditionLogic      Logic
	Strategy            Strategy
	Assignees           []Assignee
	LastAssignmentIndex int
	CreatedBy           string
	CreatedAt           time.Time
	UpdatedAt           time.Time

	compiled   ConditionSet
	compileErr error
	compiledOK bool
}

// Compile parses the raw conditions. Rules read from storage are compiled by
// the repository; a failure is kept on the rule so Matches can refuse it.
func (r *Rule) Compile() error {
	set, err := ParseConditions(r.Conditions)
	r.compiled = set
	r.compileErr = err
	r.compiledOK = true
	return err
}

// LoadConditions decodes and compiles conditions stored as JSON. Decode and
// compile failures stay on the rule.
func (r *Rule) LoadConditions(data []byte) {
	set, raw, err := ParseConditionsJSON(data)
	if raw == nil {
		raw = map[string]any{}
	}
	r.Conditions = raw
	r.compiled = set
	r.compileErr = err
	r.compiledOK = true
}

// CompileError returns the error from the last Compile, if any.
func (r *Rule) CompileError() error {
	if !r.compiledOK {
		return r.Compile()
	}
	return r.compileErr
}

// Matches evaluates the rule's conditions against rec.
func (r *Rule) Matches(rec Record) bool {
	if err := r.CompileError(); err != nil {
		return false
	}
	return r.compiled.Evaluate(rec, r.ConditionLogic)
}

// Pool returns the ordered slots the cursor walks for this rule. Plain and
// least-busy rules use the assignee list; weighted rules repeat assignee i
// weight_i times in list order.
func (r *Rule) Pool() []string {
	if r.Strategy != StrategyWeightedRoundRobin {
		pool := make([]string, 0, len(r.Assignees))
		for _, a := range r.Assignees {
			pool = append(pool, a.Identity)
		}
		return pool
	}

	size := 0
	for _, a := range r.Assignees {
		size += a.EffectiveWeight()
	}
	pool := make([]string, 0, size)
	for _, a := range r.Assignees {
		for i := 0; i < a.EffectiveWeight(); i++ {
			pool = append(pool, a.Identity)
		}
	}
	return pool
}

// NextIndex is the cursor step: the slot after cursor, wrapping at size.
// A fresh rule starts at cursor 0, so its first pick is slot 1.
func NextIndex(cursor, size int) int {
	if size <= 0 {
		return -1
	}
	if cursor < 0 {
		cursor = 0
	}
	return (cursor + 1) % size
}

// Validate checks the editable fields of a rule before it is saved.
func (r *Rule) Validate() error {
	var errs []error
	if strings.TrimSpace(r.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if !r.ConditionLogic.Valid() {
		errs = append(errs, fmt.Errorf("condition_logic %q must be AND or OR", r.ConditionLogic))
	}
	if !r.Strategy.Valid() {
		errs = append(errs, fmt.Errorf("assignment_strategy %q is not supported", r.Strategy))
	}
	seen := make(map[string]struct{}, len(r.Assignees))
	for i, a := range r.Assignees {
		identity := strings.TrimSpace(a.Identity)
		if identity == "" {
			errs = append(errs, fmt.Errorf("assignees[%d]: identity is required", i))
			continue
		}
		if _, dup := seen[identity]; dup {
			errs = append(errs, fmt.Errorf("assignees[%d]: %s is listed twice", i, identity))
		}
		seen[identity] = struct{}{}
		if a.Weight != nil && *a.Weight < 0 {
			errs = append(errs, fmt.Errorf("assignees[%d]: weight must not be negative", i))
		}
	}
	if _, err := ParseConditions(r.Conditions); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Decision is the ephemeral result of assigning one record by rule.
type Decision struct {
	AssignedTo   string    `json:"assigned_to"`
	RuleMatched  string    `json:"rule_matched"`
	RuleID       uuid.UUID `json:"rule_id"`
	Strategy     Strategy  `json:"strategy"`
	Reason       string    `json:"assignment_reason"`
	AutoAssigned bool      `json:"auto_assigned"`
}
