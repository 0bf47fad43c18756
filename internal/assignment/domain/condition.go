// Package domain holds the assignment rule model: compiled conditions,
// strategies and the assignee pool the cursor walks.
package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Logic combines field results.
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// Valid reports whether l is a known logic.
func (l Logic) Valid() bool {
	return l == LogicAnd || l == LogicOr
}

// Operator is a key inside an operator-set condition.
type Operator string

const (
	OpEq       Operator = "eq"
	OpNeq      Operator = "neq"
	OpGt       Operator = "gt"
	OpGte      Operator = "gte"
	OpLt       Operator = "lt"
	OpLte      Operator = "lte"
	OpIn       Operator = "in"
	OpContains Operator = "contains"
)

// ConditionKind tags the Condition variant.
type ConditionKind int

const (
	KindEquals ConditionKind = iota + 1
	KindCompare
	KindMembership
	KindContains
)

// Condition is a single compiled test against one field value.
type Condition struct {
	Kind  ConditionKind
	Op    Operator // KindCompare only
	Value any      // KindEquals, KindCompare; lowered string for KindContains
	List  []any    // KindMembership
}

// FieldConditions are the alternatives for one field. Any passing
// alternative makes the field match.
type FieldConditions struct {
	Field        string
	Alternatives []Condition
}

// ConditionSet is the compiled form of a rule's conditions map.
type ConditionSet struct {
	Fields []FieldConditions
}

// Record is the flat view of a lead that rules evaluate.
// Absent keys and nil values are treated as undefined.
type Record map[string]any

// ParseConditions compiles a raw conditions map. A field maps to a scalar
// literal (strict equality) or to an operator set.
func ParseConditions(raw map[string]any) (ConditionSet, error) {
	fields := make([]string, 0, len(raw))
	for field := range raw {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	set := ConditionSet{Fields: make([]FieldConditions, 0, len(fields))}
	for _, field := range fields {
		if strings.TrimSpace(field) == "" {
			return ConditionSet{}, fmt.Errorf("condition field name is empty")
		}
		alts, err := parseField(field, raw[field])
		if err != nil {
			return ConditionSet{}, err
		}
		set.Fields = append(set.Fields, FieldConditions{Field: field, Alternatives: alts})
	}
	return set, nil
}

// ParseConditionsJSON compiles conditions stored as a JSON object.
func ParseConditionsJSON(data []byte) (ConditionSet, map[string]any, error) {
	raw := map[string]any{}
	if len(data) > 0 && string(data) != "null" {
		if err := json.Unmarshal(data, &raw); err != nil {
			return ConditionSet{}, nil, fmt.Errorf("decode conditions: %w", err)
		}
	}
	set, err := ParseConditions(raw)
	return set, raw, err
}

func parseField(field string, value any) ([]Condition, error) {
	switch typed := value.(type) {
	case map[string]any:
		if len(typed) == 0 {
			return nil, fmt.Errorf("condition %q: operator set is empty", field)
		}
		ops := make([]string, 0, len(typed))
		for op := range typed {
			ops = append(ops, op)
		}
		sort.Strings(ops)

		alts := make([]Condition, 0, len(ops))
		for _, op := range ops {
			cond, err := parseOperator(field, Operator(op), typed[op])
			if err != nil {
				return nil, err
			}
			alts = append(alts, cond)
		}
		return alts, nil
	case []any:
		return nil, fmt.Errorf("condition %q: lists are only allowed under the %q operator", field, OpIn)
	default:
		if !isScalar(typed) {
			return nil, fmt.Errorf("condition %q: unsupported value type %T", field, value)
		}
		return []Condition{{Kind: KindEquals, Value: typed}}, nil
	}
}

func parseOperator(field string, op Operator, value any) (Condition, error) {
	switch op {
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte:
		if !isScalar(value) {
			return Condition{}, fmt.Errorf("condition %q: %s needs a scalar value", field, op)
		}
		return Condition{Kind: KindCompare, Op: op, Value: value}, nil
	case OpIn:
		list, ok := value.([]any)
		if !ok {
			return Condition{}, fmt.Errorf("condition %q: in needs a list", field)
		}
		return Condition{Kind: KindMembership, List: list}, nil
	case OpContains:
		s, ok := value.(string)
		if !ok {
			return Condition{}, fmt.Errorf("condition %q: contains needs a string", field)
		}
		return Condition{Kind: KindContains, Value: strings.ToLower(s)}, nil
	default:
		return Condition{}, fmt.Errorf("condition %q: unknown operator %q", field, op)
	}
}

// Evaluate reports whether rec satisfies the set under logic. An empty set
// matches every record. Unknown logic is treated as AND.
func (cs ConditionSet) Evaluate(rec Record, logic Logic) bool {
	if len(cs.Fields) == 0 {
		return true
	}

	if logic == LogicOr {
		for _, fc := range cs.Fields {
			if fc.matches(rec) {
				return true
			}
		}
		return false
	}

	for _, fc := range cs.Fields {
		if !fc.matches(rec) {
			return false
		}
	}
	return true
}

// Operators on the same field are OR'd, so {gte: 100000, lt: 500000}
// accepts every number.
func (fc FieldConditions) matches(rec Record) bool {
	value, present := rec[fc.Field]
	if value == nil {
		present = false
	}
	for _, cond := range fc.Alternatives {
		if cond.test(value, present) {
			return true
		}
	}
	return false
}

func (c Condition) test(value any, present bool) bool {
	switch c.Kind {
	case KindEquals:
		return present && strictEqual(value, c.Value)
	case KindCompare:
		return compare(c.Op, value, present, c.Value)
	case KindMembership:
		if !present {
			return false
		}
		for _, item := range c.List {
			if strictEqual(value, item) {
				return true
			}
		}
		return false
	case KindContains:
		if !present {
			return false
		}
		needle, _ := c.Value.(string)
		return containsFold(value, needle)
	default:
		return false
	}
}

func compare(op Operator, value any, present bool, want any) bool {
	left, lok := toNumber(value)
	right, rok := toNumber(want)
	if !present {
		lok = false
	}

	switch op {
	case OpEq:
		if lok && rok {
			return left == right
		}
		return present && strictEqual(value, want)
	case OpNeq:
		if lok && rok {
			return left != right
		}
		return !present || !strictEqual(value, want)
	}

	if !lok || !rok {
		return false
	}
	switch op {
	case OpGt:
		return left > right
	case OpGte:
		return left >= right
	case OpLt:
		return left < right
	case OpLte:
		return left <= right
	}
	return false
}

func containsFold(value any, needle string) bool {
	switch typed := value.(type) {
	case string:
		return strings.Contains(strings.ToLower(typed), needle)
	case []string:
		for _, item := range typed {
			if strings.Contains(strings.ToLower(item), needle) {
				return true
			}
		}
		return false
	case []any:
		for _, item := range typed {
			if containsFold(item, needle) {
				return true
			}
		}
		return false
	default:
		if !isScalar(typed) {
			return false
		}
		return strings.Contains(strings.ToLower(fmt.Sprint(typed)), needle)
	}
}

// strictEqual compares without cross-type coercion. All numeric kinds are one
// type, so int 5 equals float64 5.
func strictEqual(a, b any) bool {
	if an, ok := numericValue(a); ok {
		bn, ok := numericValue(b)
		return ok && an == bn
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	}
	return false
}

// numericValue accepts values that already are numbers.
func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), !math.IsNaN(float64(n))
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	}
	return 0, false
}

// toNumber is the best-effort cast used by comparisons: numbers and numeric
// strings coerce, everything else is NaN.
func toNumber(v any) (float64, bool) {
	if n, ok := numericValue(v); ok {
		return n, true
	}
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func isScalar(v any) bool {
	switch v.(type) {
	case nil, string, bool:
		return true
	}
	_, ok := numericValue(v)
	return ok
}
