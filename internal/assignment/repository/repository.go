package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"fantopark_backend/internal/assignment/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("assignment rule not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RuleParams carries the editable fields of a rule. The cursor is never
// written through it.
type RuleParams struct {
	Name           string
	Description    string
	Priority       int
	IsActive       bool
	Conditions     map[string]any
	ConditionLogic domain.Logic
	Strategy       domain.Strategy
	Assignees      []domain.Assignee
	CreatedBy      string
}

const ruleColumns = `
	id, name, description, priority, is_active, conditions, condition_logic,
	assignment_strategy, assignees, last_assignment_index, created_by, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (domain.Rule, error) {
	var (
		rule           domain.Rule
		conditionsJSON []byte
		assigneesJSON  []byte
		logic          string
		strategy       string
	)
	if err := row.Scan(
		&rule.ID, &rule.Name, &rule.Description, &rule.Priority, &rule.IsActive, &conditionsJSON, &logic,
		&strategy, &assigneesJSON, &rule.LastAssignmentIndex, &rule.CreatedBy, &rule.CreatedAt, &rule.UpdatedAt,
	); err != nil {
		return domain.Rule{}, err
	}
	rule.ConditionLogic = domain.Logic(logic)
	rule.Strategy = domain.Strategy(strategy)

	if len(assigneesJSON) > 0 {
		if err := json.Unmarshal(assigneesJSON, &rule.Assignees); err != nil {
			return domain.Rule{}, fmt.Errorf("decode assignees for rule %s: %w", rule.ID, err)
		}
	}

	// A malformed stored condition set does not fail the read; the rule keeps
	// the error and never matches.
	rule.LoadConditions(conditionsJSON)

	return rule, nil
}

func encodeParams(params RuleParams) ([]byte, []byte, error) {
	conditions := params.Conditions
	if conditions == nil {
		conditions = map[string]any{}
	}
	conditionsJSON, err := json.Marshal(conditions)
	if err != nil {
		return nil, nil, fmt.Errorf("encode conditions: %w", err)
	}
	assignees := params.Assignees
	if assignees == nil {
		assignees = []domain.Assignee{}
	}
	assigneesJSON, err := json.Marshal(assignees)
	if err != nil {
		return nil, nil, fmt.Errorf("encode assignees: %w", err)
	}
	return conditionsJSON, assigneesJSON, nil
}

func (r *Repository) Create(ctx context.Context, params RuleParams) (domain.Rule, error) {
	conditionsJSON, assigneesJSON, err := encodeParams(params)
	if err != nil {
		return domain.Rule{}, err
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO assignment_rules (
			name, description, priority, is_active, conditions, condition_logic,
			assignment_strategy, assignees, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING`+ruleColumns,
		params.Name, params.Description, params.Priority, params.IsActive, conditionsJSON, string(params.ConditionLogic),
		string(params.Strategy), assigneesJSON, params.CreatedBy,
	)
	return scanRule(row)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domain.Rule, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+ruleColumns+` FROM assignment_rules WHERE id = $1`, id)
	rule, err := scanRule(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Rule{}, ErrNotFound
	}
	return rule, err
}

// List returns rules in evaluation order. Ties on priority fall back to
// creation time, then id, so the order is stable.
func (r *Repository) List(ctx context.Context, includeInactive bool) ([]domain.Rule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+ruleColumns+`
		FROM assignment_rules
		WHERE ($1::boolean OR is_active)
		ORDER BY priority ASC, created_at ASC, id ASC
	`, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := make([]domain.Rule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return rules, nil
}

// ListActive returns the rules consulted by assignment, in priority order.
func (r *Repository) ListActive(ctx context.Context) ([]domain.Rule, error) {
	return r.List(ctx, false)
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, params RuleParams) (domain.Rule, error) {
	conditionsJSON, assigneesJSON, err := encodeParams(params)
	if err != nil {
		return domain.Rule{}, err
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE assignment_rules
		SET name = $2, description = $3, priority = $4, is_active = $5, conditions = $6,
			condition_logic = $7, assignment_strategy = $8, assignees = $9, updated_at = now()
		WHERE id = $1
		RETURNING`+ruleColumns,
		id, params.Name, params.Description, params.Priority, params.IsActive, conditionsJSON,
		string(params.ConditionLogic), string(params.Strategy), assigneesJSON,
	)
	rule, err := scanRule(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Rule{}, ErrNotFound
	}
	return rule, err
}

// SetActive soft-retires or reactivates a rule. Rules are never hard deleted
// because leads keep their id as provenance.
func (r *Repository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE assignment_rules SET is_active = $2, updated_at = now() WHERE id = $1
	`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AdvanceCursor writes only the cursor column.
func (r *Repository) AdvanceCursor(ctx context.Context, id uuid.UUID, newIndex int) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE assignment_rules SET last_assignment_index = $2 WHERE id = $1
	`, id, newIndex)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// NextCursor advances the cursor by one slot modulo poolSize in a single
// statement and returns the new index, so concurrent selections on the same
// rule never read the same value.
func (r *Repository) NextCursor(ctx context.Context, rule *domain.Rule, poolSize int) (int, error) {
	if poolSize <= 0 {
		return -1, nil
	}
	var next int
	err := r.pool.QueryRow(ctx, `
		UPDATE assignment_rules
		SET last_assignment_index = (last_assignment_index + 1) % $2
		WHERE id = $1
		RETURNING last_assignment_index
	`, rule.ID, poolSize).Scan(&next)
	if errors.Is(err, pgx.ErrNoRows) {
		return -1, ErrNotFound
	}
	if err != nil {
		return -1, err
	}
	rule.LastAssignmentIndex = next
	return next, nil
}
