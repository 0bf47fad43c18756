package transport

import (
	"time"

	"github.com/google/uuid"
)

type AssigneeDTO struct {
	Identity string `json:"identity" validate:"required,notblank,max=320"`
	Weight   *int   `json:"weight,omitempty" validate:"omitempty,min=0,max=1000"`
}

// RuleRequest is used for both create and full update.
type RuleRequest struct {
	Name               string         `json:"name" validate:"required,notblank,max=200"`
	Description        string         `json:"description" validate:"max=2000"`
	Priority           *int           `json:"priority" validate:"omitempty,min=0"`
	IsActive           *bool          `json:"is_active"`
	Conditions         map[string]any `json:"conditions"`
	ConditionLogic     string         `json:"condition_logic" validate:"omitempty,oneof=AND OR"`
	AssignmentStrategy string         `json:"assignment_strategy" validate:"omitempty,oneof=round_robin weighted_round_robin least_busy"`
	Assignees          []AssigneeDTO  `json:"assignees" validate:"dive"`
}

type RuleResponse struct {
	ID                  uuid.UUID      `json:"id"`
	Name                string         `json:"name"`
	Description         string         `json:"description"`
	Priority            int            `json:"priority"`
	IsActive            bool           `json:"is_active"`
	Conditions          map[string]any `json:"conditions"`
	ConditionLogic      string         `json:"condition_logic"`
	AssignmentStrategy  string         `json:"assignment_strategy"`
	Assignees           []AssigneeDTO  `json:"assignees"`
	LastAssignmentIndex int            `json:"last_assignment_index"`
	CreatedBy           string         `json:"created_by,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

type RuleListResponse struct {
	Items []RuleResponse `json:"items"`
	Total int            `json:"total"`
}

// TestRuleRequest runs a record through the active rules without moving
// any cursor.
type TestRuleRequest struct {
	Record map[string]any `json:"record" validate:"required"`
}

type RuleEvaluation struct {
	RuleID   uuid.UUID `json:"rule_id"`
	RuleName string    `json:"rule_name"`
	Priority int       `json:"priority"`
	Matched  bool      `json:"matched"`
	Skipped  string    `json:"skipped,omitempty"`
}

type TestRuleResponse struct {
	Matched      bool             `json:"matched"`
	RuleID       *uuid.UUID       `json:"rule_id,omitempty"`
	RuleName     string           `json:"rule_name,omitempty"`
	Strategy     string           `json:"strategy,omitempty"`
	NextAssignee string           `json:"next_assignee,omitempty"`
	Candidates   []string         `json:"candidates,omitempty"`
	Evaluations  []RuleEvaluation `json:"evaluations"`
}
