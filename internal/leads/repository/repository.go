package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fantopark_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("lead not found")
	// ErrStatusConflict means the lead's status changed between read and write.
	ErrStatusConflict = errors.New("lead status changed concurrently")
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateLeadParams is a fully resolved lead ready to insert.
type CreateLeadParams struct {
	Intake        domain.Intake
	DisplayPhone  string
	ClientID      string
	IsPrimaryLead bool
	Status        domain.Status
	Assignment    domain.AssignmentOutcome
}

const leadColumns = `
	id, name, email, phone, company, business_type, source, lead_for_event, potential_value, attributes,
	status, assigned_to, follow_up_date, client_id, is_primary_lead, client_total_leads, client_events,
	client_first_contact, manual_assignment_override, auto_assigned, assignment_reason, assignment_rule_id,
	assignment_rule_name, assigned_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (domain.Lead, error) {
	var (
		lead           domain.Lead
		status         string
		attributesJSON []byte
	)
	if err := row.Scan(
		&lead.ID, &lead.Name, &lead.Email, &lead.Phone, &lead.Company, &lead.BusinessType, &lead.Source,
		&lead.LeadForEvent, &lead.PotentialValue, &attributesJSON,
		&status, &lead.AssignedTo, &lead.FollowUpDate, &lead.ClientID, &lead.IsPrimaryLead,
		&lead.ClientTotalLeads, &lead.ClientEvents, &lead.ClientFirstContact,
		&lead.ManualAssignmentOverride, &lead.AutoAssigned, &lead.AssignmentReason, &lead.AssignmentRuleID,
		&lead.AssignmentRuleName, &lead.AssignedAt, &lead.CreatedAt, &lead.UpdatedAt,
	); err != nil {
		return domain.Lead{}, err
	}
	lead.Status = domain.Status(status)

	lead.Attributes = map[string]any{}
	if len(attributesJSON) > 0 {
		if err := json.Unmarshal(attributesJSON, &lead.Attributes); err != nil {
			return domain.Lead{}, fmt.Errorf("decode attributes for lead %s: %w", lead.ID, err)
		}
	}
	return lead, nil
}

func collectLeads(rows pgx.Rows) ([]domain.Lead, error) {
	defer rows.Close()
	leads := make([]domain.Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return leads, nil
}

func (r *Repository) Create(ctx context.Context, params CreateLeadParams) (domain.Lead, error) {
	in := params.Intake
	attributes := in.Attributes
	if attributes == nil {
		attributes = map[string]any{}
	}
	attributesJSON, err := json.Marshal(attributes)
	if err != nil {
		return domain.Lead{}, fmt.Errorf("encode attributes: %w", err)
	}

	phone := params.DisplayPhone
	if phone == "" {
		phone = in.Phone
	}

	var assignedAt *time.Time
	if params.Assignment.Assigned() {
		now := time.Now().UTC()
		assignedAt = &now
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO leads (
			name, email, phone, company, business_type, source, lead_for_event, potential_value, attributes,
			status, assigned_to, client_id, is_primary_lead, client_first_contact,
			manual_assignment_override, auto_assigned, assignment_reason, assignment_rule_id,
			assignment_rule_name, assigned_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now(), $14, $15, $16, $17, $18, $19)
		RETURNING`+leadColumns,
		in.Name, in.Email, phone, in.Company, in.BusinessType, in.Source, in.LeadForEvent, in.PotentialValue,
		attributesJSON, string(params.Status), params.Assignment.AssignedTo, params.ClientID, params.IsPrimaryLead,
		params.Assignment.Override, params.Assignment.AutoAssigned, params.Assignment.Reason,
		params.Assignment.RuleID, params.Assignment.RuleName, assignedAt,
	)
	return scanLead(row)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+leadColumns+` FROM leads WHERE id = $1`, id)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	return lead, err
}

// ListByClientID returns a client's leads oldest first.
func (r *Repository) ListByClientID(ctx context.Context, clientID string) ([]domain.Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+leadColumns+`
		FROM leads
		WHERE client_id = $1
		ORDER BY created_at ASC, id ASC
	`, clientID)
	if err != nil {
		return nil, err
	}
	return collectLeads(rows)
}

// RefreshClientAggregates recomputes the denormalized client fields on every
// lead of the client.
func (r *Repository) RefreshClientAggregates(ctx context.Context, clientID string) error {
	_, err := r.pool.Exec(ctx, `
		WITH agg AS (
			SELECT
				COUNT(*)::int AS total,
				MIN(created_at) AS first_contact,
				COALESCE(
					(SELECT array_agg(ev ORDER BY first_seen)
					 FROM (
						SELECT lead_for_event AS ev, MIN(created_at) AS first_seen
						FROM leads
						WHERE client_id = $1 AND lead_for_event <> ''
						GROUP BY lead_for_event
					 ) events),
					'{}'::text[]
				) AS events
			FROM leads
			WHERE client_id = $1
		)
		UPDATE leads l
		SET client_total_leads = agg.total,
			client_first_contact = agg.first_contact,
			client_events = agg.events,
			updated_at = now()
		FROM agg
		WHERE l.client_id = $1
	`, clientID)
	return err
}

// ListUnassigned returns unassigned leads, restricted to ids when given,
// oldest first.
func (r *Repository) ListUnassigned(ctx context.Context, ids []uuid.UUID, limit int) ([]domain.Lead, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := r.pool.Query(ctx, `
		SELECT`+leadColumns+`
		FROM leads
		WHERE status = $1
			AND assigned_to = ''
			AND (cardinality($2::uuid[]) = 0 OR id = ANY($2::uuid[]))
		ORDER BY created_at ASC, id ASC
		LIMIT $3
	`, string(domain.StatusUnassigned), ids, limit)
	if err != nil {
		return nil, err
	}
	return collectLeads(rows)
}

// ListDueFollowUps returns parked leads whose follow-up date is at or
// before the cutoff.
func (r *Repository) ListDueFollowUps(ctx context.Context, cutoff time.Time, limit int) ([]domain.Lead, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `
		SELECT`+leadColumns+`
		FROM leads
		WHERE status = $1
			AND follow_up_date IS NOT NULL
			AND follow_up_date <= $2
		ORDER BY follow_up_date ASC
		LIMIT $3
	`, string(domain.StatusPickupLater), cutoff, limit)
	if err != nil {
		return nil, err
	}
	return collectLeads(rows)
}

// CountOpenLeads counts non-terminal assigned leads per owner. Owners with no
// open leads are present with zero.
func (r *Repository) CountOpenLeads(ctx context.Context, assignees []string) (map[string]int, error) {
	counts := make(map[string]int, len(assignees))
	for _, a := range assignees {
		counts[a] = 0
	}
	if len(assignees) == 0 {
		return counts, nil
	}

	open := domain.OpenStatuses()
	statuses := make([]string, 0, len(open))
	for _, s := range open {
		statuses = append(statuses, string(s))
	}

	rows, err := r.pool.Query(ctx, `
		SELECT assigned_to, COUNT(*)::int
		FROM leads
		WHERE assigned_to = ANY($1::text[]) AND status = ANY($2::text[])
		GROUP BY assigned_to
	`, assignees, statuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			assignee string
			n        int
		)
		if err := rows.Scan(&assignee, &n); err != nil {
			return nil, err
		}
		counts[assignee] = n
	}
	return counts, rows.Err()
}
