package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fantopark_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TransitionParams is a validated status change.
type TransitionParams struct {
	LeadID uuid.UUID
	// From is the status the change was planned against; the write only
	// applies when the lead is still in it.
	From         domain.Status
	To           domain.Status
	FollowUpDate *time.Time
	ChangedBy    string
	Note         string
}

// AssignParams sets a lead's owner.
type AssignParams struct {
	LeadID     uuid.UUID
	Assignment domain.AssignmentOutcome
	ChangedBy  string
}

// ApplyTransition updates the status and writes the history row in one
// transaction.
func (r *Repository) ApplyTransition(ctx context.Context, params TransitionParams) (lead domain.Lead, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Lead{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	row := tx.QueryRow(ctx, `
		UPDATE leads
		SET status = $3, follow_up_date = $4, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING`+leadColumns,
		params.LeadID, string(params.From), string(params.To), params.FollowUpDate,
	)
	lead, err = scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		err = r.missingOrConflict(ctx, tx, params.LeadID)
		return domain.Lead{}, err
	}
	if err != nil {
		return domain.Lead{}, err
	}

	if err = insertHistory(ctx, tx, params.LeadID, params.From, params.To, params.ChangedBy, params.FollowUpDate, params.Note); err != nil {
		return domain.Lead{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return domain.Lead{}, err
	}
	return lead, nil
}

// Assign writes the owner and provenance. An unassigned lead moves to
// assigned in the same transaction, with a history row.
func (r *Repository) Assign(ctx context.Context, params AssignParams) (lead domain.Lead, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Lead{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var previous string
	err = tx.QueryRow(ctx, `SELECT status FROM leads WHERE id = $1 FOR UPDATE`, params.LeadID).Scan(&previous)
	if errors.Is(err, pgx.ErrNoRows) {
		err = ErrNotFound
		return domain.Lead{}, err
	}
	if err != nil {
		return domain.Lead{}, err
	}

	a := params.Assignment
	row := tx.QueryRow(ctx, `
		UPDATE leads
		SET assigned_to = $2,
			status = CASE WHEN status = $3 THEN $4 ELSE status END,
			manual_assignment_override = manual_assignment_override OR $5,
			auto_assigned = $6,
			assignment_reason = $7,
			assignment_rule_id = $8,
			assignment_rule_name = $9,
			assigned_at = now(),
			updated_at = now()
		WHERE id = $1
		RETURNING`+leadColumns,
		params.LeadID, a.AssignedTo, string(domain.StatusUnassigned), string(domain.StatusAssigned),
		a.Override, a.AutoAssigned, a.Reason, a.RuleID, a.RuleName,
	)
	lead, err = scanLead(row)
	if err != nil {
		return domain.Lead{}, err
	}

	if domain.Status(previous) != lead.Status {
		note := fmt.Sprintf("assigned to %s", a.AssignedTo)
		if err = insertHistory(ctx, tx, params.LeadID, domain.Status(previous), lead.Status, params.ChangedBy, nil, note); err != nil {
			return domain.Lead{}, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return domain.Lead{}, err
	}
	return lead, nil
}

// History returns the status changes of a lead, oldest first.
func (r *Repository) History(ctx context.Context, leadID uuid.UUID) ([]domain.StatusChange, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, old_status, new_status, changed_by, follow_up_date, note, created_at
		FROM lead_status_history
		WHERE lead_id = $1
		ORDER BY created_at ASC, id ASC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	changes := make([]domain.StatusChange, 0)
	for rows.Next() {
		var (
			c                    domain.StatusChange
			oldStatus, newStatus string
		)
		if err := rows.Scan(&c.ID, &c.LeadID, &oldStatus, &newStatus, &c.ChangedBy, &c.FollowUpDate, &c.Note, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.OldStatus = domain.Status(oldStatus)
		c.NewStatus = domain.Status(newStatus)
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

func insertHistory(ctx context.Context, tx pgx.Tx, leadID uuid.UUID, from, to domain.Status, by string, followUp *time.Time, note string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO lead_status_history (lead_id, old_status, new_status, changed_by, follow_up_date, note)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, leadID, string(from), string(to), by, followUp, note)
	return err
}

func (r *Repository) missingOrConflict(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM leads WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStatusConflict
}
