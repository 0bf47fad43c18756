package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"fantopark_backend/internal/events"
	"fantopark_backend/internal/leads/domain"
	"fantopark_backend/internal/leads/ports"
	"fantopark_backend/internal/leads/repository"
	"fantopark_backend/platform/apperr"
	"fantopark_backend/platform/logger"
	"fantopark_backend/platform/metrics"
	"fantopark_backend/platform/phone"
	"fantopark_backend/platform/sanitize"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	defaultImportConcurrency = 8
	bulkAssignLimit          = 1000
)

// IntakeRepository is what lead creation and bulk assignment need.
type IntakeRepository interface {
	repository.LeadReader
	repository.LeadWriter
	repository.WorkQueue
	Assign(ctx context.Context, params repository.AssignParams) (domain.Lead, error)
}

// ImportRowResult is the outcome of one import row, in input position.
type ImportRowResult struct {
	Index      int
	LeadID     *uuid.UUID
	ClientID   string
	AssignedTo string
	Source     domain.AssignmentSource
	Reason     string
	Override   bool
	Err        error
}

// ImportResult summarizes a bulk import.
type ImportResult struct {
	Total      int
	Created    int
	Failed     int
	Assigned   int
	Unassigned int
	Rows       []ImportRowResult
}

// BulkAssignItem is the outcome for one lead of a bulk assignment run.
type BulkAssignItem struct {
	LeadID     uuid.UUID
	AssignedTo string
	Source     domain.AssignmentSource
	Err        error
}

// BulkAssignResult summarizes a bulk assignment run.
type BulkAssignResult struct {
	Processed int
	Assigned  int
	Unmatched int
	Failed    int
	Items     []BulkAssignItem
}

// Intake creates leads and assigns them by manual choice, client history or
// rule, in that order.
type Intake struct {
	repo        IntakeRepository
	decider     ports.AssignmentDecider
	bus         events.Bus
	metrics     *metrics.Metrics
	log         *logger.Logger
	concurrency int
}

func NewIntake(repo IntakeRepository, decider ports.AssignmentDecider, bus events.Bus, log *logger.Logger) *Intake {
	return &Intake{repo: repo, decider: decider, bus: bus, log: log, concurrency: defaultImportConcurrency}
}

// SetConcurrency bounds how many clients are imported at once.
func (s *Intake) SetConcurrency(n int) {
	if n > 0 {
		s.concurrency = n
	}
}

// SetMetrics enables import counters.
func (s *Intake) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// CreateLead runs a single intake through client resolution and assignment
// and persists it.
func (s *Intake) CreateLead(ctx context.Context, in domain.Intake) (domain.Lead, domain.AssignmentOutcome, error) {
	in = sanitizeIntake(in)
	if in.Name == "" && in.Phone == "" && in.Email == "" {
		return domain.Lead{}, domain.AssignmentOutcome{}, apperr.Validation("a lead needs a name, phone or email").
			WithCode("EMPTY_LEAD")
	}

	clientID := phone.ClientID(in.Phone)
	var client *domain.Client
	if phone.IsMatchable(in.Phone) {
		existing, err := s.repo.ListByClientID(ctx, clientID)
		if err != nil {
			return domain.Lead{}, domain.AssignmentOutcome{}, fmt.Errorf("load client %s: %w", clientID, err)
		}
		client = domain.BuildClient(clientID, existing)
	}

	var clientOwner string
	if client != nil {
		clientOwner = client.PrimaryAssignedTo
	}

	outcome, err := domain.ResolveAssignment(in.AssignedTo, clientOwner, func() (*domain.RuleMatch, error) {
		if s.decider == nil {
			return nil, nil
		}
		return s.decider.DecideAssignee(ctx, in.Record())
	})
	if err != nil {
		return domain.Lead{}, domain.AssignmentOutcome{}, fmt.Errorf("resolve assignment: %w", err)
	}

	// The rule cursor has already moved. A failed insert keeps that turn
	// consumed; rewinding it would race with concurrent intakes.
	lead, err := s.repo.Create(ctx, repository.CreateLeadParams{
		Intake:        in,
		DisplayPhone:  phone.FormatE164(in.Phone),
		ClientID:      clientID,
		IsPrimaryLead: client == nil,
		Status:        outcome.InitialStatus(),
		Assignment:    outcome,
	})
	if err != nil {
		return domain.Lead{}, domain.AssignmentOutcome{}, fmt.Errorf("create lead: %w", err)
	}

	if err := s.repo.RefreshClientAggregates(ctx, clientID); err != nil {
		s.log.Warn("failed to refresh client aggregates", "clientId", clientID, "error", err)
	} else if refreshed, err := s.repo.GetByID(ctx, lead.ID); err == nil {
		lead = refreshed
	}

	s.bus.Publish(ctx, events.LeadCreated{
		BaseEvent:    events.NewBaseEvent(),
		LeadID:       lead.ID,
		ClientID:     clientID,
		Source:       lead.Source,
		AssignedTo:   lead.AssignedTo,
		AutoAssigned: outcome.AutoAssigned,
	})
	if outcome.Assigned() {
		publishAssigned(ctx, s.bus, lead, outcome, "")
	}
	return lead, outcome, nil
}

// Import creates one lead per record. Records of the same client run in
// input order so the first one becomes the client's primary lead and later
// ones inherit its owner. Different clients run concurrently. A failing row
// does not stop the others.
func (s *Intake) Import(ctx context.Context, records []domain.Intake) (*ImportResult, error) {
	result := &ImportResult{Total: len(records), Rows: make([]ImportRowResult, len(records))}
	if len(records) == 0 {
		return result, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, group := range groupByClient(records) {
		g.Go(func() error {
			for _, idx := range group {
				if err := gctx.Err(); err != nil {
					return err
				}
				result.Rows[idx] = s.importRow(gctx, idx, records[idx])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, row := range result.Rows {
		switch {
		case row.Err != nil:
			result.Failed++
		case row.AssignedTo != "":
			result.Created++
			result.Assigned++
		default:
			result.Created++
			result.Unassigned++
		}
	}
	s.log.Info("lead import finished",
		"total", result.Total, "created", result.Created, "failed", result.Failed,
		"assigned", result.Assigned, "unassigned", result.Unassigned)
	return result, nil
}

func (s *Intake) importRow(ctx context.Context, idx int, in domain.Intake) ImportRowResult {
	row := ImportRowResult{Index: idx}
	lead, outcome, err := s.CreateLead(ctx, in)
	if err != nil {
		row.Err = err
		s.countRow("failed")
		s.log.Warn("lead import row failed", "row", idx, "error", err)
		return row
	}
	id := lead.ID
	row.LeadID = &id
	row.ClientID = lead.ClientID
	row.AssignedTo = lead.AssignedTo
	row.Source = outcome.Source
	row.Reason = outcome.Reason
	row.Override = outcome.Override
	s.countRow("created")
	return row
}

func (s *Intake) countRow(outcome string) {
	if s.metrics != nil {
		s.metrics.ImportedRows.WithLabelValues(outcome).Inc()
	}
}

// groupByClient buckets record indexes by client key, keeping input order
// inside each bucket and ordering buckets by first appearance. Phones that
// cannot identify a client get a bucket of their own.
func groupByClient(records []domain.Intake) [][]int {
	order := make([]string, 0, len(records))
	buckets := make(map[string][]int, len(records))
	for i, rec := range records {
		key := "row:" + strconv.Itoa(i)
		if phone.IsMatchable(rec.Phone) {
			key = phone.ClientID(rec.Phone)
		}
		if _, ok := buckets[key]; !ok {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], i)
	}
	groups := make([][]int, 0, len(order))
	for _, key := range order {
		groups = append(groups, buckets[key])
	}
	return groups
}

// RunBulkAssignment assigns unassigned leads, the given ones or all of them
// when ids is empty, by client history and then by rule. Leads are handled
// oldest first so a client's earlier lead sets the owner for later ones.
func (s *Intake) RunBulkAssignment(ctx context.Context, ids []uuid.UUID, actor string) (*BulkAssignResult, error) {
	leads, err := s.repo.ListUnassigned(ctx, ids, bulkAssignLimit)
	if err != nil {
		return nil, fmt.Errorf("list unassigned leads: %w", err)
	}

	result := &BulkAssignResult{Items: make([]BulkAssignItem, 0, len(leads))}
	for _, lead := range leads {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		item := s.assignExisting(ctx, lead, actor)
		result.Processed++
		switch {
		case item.Err != nil:
			result.Failed++
		case item.AssignedTo == "":
			result.Unmatched++
		default:
			result.Assigned++
		}
		result.Items = append(result.Items, item)
	}
	s.log.Info("bulk assignment finished",
		"processed", result.Processed, "assigned", result.Assigned,
		"unmatched", result.Unmatched, "failed", result.Failed)
	return result, nil
}

func (s *Intake) assignExisting(ctx context.Context, lead domain.Lead, actor string) BulkAssignItem {
	item := BulkAssignItem{LeadID: lead.ID}

	siblings, err := s.repo.ListByClientID(ctx, lead.ClientID)
	if err != nil {
		item.Err = fmt.Errorf("load client leads: %w", err)
		return item
	}
	owner := domain.BuildClient(lead.ClientID, siblings).OwnerExcluding(lead.ID)

	outcome, err := domain.ResolveAssignment("", owner, func() (*domain.RuleMatch, error) {
		if s.decider == nil {
			return nil, nil
		}
		return s.decider.DecideAssignee(ctx, lead.Intake().Record())
	})
	if err != nil {
		item.Err = err
		return item
	}
	item.Source = outcome.Source
	if !outcome.Assigned() {
		return item
	}

	updated, err := s.repo.Assign(ctx, repository.AssignParams{LeadID: lead.ID, Assignment: outcome, ChangedBy: actor})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			err = apperr.NotFound(msgLeadNotFound)
		}
		item.Err = err
		return item
	}
	item.AssignedTo = updated.AssignedTo
	publishAssigned(ctx, s.bus, updated, outcome, actor)
	return item
}

func sanitizeIntake(in domain.Intake) domain.Intake {
	in.Name = sanitize.Line(in.Name)
	in.Email = sanitize.Email(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Company = sanitize.Line(in.Company)
	in.BusinessType = sanitize.Line(in.BusinessType)
	in.Source = sanitize.Line(in.Source)
	in.LeadForEvent = sanitize.Line(in.LeadForEvent)
	in.AssignedTo = strings.TrimSpace(in.AssignedTo)
	return in
}
