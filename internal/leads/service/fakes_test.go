package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"fantopark_backend/internal/events"
	"fantopark_backend/internal/leads/domain"
	"fantopark_backend/internal/leads/repository"

	"github.com/google/uuid"
)

// memoryStore is an in-process stand-in for the Postgres repository.
type memoryStore struct {
	mu      sync.Mutex
	leads   map[uuid.UUID]domain.Lead
	history map[uuid.UUID][]domain.StatusChange
	clock   time.Time
	failOn  string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		leads:   map[uuid.UUID]domain.Lead{},
		history: map[uuid.UUID][]domain.StatusChange{},
		clock:   time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (m *memoryStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memoryStore) Create(_ context.Context, p repository.CreateLeadParams) (domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != "" && p.Intake.Name == m.failOn {
		return domain.Lead{}, errors.New("insert failed")
	}
	now := m.tick()
	lead := domain.Lead{
		ID: uuid.New(), Name: p.Intake.Name, Email: p.Intake.Email, Phone: p.DisplayPhone,
		Company: p.Intake.Company, BusinessType: p.Intake.BusinessType, Source: p.Intake.Source,
		LeadForEvent: p.Intake.LeadForEvent, PotentialValue: p.Intake.PotentialValue,
		Attributes: p.Intake.Attributes, Status: p.Status, AssignedTo: p.Assignment.AssignedTo,
		ClientID: p.ClientID, IsPrimaryLead: p.IsPrimaryLead, ClientTotalLeads: 1,
		ManualAssignmentOverride: p.Assignment.Override, AutoAssigned: p.Assignment.AutoAssigned,
		AssignmentReason: p.Assignment.Reason, AssignmentRuleID: p.Assignment.RuleID,
		AssignmentRuleName: p.Assignment.RuleName, CreatedAt: now, UpdatedAt: now,
	}
	m.leads[lead.ID] = lead
	return lead, nil
}

func (m *memoryStore) GetByID(_ context.Context, id uuid.UUID) (domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lead, ok := m.leads[id]
	if !ok {
		return domain.Lead{}, repository.ErrNotFound
	}
	return lead, nil
}

func (m *memoryStore) byClient(clientID string) []domain.Lead {
	out := make([]domain.Lead, 0)
	for _, l := range m.leads {
		if l.ClientID == clientID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *memoryStore) ListByClientID(_ context.Context, clientID string) ([]domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byClient(clientID), nil
}

func (m *memoryStore) RefreshClientAggregates(_ context.Context, clientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	leads := m.byClient(clientID)
	client := domain.BuildClient(clientID, leads)
	if client == nil {
		return nil
	}
	for _, l := range leads {
		l.ClientTotalLeads = client.TotalLeads
		l.ClientEvents = client.Events
		l.ClientFirstContact = client.FirstContact
		m.leads[l.ID] = l
	}
	return nil
}

func (m *memoryStore) ApplyTransition(_ context.Context, p repository.TransitionParams) (domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lead, ok := m.leads[p.LeadID]
	if !ok {
		return domain.Lead{}, repository.ErrNotFound
	}
	if lead.Status != p.From {
		return domain.Lead{}, repository.ErrStatusConflict
	}
	lead.Status = p.To
	lead.FollowUpDate = p.FollowUpDate
	lead.UpdatedAt = m.tick()
	m.leads[lead.ID] = lead
	m.history[lead.ID] = append(m.history[lead.ID], domain.StatusChange{
		LeadID: lead.ID, OldStatus: p.From, NewStatus: p.To, ChangedBy: p.ChangedBy,
		FollowUpDate: p.FollowUpDate, Note: p.Note, CreatedAt: lead.UpdatedAt,
	})
	return lead, nil
}

func (m *memoryStore) Assign(_ context.Context, p repository.AssignParams) (domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lead, ok := m.leads[p.LeadID]
	if !ok {
		return domain.Lead{}, repository.ErrNotFound
	}
	previous := lead.Status
	lead.AssignedTo = p.Assignment.AssignedTo
	lead.ManualAssignmentOverride = lead.ManualAssignmentOverride || p.Assignment.Override
	lead.AutoAssigned = p.Assignment.AutoAssigned
	lead.AssignmentReason = p.Assignment.Reason
	lead.AssignmentRuleID = p.Assignment.RuleID
	lead.AssignmentRuleName = p.Assignment.RuleName
	if lead.Status == domain.StatusUnassigned {
		lead.Status = domain.StatusAssigned
	}
	lead.UpdatedAt = m.tick()
	m.leads[lead.ID] = lead
	if previous != lead.Status {
		m.history[lead.ID] = append(m.history[lead.ID], domain.StatusChange{
			LeadID: lead.ID, OldStatus: previous, NewStatus: lead.Status, ChangedBy: p.ChangedBy, CreatedAt: lead.UpdatedAt,
		})
	}
	return lead, nil
}

func (m *memoryStore) History(_ context.Context, id uuid.UUID) ([]domain.StatusChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.StatusChange(nil), m.history[id]...), nil
}

func (m *memoryStore) ListUnassigned(_ context.Context, ids []uuid.UUID, limit int) ([]domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[uuid.UUID]bool{}
	for _, id := range ids {
		want[id] = true
	}
	out := make([]domain.Lead, 0)
	for _, l := range m.leads {
		if l.Status != domain.StatusUnassigned || l.AssignedTo != "" {
			continue
		}
		if len(want) > 0 && !want[l.ID] {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryStore) ListDueFollowUps(_ context.Context, cutoff time.Time, _ int) ([]domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Lead, 0)
	for _, l := range m.leads {
		if l.Status == domain.StatusPickupLater && l.FollowUpDate != nil && !l.FollowUpDate.After(cutoff) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memoryStore) put(lead domain.Lead) domain.Lead {
	m.mu.Lock()
	defer m.mu.Unlock()
	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = m.tick()
	}
	m.leads[lead.ID] = lead
	return lead
}

// rotatingDecider hands out assignees in order and counts calls.
type rotatingDecider struct {
	mu        sync.Mutex
	assignees []string
	calls     int
	err       error
}

func (d *rotatingDecider) DecideAssignee(context.Context, map[string]any) (*domain.RuleMatch, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	if len(d.assignees) == 0 {
		return nil, nil
	}
	a := d.assignees[d.calls%len(d.assignees)]
	d.calls++
	return &domain.RuleMatch{AssignedTo: a, RuleID: uuid.New(), RuleName: "website", Reason: "Matched rule: website"}, nil
}

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *recordingBus) PublishSync(ctx context.Context, e events.Event) error {
	b.Publish(ctx, e)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) named(name string) []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]events.Event, 0)
	for _, e := range b.events {
		if e.EventName() == name {
			out = append(out, e)
		}
	}
	return out
}

type recordingScheduler struct {
	leadID uuid.UUID
	at     time.Time
	err    error
}

func (s *recordingScheduler) ScheduleLeadFollowUp(_ context.Context, leadID uuid.UUID, at time.Time) error {
	s.leadID = leadID
	s.at = at
	return s.err
}
