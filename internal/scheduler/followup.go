package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fantopark_backend/internal/events"
	"fantopark_backend/internal/leads/domain"
	"fantopark_backend/internal/leads/repository"
	"fantopark_backend/platform/logger"
	"fantopark_backend/platform/metrics"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	sweepBatchSize = 200
	// sweepGrace leaves recently due leads to their queued task.
	sweepGrace = 10 * time.Minute
	dedupeTTL  = 7 * 24 * time.Hour
)

// FollowUpStore reads parked leads.
type FollowUpStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	ListDueFollowUps(ctx context.Context, cutoff time.Time, limit int) ([]domain.Lead, error)
}

// Deduper reports whether key is seen for the first time. Release forgets
// a key so a failed delivery can be retried.
type Deduper interface {
	First(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// FollowUps publishes LeadFollowUpDue once per lead and follow-up date,
// whether the queued task or the overdue sweep gets there first.
type FollowUps struct {
	store   FollowUpStore
	dedupe  Deduper
	bus     events.Bus
	metrics *metrics.Metrics
	log     *logger.Logger
	now     func() time.Time
}

// NewFollowUps creates the follow-up dispatcher. dedupe and m may be nil.
func NewFollowUps(store FollowUpStore, dedupe Deduper, bus events.Bus, m *metrics.Metrics, log *logger.Logger) *FollowUps {
	return &FollowUps{store: store, dedupe: dedupe, bus: bus, metrics: m, log: log, now: time.Now}
}

// HandleDue processes a queued follow-up. Tasks for leads that moved on or
// were rescheduled are dropped without error.
func (f *FollowUps) HandleDue(ctx context.Context, leadID uuid.UUID, at time.Time) error {
	lead, err := f.store.GetByID(ctx, leadID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load lead %s: %w", leadID, err)
	}

	if lead.Status != domain.StatusPickupLater || lead.FollowUpDate == nil {
		return nil
	}
	// Postgres keeps microseconds; task keys use whole seconds.
	if !lead.FollowUpDate.Truncate(time.Second).Equal(at.Truncate(time.Second)) {
		f.log.Debug("dropping stale follow-up task", "leadId", leadID, "queuedFor", at, "followUpAt", *lead.FollowUpDate)
		return nil
	}
	if lead.FollowUpDate.After(f.now()) {
		return nil
	}
	return f.notify(ctx, lead)
}

// Sweep catches overdue follow-ups whose task was never queued or was lost.
func (f *FollowUps) Sweep(ctx context.Context) (int, error) {
	leads, err := f.store.ListDueFollowUps(ctx, f.now().Add(-sweepGrace), sweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list due follow-ups: %w", err)
	}

	notified := 0
	for _, lead := range leads {
		if err := ctx.Err(); err != nil {
			return notified, err
		}
		if err := f.notify(ctx, lead); err != nil {
			f.log.Warn("follow-up sweep failed for lead", "leadId", lead.ID, "error", err)
			continue
		}
		notified++
	}
	if len(leads) > 0 {
		f.log.Info("follow-up sweep finished", "due", len(leads), "processed", notified)
	}
	return notified, nil
}

func (f *FollowUps) notify(ctx context.Context, lead domain.Lead) error {
	at := *lead.FollowUpDate
	key := followUpKey(lead.ID, at)
	if f.dedupe != nil {
		first, err := f.dedupe.First(ctx, key)
		if err != nil {
			return fmt.Errorf("dedupe follow-up: %w", err)
		}
		if !first {
			return nil
		}
	}

	err := f.bus.PublishSync(ctx, events.LeadFollowUpDue{
		BaseEvent:  events.NewBaseEvent(),
		LeadID:     lead.ID,
		LeadName:   lead.Name,
		Status:     string(lead.Status),
		AssignedTo: lead.AssignedTo,
		FollowUpAt: at,
	})
	if err != nil {
		if f.dedupe != nil {
			if relErr := f.dedupe.Release(context.WithoutCancel(ctx), key); relErr != nil {
				f.log.Warn("failed to release follow-up dedupe key", "leadId", lead.ID, "error", relErr)
			}
		}
		return fmt.Errorf("publish follow-up due: %w", err)
	}
	if f.metrics != nil {
		f.metrics.FollowUpsDue.Inc()
	}
	return nil
}

// RedisDeduper marks keys with SET NX.
type RedisDeduper struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisDeduper(client redis.UniversalClient) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: dedupeTTL}
}

func (d *RedisDeduper) First(ctx context.Context, key string) (bool, error) {
	return d.client.SetNX(ctx, "dedupe:"+key, 1, d.ttl).Result()
}

func (d *RedisDeduper) Release(ctx context.Context, key string) error {
	return d.client.Del(ctx, "dedupe:"+key).Err()
}
