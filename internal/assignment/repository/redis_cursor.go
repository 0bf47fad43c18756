package repository

import (
	"context"
	"fmt"

	"fantopark_backend/internal/assignment/domain"
	"fantopark_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const cursorKeyPrefix = "assignment:cursor:"

// CursorMirror receives the index chosen by the Redis store so the rule row
// keeps showing the current position.
type CursorMirror interface {
	AdvanceCursor(ctx context.Context, id uuid.UUID, newIndex int) error
}

// RedisCursorStore advances rule cursors with INCR. The counter only grows;
// the slot is the counter modulo the pool size at selection time.
type RedisCursorStore struct {
	client redis.UniversalClient
	mirror CursorMirror
	log    *logger.Logger
}

func NewRedisCursorStore(client redis.UniversalClient, mirror CursorMirror, log *logger.Logger) *RedisCursorStore {
	return &RedisCursorStore{client: client, mirror: mirror, log: log}
}

func cursorKey(id uuid.UUID) string {
	return cursorKeyPrefix + id.String()
}

// NextCursor seeds the counter from the persisted cursor on first use, then
// increments it in the same MULTI block.
func (s *RedisCursorStore) NextCursor(ctx context.Context, rule *domain.Rule, poolSize int) (int, error) {
	if poolSize <= 0 {
		return -1, nil
	}

	key := cursorKey(rule.ID)
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, key, rule.LastAssignmentIndex, 0)
		incr = pipe.Incr(ctx, key)
		return nil
	})
	if err != nil {
		return -1, fmt.Errorf("advance redis cursor for rule %s: %w", rule.ID, err)
	}

	next := int(incr.Val() % int64(poolSize))
	rule.LastAssignmentIndex = next

	if s.mirror != nil {
		// Redis already holds the authoritative position; a failed mirror
		// write only leaves the row stale.
		if err := s.mirror.AdvanceCursor(ctx, rule.ID, next); err != nil && s.log != nil {
			s.log.Warn("mirror assignment cursor failed", "ruleId", rule.ID, "index", next, "error", err)
		}
	}
	return next, nil
}

// Reset drops the counter so the next selection reseeds from the row.
func (s *RedisCursorStore) Reset(ctx context.Context, id uuid.UUID) error {
	return s.client.Del(ctx, cursorKey(id)).Err()
}
