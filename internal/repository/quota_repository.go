package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// QuotaRepository tracks per-principal daily counters in Redis. Keys roll
// over at midnight UTC.
type QuotaRepository struct {
	client *redis.Client
}

// NewQuotaRepository constructs a QuotaRepository.
func NewQuotaRepository(client *redis.Client) *QuotaRepository {
	return &QuotaRepository{client: client}
}

// Incr bumps today's counter for the principal and returns the new value.
// The key expires at the next UTC midnight.
func (r *QuotaRepository) Incr(ctx context.Context, kind, principal string) (int64, error) {
	if r.client == nil {
		return 0, nil
	}
	now := time.Now().UTC()
	key := r.key(kind, principal, now)

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr %s: %w", key, err)
	}
	if count == 1 {
		if err := r.client.ExpireAt(ctx, key, NextReset(now)).Err(); err != nil {
			return count, fmt.Errorf("redis expire %s: %w", key, err)
		}
	}
	return count, nil
}

// Count returns today's counter without mutating it.
func (r *QuotaRepository) Count(ctx context.Context, kind, principal string) (int64, error) {
	if r.client == nil {
		return 0, nil
	}
	now := time.Now().UTC()
	count, err := r.client.Get(ctx, r.key(kind, principal, now)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get quota: %w", err)
	}
	return count, nil
}

func (r *QuotaRepository) key(kind, principal string, now time.Time) string {
	return fmt.Sprintf("quota:%s:%s:%s", kind, principal, now.Format("2006-01-02"))
}

// NextReset returns the next UTC midnight after now.
func NextReset(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
}
