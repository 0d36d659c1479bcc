// Package cache remembers which posts already had a campaign scheduled.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kyrremann/plogtion/internal/utils"
)

// Ledger records the posts a campaign was scheduled for, keyed by post URL.
type Ledger interface {
	ScheduledAt(ctx context.Context, postURL string) (time.Time, bool, error)
	MarkScheduled(ctx context.Context, postURL string, at time.Time, ttl time.Duration) error
	Close() error
}

// RedisLedger keeps the campaign ledger in Redis so it survives restarts
// and is shared between replicas.
type RedisLedger struct {
	client *redis.Client
	prefix string
}

// NewRedisLedger connects to url and verifies the connection.
func NewRedisLedger(url, prefix string) (*RedisLedger, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisLedger{client: client, prefix: prefix}, nil
}

func (r *RedisLedger) Close() error {
	return r.client.Close()
}

func (r *RedisLedger) key(postURL string) string {
	return r.prefix + utils.Fingerprint(postURL)
}

// ScheduledAt reports when a campaign for postURL was scheduled, if ever.
func (r *RedisLedger) ScheduledAt(ctx context.Context, postURL string) (time.Time, bool, error) {
	val, err := r.client.Get(ctx, r.key(postURL)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read campaign ledger: %w", err)
	}

	at, err := time.Parse(time.RFC3339, val)
	if err != nil {
		// Present but unreadable still counts as scheduled.
		return time.Time{}, true, nil
	}
	return at, true, nil
}

// MarkScheduled records postURL. A ttl of zero keeps the entry forever.
func (r *RedisLedger) MarkScheduled(ctx context.Context, postURL string, at time.Time, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.key(postURL), at.UTC().Format(time.RFC3339), ttl).Err(); err != nil {
		return fmt.Errorf("failed to write campaign ledger: %w", err)
	}
	return nil
}
