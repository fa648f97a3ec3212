package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	skippedQueueKey = "avalytics:skipped_heights"
	skippedKeyFmt   = "avalytics:skipped_height:%d"
	skippedTTL      = 7 * 24 * time.Hour
)

// SkippedHeight records one soft-failed block height.
type SkippedHeight struct {
	Height    uint64    `json:"height"`
	Reason    string    `json:"reason"`
	Attempts  int       `json:"attempts"`
	SkippedAt time.Time `json:"skipped_at"`
}

// SkippedQueue is a sorted set of soft-failed heights (score = attempt count,
// lowest retried first) with a JSON payload per height. All operations are
// best-effort from the orchestrator's point of view: the queue being down
// never fails a batch.
type SkippedQueue struct {
	rdb *redis.Client
}

// NewSkippedQueue creates the queue over an existing client.
func NewSkippedQueue(client *Client) *SkippedQueue {
	return &SkippedQueue{rdb: client.rdb}
}

// Add records a skipped height, bumping its attempt count if already present.
func (q *SkippedQueue) Add(ctx context.Context, height uint64, reason string) error {
	key := fmt.Sprintf(skippedKeyFmt, height)

	entry := SkippedHeight{Height: height, Reason: reason, Attempts: 1, SkippedAt: time.Now().UTC()}
	if data, err := q.rdb.Get(ctx, key).Bytes(); err == nil {
		var prev SkippedHeight
		if json.Unmarshal(data, &prev) == nil {
			entry.Attempts = prev.Attempts + 1
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal skipped height: %w", err)
	}
	if err := q.rdb.Set(ctx, key, data, skippedTTL).Err(); err != nil {
		return fmt.Errorf("store skipped height: %w", err)
	}
	if err := q.rdb.ZAdd(ctx, skippedQueueKey, redis.Z{
		Score:  float64(entry.Attempts),
		Member: strconv.FormatUint(height, 10),
	}).Err(); err != nil {
		return fmt.Errorf("enqueue skipped height: %w", err)
	}
	return nil
}

// Next returns the skipped height with the fewest attempts, or nil when the
// queue is empty.
func (q *SkippedQueue) Next(ctx context.Context) (*SkippedHeight, error) {
	members, err := q.rdb.ZRange(ctx, skippedQueueKey, 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("read skipped queue: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	height, err := strconv.ParseUint(members[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt queue member %q: %w", members[0], err)
	}

	data, err := q.rdb.Get(ctx, fmt.Sprintf(skippedKeyFmt, height)).Bytes()
	if errors.Is(err, redis.Nil) {
		// Payload expired; drop the stale queue entry.
		q.rdb.ZRem(ctx, skippedQueueKey, members[0])
		return &SkippedHeight{Height: height}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read skipped height: %w", err)
	}

	var entry SkippedHeight
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode skipped height: %w", err)
	}
	return &entry, nil
}

// Remove clears a height after it was successfully re-indexed.
func (q *SkippedQueue) Remove(ctx context.Context, height uint64) error {
	if err := q.rdb.ZRem(ctx, skippedQueueKey, strconv.FormatUint(height, 10)).Err(); err != nil {
		return err
	}
	return q.rdb.Del(ctx, fmt.Sprintf(skippedKeyFmt, height)).Err()
}

// Count returns the number of pending skipped heights.
func (q *SkippedQueue) Count(ctx context.Context) (int64, error) {
	return q.rdb.ZCard(ctx, skippedQueueKey).Result()
}
