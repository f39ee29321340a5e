package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SummaryCache stores serialized analytics summaries in Redis. Keys carry a per-school version
// that Invalidate bumps, so stale entries are never read and simply expire.
// A nil client turns every call into a miss.
type SummaryCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewSummaryCache(client *redis.Client, ttl time.Duration) *SummaryCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SummaryCache{redis: client, ttl: ttl}
}

func (c *SummaryCache) Enabled() bool {
	return c != nil && c.redis != nil
}

// Get decodes the cached entry for (schoolID, kind, params) into dest and reports whether one existed.
func (c *SummaryCache) Get(ctx context.Context, schoolID, kind, params string, dest interface{}) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}
	key, err := c.key(ctx, schoolID, kind, params)
	if err != nil {
		return false, err
	}
	value, err := c.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(value, dest); err != nil {
		return false, fmt.Errorf("decode cached summary: %w", err)
	}
	return true, nil
}

func (c *SummaryCache) Set(ctx context.Context, schoolID, kind, params string, value interface{}) error {
	if !c.Enabled() {
		return nil
	}
	key, err := c.key(ctx, schoolID, kind, params)
	if err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, key, data, c.ttl).Err()
}

func (c *SummaryCache) Invalidate(ctx context.Context, schoolID string) error {
	if !c.Enabled() {
		return nil
	}
	return c.redis.Incr(ctx, versionKey(schoolID)).Err()
}

func (c *SummaryCache) key(ctx context.Context, schoolID, kind, params string) (string, error) {
	version, err := c.redis.Get(ctx, versionKey(schoolID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return summaryKey(schoolID, version, kind, params), nil
}

func versionKey(schoolID string) string {
	return fmt.Sprintf("academics:summary_version:%s", schoolID)
}

func summaryKey(schoolID string, version int64, kind, params string) string {
	sum := sha1.Sum([]byte(params))
	return fmt.Sprintf("academics:summary:%s:v%d:%s:%s", schoolID, version, kind, hex.EncodeToString(sum[:]))
}
