package businessflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/campaign-sender/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	statsCacheKey  = "run:stats"
	reportCacheKey = "run:report"
)

// RunCache keeps the last stats snapshot and the built report of runs in redis.
// A cache without a client is disabled: writes are dropped and reads return ErrCacheNotAvailable.
type RunCache struct {
	rc        *redis.Client
	prefix    string
	statsTTL  time.Duration
	reportTTL time.Duration
}

func NewRunCache(rc *redis.Client, prefix string, statsTTL, reportTTL time.Duration) *RunCache {
	return &RunCache{rc: rc, prefix: prefix, statsTTL: statsTTL, reportTTL: reportTTL}
}

// Enabled reports whether a redis client is configured
func (c *RunCache) Enabled() bool {
	return c != nil && c.rc != nil
}

// SetStats stores the latest snapshot of a run
func (c *RunCache) SetStats(ctx context.Context, runID uuid.UUID, stats models.SendingStats) error {
	return c.set(ctx, redisKey(c.prefix, statsCacheKey, runID.String()), stats, c.statsTTL)
}

// Stats returns the cached snapshot of a run, or nil on a miss
func (c *RunCache) Stats(ctx context.Context, runID uuid.UUID) (*models.SendingStats, error) {
	var stats models.SendingStats
	ok, err := c.get(ctx, redisKey(c.prefix, statsCacheKey, runID.String()), &stats)
	if err != nil || !ok {
		return nil, err
	}
	return &stats, nil
}

// SetReport stores the built report of a run
func (c *RunCache) SetReport(ctx context.Context, runID uuid.UUID, report models.CampaignReportData) error {
	return c.set(ctx, redisKey(c.prefix, reportCacheKey, runID.String()), report, c.reportTTL)
}

// Report returns the cached report of a run, or nil on a miss
func (c *RunCache) Report(ctx context.Context, runID uuid.UUID) (*models.CampaignReportData, error) {
	var report models.CampaignReportData
	ok, err := c.get(ctx, redisKey(c.prefix, reportCacheKey, runID.String()), &report)
	if err != nil || !ok {
		return nil, err
	}
	return &report, nil
}

func (c *RunCache) set(ctx context.Context, key string, v any, ttl time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	bs, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", key, err)
	}
	if err := c.rc.Set(ctx, key, bs, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache entry %s: %w", key, err)
	}
	return nil
}

func (c *RunCache) get(ctx context.Context, key string, out any) (bool, error) {
	if !c.Enabled() {
		return false, ErrCacheNotAvailable
	}
	bs, err := c.rc.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cache entry %s: %w", key, err)
	}
	if err := json.Unmarshal(bs, out); err != nil {
		return false, fmt.Errorf("failed to decode cache entry %s: %w", key, err)
	}
	return true, nil
}

// redisKey joins key parts under the configured prefix
func redisKey(prefix string, parts ...string) string {
	return prefix + strings.Join(parts, ":")
}
