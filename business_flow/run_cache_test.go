package businessflow

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/amirphl/campaign-sender/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisKey(t *testing.T) {
	assert.Equal(t, "campaign-sender:run:stats:abc", redisKey("campaign-sender:", statsCacheKey, "abc"))
	assert.Equal(t, "run:report", redisKey("", reportCacheKey))
}

func TestRunCache_Disabled(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	cache := NewRunCache(nil, "test:", time.Minute, time.Minute)
	assert.False(t, cache.Enabled())
	assert.NoError(t, cache.SetStats(ctx, id, models.SendingStats{TotalMessages: 1}))
	assert.NoError(t, cache.SetReport(ctx, id, models.CampaignReportData{RunUUID: id}))

	stats, err := cache.Stats(ctx, id)
	assert.True(t, IsCacheNotAvailable(err))
	assert.Nil(t, stats)

	report, err := cache.Report(ctx, id)
	assert.True(t, IsCacheNotAvailable(err))
	assert.Nil(t, report)
}

func TestRunCache_Redis(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set; skipping redis-backed test")
	}
	ctx := context.Background()
	rc := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rc.Close() })
	require.NoError(t, rc.Ping(ctx).Err())

	cache := NewRunCache(rc, "campaign-sender-test:", time.Minute, time.Minute)
	id := uuid.New()
	t.Cleanup(func() {
		rc.Del(ctx, redisKey(cache.prefix, statsCacheKey, id.String()), redisKey(cache.prefix, reportCacheKey, id.String()))
	})

	miss, err := cache.Stats(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, miss)

	require.NoError(t, cache.SetStats(ctx, id, models.SendingStats{TotalMessages: 3, SentMessages: 2, RunStatus: models.RunStatusRunning}))
	stats, err := cache.Stats(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, 2, stats.SentMessages)
	assert.Equal(t, models.RunStatusRunning, stats.RunStatus)

	require.NoError(t, cache.SetReport(ctx, id, models.CampaignReportData{RunUUID: id, Status: models.CampaignReportStatusCompleted}))
	report, err := cache.Report(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, models.CampaignReportStatusCompleted, report.Status)
}
