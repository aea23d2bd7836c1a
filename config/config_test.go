package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MemoryStorageDefaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("TELEGRAM_ADMIN_IDS", "1, 2,x,3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StorageMemory, cfg.App.StorageDriver)
	assert.Equal(t, EventBusMemory, cfg.App.EventBus)
	assert.Equal(t, 5, cfg.Matching.MinInterestMatches)
	assert.Equal(t, 10, cfg.Matching.TopUpTarget)
	assert.Equal(t, []int64{1, 2, 3}, cfg.Telegram.AdminIDs)
	assert.True(t, cfg.IsAdmin(2))
	assert.False(t, cfg.IsAdmin(4))
	assert.True(t, cfg.Features.IsEnabled(FeatureInterestSearch, nil))
	assert.Equal(t, 9, cfg.Jobs.DailyReportHour)
	assert.Equal(t, []string(nil), cfg.HTTP.APIKeys)
}

func TestLoad_JobsAndAPIKeys(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "t")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("HTTP_API_KEYS", " k1 ,,k2")
	t.Setenv("JOBS_DAILY_REPORT_HOUR", "24")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JOBS_DAILY_REPORT_HOUR")

	t.Setenv("JOBS_DAILY_REPORT_HOUR", "-1")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"k1", "k2"}, cfg.HTTP.APIKeys)
	assert.Equal(t, -1, cfg.Jobs.DailyReportHour)
}

func TestLoad_ReportsAllProblems(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("EVENT_BUS", "kafka")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TELEGRAM_BOT_TOKEN")
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "EVENT_BUS")
}

func TestLoad_DatabaseURLFromParts(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "t")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_USER", "gm")
	t.Setenv("DB_PASSWORD", "p@ss")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://gm:p%40ss@db:5432/gamermatch?sslmode=disable", cfg.Database.URL)
}

func TestRedisConfig_ApplyURL(t *testing.T) {
	var c RedisConfig
	require.NoError(t, c.applyURL("redis://:secret@cache:6380/2"))
	assert.Equal(t, "cache", c.Host)
	assert.Equal(t, 6380, c.Port)
	assert.Equal(t, "secret", c.Password)
	assert.Equal(t, 2, c.DB)

	assert.Error(t, c.applyURL("http://cache"))
	assert.Error(t, c.applyURL("redis://cache/abc"))
}

func TestValidate_RedisBusNeedsRedis(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "t")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("EVENT_BUS", "redis")
	t.Setenv("REDIS_DISABLED", "true")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EVENT_BUS=redis")
}

func TestValidate_MemoryStorageRejectedInProduction(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "t")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("APP_ENV", "production")

	_, err := Load()
	require.Error(t, err)
}

// ─────────────────────────────────────────────────────────────────────────────
// Feature flags
// ─────────────────────────────────────────────────────────────────────────────

func TestFeatureFlags_EnvironmentOverrides(t *testing.T) {
	t.Setenv("FEATURE_NOTIFY_LIKES", "false")
	t.Setenv("FEATURE_MATCHING_INTEREST_SEARCH", "0")

	ff := LoadFeatureFlags()
	assert.False(t, ff.IsEnabled(FeatureNotifyLikes, nil))
	assert.False(t, ff.Check(FeatureInterestSearch)())
	assert.True(t, ff.IsEnabled(FeatureNotifyMatches, nil))
	assert.True(t, ff.IsEnabled(FeatureNotifyLikes, &FeatureContext{UserID: 1, IsAdmin: true}))
}

func TestFeatureFlags_RolloutIsStablePerUser(t *testing.T) {
	ff := NewFeatureFlags()
	require.NoError(t, ff.SetRolloutPercent(FeaturePhotoUploads, 50))

	in := 0
	for id := int64(1); id <= 1000; id++ {
		first := ff.IsEnabled(FeaturePhotoUploads, &FeatureContext{UserID: id})
		assert.Equal(t, first, ff.IsEnabled(FeaturePhotoUploads, &FeatureContext{UserID: id}))
		if first {
			in++
		}
	}
	assert.InDelta(t, 500, in, 100)
}

func TestFeatureFlags_OverridesAndErrors(t *testing.T) {
	ff := NewFeatureFlags()
	require.NoError(t, ff.DisableFeature(FeatureNotifyMatches))

	ff.SetUserOverride(7, FeatureNotifyMatches, true)
	assert.True(t, ff.IsEnabled(FeatureNotifyMatches, &FeatureContext{UserID: 7}))
	assert.False(t, ff.IsEnabled(FeatureNotifyMatches, &FeatureContext{UserID: 8}))

	ff.ClearUserOverrides(7)
	assert.False(t, ff.IsEnabled(FeatureNotifyMatches, &FeatureContext{UserID: 7}))

	assert.ErrorIs(t, ff.EnableFeature("nope"), ErrFeatureNotFound)
	assert.ErrorIs(t, ff.SetRolloutPercent(FeatureNotifyLikes, 101), ErrInvalidRolloutPercent)
	assert.False(t, ff.IsEnabled("nope", nil))
	assert.Len(t, ff.GetAllFeatures(), 4)
}
