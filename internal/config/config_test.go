package config

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"APP_ENV", "ENV", "PORT", "LOG_LEVEL",
		"DATABASE_URL", "DATABASE_URL_POOLED", "DATABASE_URL_DIRECT",
		"BLOB_MODE", "BLOB_LOCAL_DIR", "AUTH_MODE", "AUTH_REQUIRED", "JWT_SECRET",
		"SNAPSHOT_INTERVAL_SECONDS", "MEAL_LOOKUP_BATCH_SIZE", "MEAL_LOOKUP_CONCURRENCY", "PLAN_TIMEZONE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, BlobModeLocal, cfg.Blob.Mode)
	assert.Equal(t, AuthModeNone, cfg.AuthMode)
	assert.False(t, cfg.AuthRequired)
	assert.Equal(t, 300*time.Second, cfg.Nutrition.SnapshotInterval)
	assert.Equal(t, 100, cfg.Nutrition.MealLookupBatchSize)
	assert.Equal(t, 4, cfg.Nutrition.MealLookupConcurrency)
	assert.Equal(t, time.UTC, cfg.Nutrition.PlanTimezone)
	assert.Empty(t, cfg.Warnings)
}

func TestLoad_DatabasePriority(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://url")
	t.Setenv("DATABASE_URL_POOLED", "postgres://pooled")
	t.Setenv("DATABASE_URL_DIRECT", "postgres://direct")

	cfg := Load()
	assert.Equal(t, "postgres://pooled", cfg.DatabaseURL)
	assert.Equal(t, "postgres://direct", cfg.DatabaseURLDirect)
}

func TestLoad_InvalidValuesFallBackWithWarnings(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "prod")
	t.Setenv("BLOB_MODE", "ftp")
	t.Setenv("AUTH_MODE", "siwa")
	t.Setenv("SNAPSHOT_INTERVAL_SECONDS", "0")
	t.Setenv("MEAL_LOOKUP_BATCH_SIZE", "-5")
	t.Setenv("PLAN_TIMEZONE", "Mars/Olympus")

	cfg := Load()

	assert.Equal(t, BlobModeLocal, cfg.Blob.Mode)
	assert.Equal(t, AuthModeNone, cfg.AuthMode)
	assert.Equal(t, 300*time.Second, cfg.Nutrition.SnapshotInterval)
	assert.Equal(t, 100, cfg.Nutrition.MealLookupBatchSize)
	assert.Equal(t, time.UTC, cfg.Nutrition.PlanTimezone)
	assert.Len(t, cfg.Warnings, 6) // blob, auth, jwt secret, interval, batch size, timezone
}

func TestLoad_AuthRequiredOnlyWithMode(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUTH_REQUIRED", "1")

	cfg := Load()
	assert.False(t, cfg.AuthRequired)

	t.Setenv("AUTH_MODE", "dev")
	cfg = Load()
	assert.True(t, cfg.AuthRequired)
}

func TestLoad_PlanTimezone(t *testing.T) {
	clearEnv(t)
	t.Setenv("PLAN_TIMEZONE", "Europe/Amsterdam")

	cfg := Load()
	require.NotNil(t, cfg.Nutrition.PlanTimezone)
	assert.Equal(t, "Europe/Amsterdam", cfg.Nutrition.PlanTimezone.String())
}
