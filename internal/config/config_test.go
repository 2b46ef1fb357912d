package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, ":memory:", cfg.DBPath)
	assert.Equal(t, 5, cfg.Pipeline.Workers)
	assert.Equal(t, 5, cfg.Pipeline.DefaultItemCount)
	assert.Equal(t, 5*time.Minute, cfg.Pipeline.StageTimeout)
	assert.True(t, cfg.Pipeline.RankingEnabled)
	assert.Equal(t, ProviderSimulated, cfg.Stages.Discovery)
	assert.Equal(t, ProviderTemplate, cfg.Stages.Metadata)
	assert.Equal(t, 2*time.Second, cfg.Stages.SimulatedCompileDelay)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("WORKERS", "12")
	t.Setenv("STAGE_TIMEOUT", "30s")
	t.Setenv("RANKING_ENABLED", "false")
	t.Setenv("PUBLISH_PROVIDER", "youtube")
	t.Setenv("YOUTUBE_REFRESH_TOKEN", "refresh")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, StoreSQLite, cfg.StoreDriver)
	assert.Equal(t, 12, cfg.Pipeline.Workers)
	assert.Equal(t, 30*time.Second, cfg.Pipeline.StageTimeout)
	assert.False(t, cfg.Pipeline.RankingEnabled)
	assert.Equal(t, ProviderYouTube, cfg.Stages.Publish)
	assert.Equal(t, "refresh", cfg.YouTube.RefreshToken)
}

func TestLoad_InvalidProvider(t *testing.T) {
	t.Setenv("DISCOVERY_PROVIDER", "vimeo")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DISCOVERY_PROVIDER")
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("STAGE_TIMEOUT", "soon")

	_, err := Load()
	require.Error(t, err)
}

func TestSanitize(t *testing.T) {
	cfg := Config{Pipeline: PipelineConfig{
		Workers:          -1,
		PrepareWorkers:   0,
		DefaultItemCount: 80,
		MaxItemCount:     20,
		StageTimeout:     -time.Second,
	}}
	cfg.Sanitize()

	assert.Equal(t, 1, cfg.Pipeline.Workers)
	assert.Equal(t, 1, cfg.Pipeline.PrepareWorkers)
	assert.Equal(t, 20, cfg.Pipeline.DefaultItemCount)
	assert.Equal(t, time.Duration(0), cfg.Pipeline.StageTimeout)
}

func TestLoad_Postgres(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")

	t.Setenv("DATABASE_URL", "postgres://ranker@localhost/ranking")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorePostgres, cfg.StoreDriver)
	assert.Equal(t, "postgres://ranker@localhost/ranking", cfg.DatabaseURL)
}
