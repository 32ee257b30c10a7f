package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "shopping-assistant", cfg.App.Name)
	assert.Equal(t, 4, cfg.Enrichment.MaxResults)
	assert.Equal(t, 4, cfg.Enrichment.Concurrency)
	assert.Equal(t, "California,United States", cfg.Search.Location)
	assert.Equal(t, "google_shopping", cfg.Search.Engine)
	assert.Equal(t, "https://r.jina.ai/", cfg.Scraper.BaseURL)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)

	for name := range defaultStageTimeouts {
		stage := GetStageConfig(cfg, name)
		assert.True(t, stage.Enabled, name)
		assert.Positive(t, stage.Timeout, name)
	}
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv("TEST_SEARCH_KEY", "search-secret")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
app:
  name: assistant-test
search:
  api_key: ${TEST_SEARCH_KEY}
enrichment:
  max_results: 2
stages:
  scrape-page:
    enabled: true
    timeout: 500
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "assistant-test", cfg.App.Name)
	assert.Equal(t, "search-secret", cfg.Search.APIKey)
	assert.Equal(t, "sk-test", cfg.Providers.OpenAI.APIKey)
	assert.Equal(t, 2, cfg.Enrichment.MaxResults)
	assert.Equal(t, 500*time.Millisecond, GetDuration(GetStageConfig(cfg, StageScrapePage).Timeout))
	assert.Equal(t, 10000, GetStageConfig(cfg, StageSearchProducts).Timeout)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "unknown search backend",
			mutate:  func(c *Config) { c.Search.Backend = "bing" },
			wantErr: "search.backend",
		},
		{
			name:    "elasticsearch backend without addresses",
			mutate:  func(c *Config) { c.Search.Backend = "elasticsearch" },
			wantErr: "database.elasticsearch.addresses",
		},
		{
			name:    "unknown feedback sink",
			mutate:  func(c *Config) { c.Feedback.Sink = "pigeon" },
			wantErr: "feedback.sink",
		},
		{
			name:    "postgres enabled without host",
			mutate:  func(c *Config) { c.Database.Postgres.Enabled = true; c.Database.Postgres.Database = "audit" },
			wantErr: "database.postgres.host",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := validateConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestIsStageEnabled(t *testing.T) {
	cfg := Default()
	cfg.Stages[StageRecordTurn] = StageConfig{Enabled: false, Timeout: 100}

	assert.False(t, IsStageEnabled(cfg, StageRecordTurn))
	assert.True(t, IsStageEnabled(cfg, "unknown-stage"))
}
