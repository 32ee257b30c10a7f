package registry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shopping-assistant/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)
	require.NoError(t, reg.Validate([]string{"openai", "gemini", "anthropic"}))

	for _, mode := range models.AllModes() {
		entry, ok := reg.Lookup(mode)
		require.True(t, ok, mode)
		assert.NotEmpty(t, entry.SystemPrompt, mode)
		assert.NotEmpty(t, entry.Params.Model, mode)
	}

	search, _ := reg.Lookup(models.ModeProductSearch)
	assert.Contains(t, search.SystemPrompt, "<<QUERY>>")

	greeting, _ := reg.Lookup(models.ModeGreeting)
	assert.NotContains(t, greeting.SystemPrompt, "<<QUERY>>")
	assert.Equal(t, 300, greeting.Params.MaxTokens)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name:    "schema violation",
			doc:     `{"version":"1","modes":[{"mode":"greeting","provider":"openai","systemPrompt":"hi","params":{}}]}`,
			wantErr: "invalid mode registry",
		},
		{
			name:    "unknown mode",
			doc:     `{"version":"1","modes":[{"mode":"smalltalk","provider":"openai","systemPrompt":"hi","params":{"model":"m"}}]}`,
			wantErr: "unknown mode",
		},
		{
			name: "duplicate mode",
			doc: `{"version":"1","modes":[
				{"mode":"greeting","provider":"openai","systemPrompt":"hi","params":{"model":"m"}},
				{"mode":"greeting","provider":"openai","systemPrompt":"hi","params":{"model":"m"}}]}`,
			wantErr: "duplicate mode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate(t *testing.T) {
	reg, err := Parse([]byte(`{"version":"1","modes":[{"mode":"greeting","provider":"openai","systemPrompt":"hi","params":{"model":"m"}}]}`))
	require.NoError(t, err)

	err = reg.Validate([]string{"openai"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing from registry")

	full, err := Default()
	require.NoError(t, err)
	err = full.Validate([]string{"gemini"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestLoad_FromFile(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)

	data, err := os.ReadFile("modes.json")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "modes.json")
	require.NoError(t, os.WriteFile(path, []byte(strings.ReplaceAll(string(data), `"provider": "openai"`, `"provider": "gemini"`)), 0o600))

	fromFile, err := Load(path)
	require.NoError(t, err)
	entry, _ := fromFile.Lookup(models.ModeGreeting)
	assert.Equal(t, "gemini", entry.Provider)

	rerouted := reg.WithProvider("mock")
	entry, _ = rerouted.Lookup(models.ModeOffTopic)
	assert.Equal(t, "mock", entry.Provider)
	original, _ := reg.Lookup(models.ModeOffTopic)
	assert.Equal(t, "openai", original.Provider)
}
