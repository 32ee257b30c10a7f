// internal/workers/shopping/extract-formula/handler_test.go
package extractformula

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/llm"
	"shopping-assistant/internal/llm/mock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestConfig() *Config {
	cfg := LoadConfig()
	cfg.Timeout = time.Second
	return cfg
}

func TestHandler_Execute_Success(t *testing.T) {
	provider := mock.NewCompleting("1. L-Citrulline (6g)\n2. Beta-Alanine (3.2g)\n3. Nitrosigine® (1.5g)\n")
	handler := NewHandler(createTestConfig(), provider, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		Title:    "Stim-Free Pump",
		URL:      "https://shop.example.com/p/1",
		PageText: "Supplement Facts ... L-Citrulline 6g ...",
	})
	require.NoError(t, err)
	assert.Equal(t, "1. L-Citrulline (6g)\n2. Beta-Alanine (3.2g)\n3. Nitrosigine® (1.5g)", output.Formula)
	assert.Equal(t, 3, output.Ingredients)

	reqs := provider.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, llm.Params{
		Model:       "gpt-4o-mini",
		Temperature: 0.1,
		TopK:        10,
		TopP:        0.7,
		MaxTokens:   1024,
	}, reqs[0].Params)
	assert.Contains(t, reqs[0].System, "numbered list")
	assert.True(t, strings.HasPrefix(reqs[0].Messages[0].Content, "Product: Stim-Free Pump"))
}

func TestHandler_Execute_TruncatesInput(t *testing.T) {
	provider := mock.NewCompleting("1. Caffeine (200mg)")
	cfg := createTestConfig()
	cfg.MaxInputChars = 20
	handler := NewHandler(cfg, provider, logger.NewTestLogger(t))

	_, err := handler.Execute(context.Background(), &Input{PageText: strings.Repeat("a", 100)})
	require.NoError(t, err)

	content := provider.Requests()[0].Messages[0].Content
	assert.Equal(t, "Page text:\n"+strings.Repeat("a", 20), content)
}

func TestHandler_Execute_TruncatesOnRuneBoundary(t *testing.T) {
	provider := mock.NewCompleting("1. Whey (25g)")
	cfg := createTestConfig()
	cfg.MaxInputChars = 5
	handler := NewHandler(cfg, provider, logger.NewTestLogger(t))

	// "ab" then three 2-byte runes; byte 5 falls inside the second.
	_, err := handler.Execute(context.Background(), &Input{PageText: "abééé"})
	require.NoError(t, err)

	content := provider.Requests()[0].Messages[0].Content
	assert.Equal(t, "Page text:\nabé", content)
	assert.True(t, utf8.ValidString(content))
}

func TestHandler_Execute_Failures(t *testing.T) {
	tests := []struct {
		name        string
		provider    llm.Provider
		pageText    string
		expectedErr error
	}{
		{
			name:        "provider error",
			provider:    &mock.Provider{FailAfter: -1, CompleteErr: errors.New("status 500")},
			pageText:    "facts",
			expectedErr: ErrExtractionFailed,
		},
		{
			name:        "deadline",
			provider:    &mock.Provider{FailAfter: -1, CompleteErr: context.DeadlineExceeded},
			pageText:    "facts",
			expectedErr: ErrExtractionTimeout,
		},
		{
			name:        "model found nothing",
			provider:    mock.NewCompleting(" NONE \n"),
			pageText:    "a page about shipping",
			expectedErr: ErrFormulaNotFound,
		},
		{
			name:        "empty reply",
			provider:    mock.NewCompleting("```\n```"),
			pageText:    "facts",
			expectedErr: ErrExtractionFailed,
		},
		{
			name:        "empty page",
			provider:    mock.NewCompleting("1. X"),
			pageText:    "   ",
			expectedErr: ErrEmptyPageText,
		},
		{
			name:        "no provider",
			provider:    nil,
			pageText:    "facts",
			expectedErr: llm.ErrProviderNotConfigured,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHandler(createTestConfig(), tt.provider, logger.NewTestLogger(t))
			_, err := handler.Execute(context.Background(), &Input{PageText: tt.pageText})
			assert.ErrorIs(t, err, tt.expectedErr)
		})
	}
}

func TestCleanFormula(t *testing.T) {
	assert.Equal(t, "1. Creatine (5g)", CleanFormula("```text\n1. Creatine (5g)\n```\n"))
	assert.Equal(t, "1. Creatine (5g)", CleanFormula("  1. Creatine (5g)  "))
}
