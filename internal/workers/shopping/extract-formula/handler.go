// internal/workers/shopping/extract-formula/handler.go
package extractformula

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"shopping-assistant/internal/common/config"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/common/metrics"
	"shopping-assistant/internal/llm"
)

const (
	TaskType = config.StageExtractFormula
)

var (
	ErrExtractionFailed  = errors.New("EXTRACTION_FAILED")
	ErrExtractionTimeout = errors.New("EXTRACTION_TIMEOUT")
	ErrFormulaNotFound   = errors.New("FORMULA_NOT_FOUND")
	ErrEmptyPageText     = errors.New("EMPTY_PAGE_TEXT")
)

var (
	codeFence    = regexp.MustCompile("(?m)^```[a-zA-Z]*\\s*$")
	numberedLine = regexp.MustCompile(`(?m)^\s*\d+[.)]\s+\S`)
)

// Handler turns scraped page text into a normalized numbered ingredient
// list with a single non-streaming model call.
type Handler struct {
	config   *Config
	provider llm.Provider
	logger   logger.Logger
}

func NewHandler(config *Config, provider llm.Provider, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		provider: provider,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	pageText := strings.TrimSpace(input.PageText)
	if pageText == "" {
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, ErrEmptyPageText)
	}
	if h.provider == nil {
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, llm.ErrProviderNotConfigured)
	}

	if n := h.config.MaxInputChars; n > 0 && len(pageText) > n {
		for n > 0 && !utf8.RuneStart(pageText[n]) {
			n--
		}
		pageText = pageText[:n]
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	start := time.Now()
	reply, err := h.provider.Complete(ctx, llm.Request{
		System:   systemPrompt,
		Messages: []llm.Message{{Role: "user", Content: buildUserMessage(input.Title, pageText)}},
		Params: llm.Params{
			Model:       h.config.Model,
			Temperature: h.config.Temperature,
			TopK:        h.config.TopK,
			TopP:        h.config.TopP,
			MaxTokens:   h.config.MaxTokens,
		},
	})
	metrics.StageDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded || errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrExtractionTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	formula := CleanFormula(reply)
	if formula == "" || strings.EqualFold(formula, notFoundReply) {
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, ErrFormulaNotFound)
	}

	output := &Output{
		Formula:     formula,
		Ingredients: len(numberedLine.FindAllString(formula, -1)),
	}

	h.logger.Debug("formula extracted", map[string]interface{}{
		"url":         input.URL,
		"ingredients": output.Ingredients,
	})
	return output, nil
}

func buildUserMessage(title, pageText string) string {
	var sb strings.Builder
	if title != "" {
		sb.WriteString("Product: ")
		sb.WriteString(title)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Page text:\n")
	sb.WriteString(pageText)
	return sb.String()
}

// CleanFormula strips markdown fences and surrounding whitespace from a
// model reply.
func CleanFormula(reply string) string {
	return strings.TrimSpace(codeFence.ReplaceAllString(reply, ""))
}
