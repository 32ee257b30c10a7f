// internal/workers/assistant/classify-intent/handler.go
package classifyintent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"shopping-assistant/internal/common/config"
	apperrors "shopping-assistant/internal/common/errors"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/common/metrics"
	"shopping-assistant/internal/llm"
	"shopping-assistant/internal/models"
)

const (
	TaskType = config.StageClassifyIntent
)

var (
	ErrClassificationFailed  = errors.New("CLASSIFICATION_FAILED")
	ErrClassificationTimeout = errors.New("CLASSIFICATION_TIMEOUT")
	ErrEmptyMessage          = errors.New("EMPTY_MESSAGE")
)

// Handler picks exactly one response mode per turn. It never fails a turn:
// any classification problem resolves to off-topic with Fallback set.
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

// Execute classifies input.Message. The only error it returns is
// ErrEmptyMessage.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	start := time.Now()
	defer func() {
		metrics.StageDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	}()

	flags, err := h.classify(ctx, message, input.History)
	if err != nil {
		return h.fallback(err), nil
	}

	mode, ok := flags.Mode()
	if !ok {
		return h.fallback(fmt.Errorf("%w: no flag set", ErrClassificationFailed)), nil
	}

	h.logger.Debug("intent classified", map[string]interface{}{
		"mode": mode,
	})
	return &Output{Mode: mode, Flags: *flags}, nil
}

func (h *Handler) classify(ctx context.Context, message string, history []llm.Message) (*Flags, error) {
	if h.provider == nil {
		return nil, fmt.Errorf("%w: %v", ErrClassificationFailed, llm.ErrProviderNotConfigured)
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	req := llm.Request{
		System:   systemPrompt,
		Messages: h.buildMessages(message, history),
		Params: llm.Params{
			Model:       h.config.Model,
			Temperature: h.config.Temperature,
			MaxTokens:   h.config.MaxTokens,
		},
	}

	var reply string
	var lastErr error

	for attempt := 0; attempt <= h.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ErrClassificationTimeout
			}
		}

		reply, lastErr = h.provider.Complete(ctx, req)

		if ctx.Err() != nil ||
			errors.Is(lastErr, context.DeadlineExceeded) ||
			errors.Is(lastErr, context.Canceled) {
			return nil, ErrClassificationTimeout
		}

		if lastErr == nil {
			break
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrClassificationFailed, lastErr)
	}

	return ParseFlags(reply)
}

func (h *Handler) buildMessages(message string, history []llm.Message) []llm.Message {
	if h.config.HistoryWindow > 0 && len(history) > h.config.HistoryWindow {
		history = history[len(history)-h.config.HistoryWindow:]
	}

	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, history...)
	msgs = append(msgs,
		llm.Message{Role: string(models.RoleUser), Content: message},
		llm.Message{Role: string(models.RoleAssistant), Content: prefill},
	)
	return msgs
}

func (h *Handler) fallback(err error) *Output {
	code := apperrors.ErrCodeClassificationFailed
	if errors.Is(err, ErrClassificationTimeout) {
		code = apperrors.ErrCodeClassificationTimeout
	}
	metrics.StageFailures.WithLabelValues(TaskType, string(code)).Inc()

	h.logger.Warn("classification failed, falling back to off-topic", map[string]interface{}{
		"error":     err.Error(),
		"errorCode": code,
	})

	return &Output{Mode: models.ModeOffTopic, Fallback: true}
}

// ParseFlags leniently decodes a classifier reply. Prose around the object is
// ignored, and a reply that continued the "{" prefill gets it restored.
func ParseFlags(reply string) (*Flags, error) {
	text := strings.TrimSpace(reply)

	open := strings.Index(text, "{")
	if open < 0 || strings.HasPrefix(text, `"`) {
		text = "{" + text
		open = 0
	}

	end := strings.LastIndex(text, "}")
	if end < open {
		return nil, fmt.Errorf("%w: no JSON object in reply %s", ErrClassificationFailed, strconv.Quote(truncate(reply, 80)))
	}

	var flags Flags
	if err := json.Unmarshal([]byte(text[open:end+1]), &flags); err != nil {
		return nil, fmt.Errorf("%w: decode error: %v", ErrClassificationFailed, err)
	}
	return &flags, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
