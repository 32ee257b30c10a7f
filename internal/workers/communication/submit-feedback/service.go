// internal/workers/communication/submit-feedback/service.go
package submitfeedback

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"shopping-assistant/internal/common/config"
	"shopping-assistant/internal/common/errors"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/common/metrics"
)

const (
	TaskType = config.StageSubmitFeedback
)

type Service struct {
	config *Config
	sink   Sink
	logger logger.Logger
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	return &Service{
		config: config,
		sink:   deps.Sink,
		logger: deps.Logger.With(map[string]interface{}{
			"taskType": TaskType,
			"sink":     deps.Sink.Name(),
		}),
	}
}

func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, errors.NewInvalidRequestError("feedback message must not be empty")
	}

	truncated := false
	if s.config.MaxLength > 0 && utf8.RuneCountInString(message) > s.config.MaxLength {
		message = string([]rune(message)[:s.config.MaxLength])
		truncated = true
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	messageID, err := s.sink.Send(ctx, &Input{Message: message, TurnID: input.TurnID})
	if err != nil {
		stdErr := errors.NewFeedbackFailedError(s.sink.Name(), err)
		metrics.StageFailures.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
		s.logger.Error("feedback delivery failed", map[string]interface{}{
			"error":  err.Error(),
			"turnId": input.TurnID,
		})
		return nil, stdErr
	}

	s.logger.Info("feedback submitted", map[string]interface{}{
		"messageId": messageID,
		"length":    len(message),
		"truncated": truncated,
	})

	return &Output{
		Success:     true,
		Sink:        s.sink.Name(),
		MessageID:   messageID,
		Truncated:   truncated,
		SubmittedAt: time.Now().UTC(),
	}, nil
}
