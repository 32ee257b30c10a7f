// Package orchestrator runs one chat turn end to end: classify, stream the
// reply, split off the hidden query, then enrich with shopping results.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"shopping-assistant/internal/common/config"
	apperrors "shopping-assistant/internal/common/errors"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/common/metrics"
	"shopping-assistant/internal/common/observability"
	"shopping-assistant/internal/llm"
	"shopping-assistant/internal/llm/claude"
	"shopping-assistant/internal/llm/gemini"
	"shopping-assistant/internal/llm/openai"
	"shopping-assistant/internal/models"
	classifyintent "shopping-assistant/internal/workers/assistant/classify-intent"
	splitstream "shopping-assistant/internal/workers/assistant/split-stream"
	recordturn "shopping-assistant/internal/workers/audit/record-turn"
	enrichresults "shopping-assistant/internal/workers/shopping/enrich-results"
	"shopping-assistant/pkg/registry"
)

type Classifier interface {
	Execute(ctx context.Context, input *classifyintent.Input) (*classifyintent.Output, error)
}

type Enricher interface {
	Execute(ctx context.Context, query string, emit enrichresults.EmitFunc) (*enrichresults.Output, error)
}

type Auditor interface {
	Execute(ctx context.Context, input *recordturn.Input) (*recordturn.Output, error)
}

// ProviderSource resolves a provider name from the mode table.
type ProviderSource interface {
	Get(ctx context.Context, name string) (llm.Provider, error)
}

type Config struct {
	StreamTimeout time.Duration
}

func DefaultConfig() *Config {
	return &Config{StreamTimeout: 120 * time.Second}
}

// Dependencies are the process-wide collaborators of every turn. Auditor and
// Observability may be nil.
type Dependencies struct {
	Classifier    Classifier
	Registry      *registry.ModeRegistry
	Providers     ProviderSource
	Transformer   *splitstream.Transformer
	Enricher      Enricher
	Auditor       Auditor
	Observability *observability.Observability
	Logger        logger.Logger
}

type Orchestrator struct {
	config      *Config
	classifier  Classifier
	registry    *registry.ModeRegistry
	providers   ProviderSource
	transformer *splitstream.Transformer
	enricher    Enricher
	auditor     Auditor
	obs         *observability.Observability
	logger      logger.Logger
}

func New(deps Dependencies, config *Config) *Orchestrator {
	if config == nil {
		config = DefaultConfig()
	}
	transformer := deps.Transformer
	if transformer == nil {
		transformer = splitstream.NewTransformer(nil)
	}
	return &Orchestrator{
		config:      config,
		classifier:  deps.Classifier,
		registry:    deps.Registry,
		providers:   deps.Providers,
		transformer: transformer,
		enricher:    deps.Enricher,
		auditor:     deps.Auditor,
		obs:         deps.Observability,
		logger:      deps.Logger.With(map[string]interface{}{"component": "orchestrator"}),
	}
}

// HandleTurn answers the last user message of req on w. All assistant text is
// written before any shopping result. Failures after the stream has started
// become a single generic error event. w is closed on return.
func (o *Orchestrator) HandleTurn(ctx context.Context, turnID string, req *models.ChatRequest, w *StreamWriter) (err error) {
	if turnID == "" {
		turnID = uuid.New().String()
	}
	log := o.logger.With(map[string]interface{}{"turnId": turnID})

	metrics.ActiveStreams.Inc()
	defer metrics.ActiveStreams.Dec()
	defer w.Close()

	ctx, span := o.obs.StartSpan(ctx, "chat.turn", attribute.String("turn.id", turnID))
	defer func() { observability.EndSpan(span, err) }()

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic during turn", map[string]interface{}{
				"panic": fmt.Sprint(r),
				"stack": string(debug.Stack()),
			})
			_ = w.WriteError(apperrors.GenericStreamMessage)
			err = apperrors.NewInternalError(fmt.Errorf("panic: %v", r))
		}
	}()

	message, ok := req.LastUserMessage()
	if !ok {
		return o.fail(ctx, log, w, classifyintent.TaskType, "", apperrors.NewInvalidRequestError("last message must be a non-empty user message"))
	}
	history := toLLMMessages(req.History())

	classification := o.classify(ctx, message, history)
	mode := classification.Mode
	span.SetAttributes(
		attribute.String("turn.mode", string(mode)),
		attribute.Bool("turn.fallback", classification.Fallback),
	)
	metrics.TurnsTotal.WithLabelValues(string(mode), strconv.FormatBool(classification.Fallback)).Inc()

	entry, ok := o.registry.Lookup(mode)
	if !ok {
		return o.fail(ctx, log, w, config.StageStreamResponse, mode, apperrors.NewInternalError(fmt.Errorf("mode %q missing from registry", mode)))
	}

	provider, err := o.providers.Get(ctx, entry.Provider)
	if err != nil {
		stdErr := apperrors.AsStandardError(err)
		if errors.Is(err, llm.ErrProviderNotConfigured) {
			stdErr = apperrors.NewProviderNotConfiguredError(entry.Provider, providerKeyEnv[entry.Provider])
		}
		return o.fail(ctx, log, w, config.StageStreamResponse, mode, stdErr)
	}

	result, err := o.stream(ctx, provider, entry, history, message, w)
	if err != nil {
		switch {
		case errors.Is(err, splitstream.ErrEmitFailed):
			log.Warn("client write failed, ending turn", map[string]interface{}{"error": err.Error()})
			o.obs.RecordTurn(ctx, string(mode), "disconnected")
			return apperrors.NewStreamWriteFailedError(err)
		case ctx.Err() != nil:
			log.Info("client went away during stream", nil)
			o.obs.RecordTurn(ctx, string(mode), "cancelled")
			return ctx.Err()
		case errors.Is(err, context.DeadlineExceeded):
			return o.fail(ctx, log, w, config.StageStreamResponse, mode, apperrors.NewCompletionTimeoutError())
		default:
			return o.fail(ctx, log, w, config.StageStreamResponse, mode, apperrors.NewCompletionFailedError(err))
		}
	}

	if ctx.Err() != nil {
		o.obs.RecordTurn(ctx, string(mode), "cancelled")
		return ctx.Err()
	}

	auditDone := o.recordTurn(ctx, log, &recordturn.Input{
		TurnID:       turnID,
		Mode:         mode,
		Fallback:     classification.Fallback,
		UserMessage:  message,
		FinalMessage: result.FinalMessage,
		Query:        result.Query,
	})
	defer func() { <-auditDone }()

	if result.HasQuery && o.enricher != nil {
		if err := o.enrich(ctx, result.Query, w); err != nil {
			if errors.Is(err, enrichresults.ErrEmitFailed) {
				log.Warn("client write failed during enrichment", map[string]interface{}{"error": err.Error()})
				o.obs.RecordTurn(ctx, string(mode), "disconnected")
				return apperrors.NewStreamWriteFailedError(err)
			}
			o.obs.RecordTurn(ctx, string(mode), "cancelled")
			return err
		}
	}

	o.obs.RecordTurn(ctx, string(mode), "ok")
	log.Info("turn completed", map[string]interface{}{
		"mode":     mode,
		"fallback": classification.Fallback,
		"hasQuery": result.HasQuery,
		"events":   w.Events(),
	})
	return nil
}

func (o *Orchestrator) classify(ctx context.Context, message string, history []llm.Message) *classifyintent.Output {
	ctx, span := o.obs.StartSpan(ctx, "chat.classify")
	start := time.Now()

	out, err := o.classifier.Execute(ctx, &classifyintent.Input{Message: message, History: history})
	o.obs.RecordStageDuration(ctx, classifyintent.TaskType, time.Since(start), status(err))
	observability.EndSpan(span, err)

	if err != nil || out == nil {
		return &classifyintent.Output{Mode: models.ModeOffTopic, Fallback: true}
	}
	return out
}

func (o *Orchestrator) stream(ctx context.Context, provider llm.Provider, entry registry.ModeEntry, history []llm.Message, message string, w *StreamWriter) (result *splitstream.Result, err error) {
	ctx, span := o.obs.StartSpan(ctx, "chat.stream",
		attribute.String("llm.provider", provider.Name()),
		attribute.String("llm.model", entry.Params.Model),
	)
	start := time.Now()
	defer func() {
		metrics.StageDuration.WithLabelValues(config.StageStreamResponse).Observe(time.Since(start).Seconds())
		o.obs.RecordStageDuration(ctx, config.StageStreamResponse, time.Since(start), status(err))
		observability.EndSpan(span, err)
	}()

	ctx, cancel := context.WithTimeout(ctx, o.config.StreamTimeout)
	defer cancel()

	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: string(models.RoleUser), Content: message})

	deltas, err := provider.Stream(ctx, llm.Request{
		System:   entry.SystemPrompt,
		Messages: messages,
		Params:   entry.Params,
	})
	if err != nil {
		return nil, err
	}

	return o.transformer.Run(ctx, deltas, w.WriteDelta)
}

func (o *Orchestrator) enrich(ctx context.Context, query string, w *StreamWriter) (err error) {
	ctx, span := o.obs.StartSpan(ctx, "chat.enrich", attribute.String("search.query", query))
	start := time.Now()
	defer func() {
		o.obs.RecordStageDuration(ctx, enrichresults.TaskType, time.Since(start), status(err))
		observability.EndSpan(span, err)
	}()

	_, err = o.enricher.Execute(ctx, query, w.WriteResult)
	return err
}

// recordTurn writes the audit row alongside enrichment. The returned channel
// closes when the write has finished.
func (o *Orchestrator) recordTurn(ctx context.Context, log logger.Logger, input *recordturn.Input) <-chan struct{} {
	done := make(chan struct{})
	if o.auditor == nil {
		close(done)
		return done
	}

	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				metrics.StageFailures.WithLabelValues(recordturn.TaskType, string(apperrors.ErrCodeInternal)).Inc()
				log.Error("turn audit panicked", map[string]interface{}{"panic": fmt.Sprint(r)})
			}
		}()
		if _, err := o.auditor.Execute(context.WithoutCancel(ctx), input); err != nil {
			metrics.StageFailures.WithLabelValues(recordturn.TaskType, string(apperrors.ErrCodeDatabaseInsertFailed)).Inc()
			log.Warn("turn audit failed", map[string]interface{}{"error": err.Error()})
		}
	}()
	return done
}

// fail reports err on the stream with the generic client message.
func (o *Orchestrator) fail(ctx context.Context, log logger.Logger, w *StreamWriter, stage string, mode models.ResponseMode, err *apperrors.StandardError) error {
	metrics.StageFailures.WithLabelValues(stage, string(err.Code)).Inc()
	o.obs.RecordTurn(ctx, string(mode), "error")

	log.Error("turn failed", map[string]interface{}{
		"mode":      mode,
		"stage":     stage,
		"errorCode": err.Code,
		"category":  apperrors.GetErrorCategory(err.Code),
		"error":     err.Error(),
		"details":   err.Details,
	})

	if writeErr := w.WriteError(apperrors.GenericStreamMessage); writeErr != nil {
		log.Warn("could not report error to client", map[string]interface{}{"error": writeErr.Error()})
	}
	return err
}

var providerKeyEnv = map[string]string{
	openai.ProviderName: "OPENAI_API_KEY",
	gemini.ProviderName: "GEMINI_API_KEY",
	claude.ProviderName: "ANTHROPIC_API_KEY",
}

func toLLMMessages(msgs []models.Message) []llm.Message {
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Content == "" {
			continue
		}
		out = append(out, llm.Message{Role: string(m.Role), Content: m.Content})
	}
	return out
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
