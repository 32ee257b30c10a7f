// Package claude adapts Anthropic models through go-anthropic.
package claude

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"shopping-assistant/internal/llm"

	"github.com/liushuangls/go-anthropic/v2"
)

const (
	ProviderName     = "anthropic"
	defaultMaxTokens = 1024
)

type Config struct {
	APIKey string
	// BaseURL overrides the API endpoint; used by tests.
	BaseURL    string
	HTTPClient *http.Client
}

type Provider struct {
	client *anthropic.Client
}

func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: anthropic api key is empty (set ANTHROPIC_API_KEY)", llm.ErrProviderNotConfigured)
	}

	var opts []anthropic.ClientOption
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, anthropic.WithHTTPClient(cfg.HTTPClient))
	}
	return &Provider{client: anthropic.NewClient(cfg.APIKey, opts...)}, nil
}

func (p *Provider) Name() string { return ProviderName }

func (p *Provider) Stream(ctx context.Context, req llm.Request) (<-chan llm.Delta, error) {
	msgReq, err := toMessagesRequest(req)
	if err != nil {
		return nil, err
	}

	ch := make(chan llm.Delta)
	go func() {
		defer close(ch)

		streamCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		_, err := p.client.CreateMessagesStream(streamCtx, anthropic.MessagesStreamRequest{
			MessagesRequest: msgReq,
			OnContentBlockDelta: func(data anthropic.MessagesEventContentBlockDeltaData) {
				if data.Delta.Text == nil || *data.Delta.Text == "" {
					return
				}
				// A consumer that stopped reading cancels the stream.
				if !llm.Send(streamCtx, ch, llm.Delta{Text: *data.Delta.Text}) {
					cancel()
				}
			},
		})
		if err != nil && ctx.Err() == nil {
			llm.Send(ctx, ch, llm.Delta{Err: fmt.Errorf("anthropic stream: %w", err)})
		}
	}()
	return ch, nil
}

func (p *Provider) Complete(ctx context.Context, req llm.Request) (string, error) {
	msgReq, err := toMessagesRequest(req)
	if err != nil {
		return "", err
	}

	resp, err := p.client.CreateMessages(ctx, msgReq)
	if err != nil {
		var apiErr *anthropic.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("anthropic api error %s: %s", apiErr.Type, apiErr.Message)
		}
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	var sb strings.Builder
	for _, c := range resp.Content {
		sb.WriteString(c.GetText())
	}
	return sb.String(), nil
}

func toMessagesRequest(req llm.Request) (anthropic.MessagesRequest, error) {
	if req.Params.Model == "" {
		return anthropic.MessagesRequest{}, fmt.Errorf("anthropic: model must be provided")
	}

	maxTokens := req.Params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	temperature := float32(req.Params.Temperature)
	out := anthropic.MessagesRequest{
		Model:       anthropic.Model(req.Params.Model),
		System:      req.System,
		MaxTokens:   maxTokens,
		Temperature: &temperature,
		Messages:    toMessages(req.Messages),
	}
	if req.Params.TopP > 0 {
		topP := float32(req.Params.TopP)
		out.TopP = &topP
	}
	if req.Params.TopK > 0 {
		topK := req.Params.TopK
		out.TopK = &topK
	}
	return out, nil
}

// toMessages converts history; a trailing assistant message acts as a
// response prefill.
func toMessages(messages []llm.Message) []anthropic.Message {
	out := make([]anthropic.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == "assistant" {
			out = append(out, anthropic.NewAssistantTextMessage(m.Content))
			continue
		}
		out = append(out, anthropic.NewUserTextMessage(m.Content))
	}
	return out
}

var _ llm.Provider = (*Provider)(nil)
