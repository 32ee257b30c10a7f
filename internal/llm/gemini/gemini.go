// Package gemini adapts Google's Gemini models through google.golang.org/genai.
package gemini

import (
	"context"
	"fmt"
	"net/http"

	"shopping-assistant/internal/llm"

	"google.golang.org/genai"
)

const ProviderName = "gemini"

type Config struct {
	APIKey string
	// BaseURL overrides the API endpoint; used by tests.
	BaseURL    string
	HTTPClient *http.Client
}

type Provider struct {
	client *genai.Client
}

func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini api key is empty (set GEMINI_API_KEY)", llm.ErrProviderNotConfigured)
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Provider{client: client}, nil
}

func (p *Provider) Name() string { return ProviderName }

func (p *Provider) Stream(ctx context.Context, req llm.Request) (<-chan llm.Delta, error) {
	if req.Params.Model == "" {
		return nil, fmt.Errorf("gemini: model must be provided")
	}
	contents := toContents(req.Messages)
	config := toConfig(req)

	ch := make(chan llm.Delta)
	go func() {
		defer close(ch)
		// Breaking out of the range stops the iterator and closes the response.
		for resp, err := range p.client.Models.GenerateContentStream(ctx, req.Params.Model, contents, config) {
			if err != nil {
				if ctx.Err() == nil {
					llm.Send(ctx, ch, llm.Delta{Err: fmt.Errorf("gemini stream: %w", err)})
				}
				return
			}
			text := resp.Text()
			if text == "" {
				continue
			}
			if !llm.Send(ctx, ch, llm.Delta{Text: text}) {
				return
			}
		}
	}()
	return ch, nil
}

func (p *Provider) Complete(ctx context.Context, req llm.Request) (string, error) {
	if req.Params.Model == "" {
		return "", fmt.Errorf("gemini: model must be provided")
	}
	resp, err := p.client.Models.GenerateContent(ctx, req.Params.Model, toContents(req.Messages), toConfig(req))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return resp.Text(), nil
}

// toContents maps chat roles onto Gemini roles; "assistant" becomes "model".
func toContents(messages []llm.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := genai.Role(genai.RoleUser)
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return contents
}

func toConfig(req llm.Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Params.Temperature)),
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Params.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.Params.MaxTokens)
	}
	if req.Params.TopP > 0 {
		cfg.TopP = genai.Ptr(float32(req.Params.TopP))
	}
	if req.Params.TopK > 0 {
		cfg.TopK = genai.Ptr(float32(req.Params.TopK))
	}
	if req.Params.FrequencyPenalty != 0 {
		cfg.FrequencyPenalty = genai.Ptr(float32(req.Params.FrequencyPenalty))
	}
	return cfg
}

var _ llm.Provider = (*Provider)(nil)
