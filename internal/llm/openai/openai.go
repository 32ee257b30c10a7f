// Package openai streams chat completions from an OpenAI-compatible
// /chat/completions endpoint.
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	httpclient "shopping-assistant/internal/common/http"
	"shopping-assistant/internal/llm"
)

const (
	ProviderName   = "openai"
	DefaultBaseURL = "https://api.openai.com/v1"
)

type Config struct {
	APIKey  string
	BaseURL string
}

type Provider struct {
	apiKey string
	base   string
	client *httpclient.Client
}

// New builds the provider. Streaming requests are bounded by the caller's
// context, so the client carries no overall timeout.
func New(cfg Config, client *httpclient.Client) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai api key is empty (set OPENAI_API_KEY)", llm.ErrProviderNotConfigured)
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	if client == nil {
		client = httpclient.NewClient(0)
	}
	return &Provider{apiKey: cfg.APIKey, base: strings.TrimRight(base, "/"), client: client}, nil
}

func (p *Provider) Name() string { return ProviderName }

func (p *Provider) Stream(ctx context.Context, req llm.Request) (<-chan llm.Delta, error) {
	httpReq, err := p.newRequest(ctx, req, true)
	if err != nil {
		return nil, err
	}

	ch := make(chan llm.Delta)
	go func() {
		defer close(ch)

		resp, err := p.client.Do(httpReq)
		if err != nil {
			llm.Send(ctx, ch, llm.Delta{Err: fmt.Errorf("perform request: %w", err)})
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			llm.Send(ctx, ch, llm.Delta{Err: statusError(resp)})
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return
			}

			var chunk streamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				llm.Send(ctx, ch, llm.Delta{Err: fmt.Errorf("decode chunk: %w", err)})
				return
			}
			if chunk.Error != nil {
				llm.Send(ctx, ch, llm.Delta{Err: fmt.Errorf("openai stream error: %s", chunk.Error.Message)})
				return
			}
			for _, choice := range chunk.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				if !llm.Send(ctx, ch, llm.Delta{Text: choice.Delta.Content}) {
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			if ctx.Err() != nil {
				return
			}
			llm.Send(ctx, ch, llm.Delta{Err: fmt.Errorf("stream read: %w", err)})
		}
	}()

	return ch, nil
}

func (p *Provider) Complete(ctx context.Context, req llm.Request) (string, error) {
	httpReq, err := p.newRequest(ctx, req, false)
	if err != nil {
		return "", err
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp)
	}

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}

func (p *Provider) newRequest(ctx context.Context, req llm.Request, stream bool) (*http.Request, error) {
	if req.Params.Model == "" {
		return nil, errors.New("openai: model must be provided")
	}

	body := chatRequest{
		Model:            req.Params.Model,
		Stream:           stream,
		Temperature:      req.Params.Temperature,
		MaxTokens:        req.Params.MaxTokens,
		TopP:             req.Params.TopP,
		FrequencyPenalty: req.Params.FrequencyPenalty,
	}
	body.Messages = make([]message, 0, len(req.Messages)+1)
	if req.System != "" {
		body.Messages = append(body.Messages, message{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, message{Role: m.Role, Content: m.Content})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.base+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	return httpReq, nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("openai returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

type chatRequest struct {
	Model            string    `json:"model"`
	Messages         []message `json:"messages"`
	Stream           bool      `json:"stream"`
	Temperature      float64   `json:"temperature"`
	MaxTokens        int       `json:"max_tokens,omitempty"`
	TopP             float64   `json:"top_p,omitempty"`
	FrequencyPenalty float64   `json:"frequency_penalty,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

var _ llm.Provider = (*Provider)(nil)
