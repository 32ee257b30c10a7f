// Package mock provides a scripted llm.Provider for tests and offline runs.
package mock

import (
	"context"
	"errors"
	"sync"

	"shopping-assistant/internal/llm"
)

const ProviderName = "mock"

// Provider replays scripted deltas. When FailAfter >= 0, StreamErr is sent
// after that many deltas. CompleteFunc, if set, answers Complete calls.
type Provider struct {
	Deltas       []string
	FailAfter    int
	StreamErr    error
	CompleteText string
	CompleteErr  error
	CompleteFunc func(req llm.Request) (string, error)

	mu       sync.Mutex
	requests []llm.Request
}

// NewStreaming returns a provider that streams deltas and never fails.
func NewStreaming(deltas ...string) *Provider {
	return &Provider{Deltas: deltas, FailAfter: -1}
}

// NewFailing returns a provider that fails with err after n deltas.
func NewFailing(n int, err error, deltas ...string) *Provider {
	if err == nil {
		err = errors.New("mock stream failure")
	}
	return &Provider{Deltas: deltas, FailAfter: n, StreamErr: err}
}

// NewCompleting returns a provider whose Complete returns text.
func NewCompleting(text string) *Provider {
	return &Provider{CompleteText: text, FailAfter: -1}
}

func (p *Provider) Name() string { return ProviderName }

func (p *Provider) Stream(ctx context.Context, req llm.Request) (<-chan llm.Delta, error) {
	p.record(req)

	ch := make(chan llm.Delta)
	go func() {
		defer close(ch)
		for i, d := range p.Deltas {
			if p.FailAfter >= 0 && i == p.FailAfter {
				llm.Send(ctx, ch, llm.Delta{Err: p.StreamErr})
				return
			}
			if !llm.Send(ctx, ch, llm.Delta{Text: d}) {
				return
			}
		}
		if p.FailAfter >= len(p.Deltas) {
			llm.Send(ctx, ch, llm.Delta{Err: p.StreamErr})
		}
	}()
	return ch, nil
}

func (p *Provider) Complete(ctx context.Context, req llm.Request) (string, error) {
	p.record(req)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if p.CompleteFunc != nil {
		return p.CompleteFunc(req)
	}
	return p.CompleteText, p.CompleteErr
}

// Requests returns a copy of every request received.
func (p *Provider) Requests() []llm.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]llm.Request, len(p.requests))
	copy(out, p.requests)
	return out
}

func (p *Provider) record(req llm.Request) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()
}

var _ llm.Provider = (*Provider)(nil)
