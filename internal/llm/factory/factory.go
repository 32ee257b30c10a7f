// Package factory builds the process-wide provider handles from config.
package factory

import (
	"context"
	"fmt"
	"sync"

	"shopping-assistant/internal/common/config"
	httpclient "shopping-assistant/internal/common/http"
	"shopping-assistant/internal/llm"
	"shopping-assistant/internal/llm/claude"
	"shopping-assistant/internal/llm/gemini"
	"shopping-assistant/internal/llm/openai"
)

type entry struct {
	once     sync.Once
	build    func(ctx context.Context) (llm.Provider, error)
	provider llm.Provider
	err      error
}

// Set holds one lazily constructed, read-only handle per provider name. It
// is safe for concurrent use.
type Set struct {
	entries map[string]*entry
}

type Option func(*Set)

// WithProvider registers a prebuilt provider under its Name, replacing any
// configured one.
func WithProvider(p llm.Provider) Option {
	return func(s *Set) {
		s.entries[p.Name()] = &entry{
			build: func(context.Context) (llm.Provider, error) { return p, nil },
		}
	}
}

// New registers the configured providers. Nothing is dialled until Get.
func New(cfg config.ProvidersConfig, client *httpclient.Client, opts ...Option) *Set {
	s := &Set{entries: make(map[string]*entry)}

	s.entries[openai.ProviderName] = &entry{build: func(context.Context) (llm.Provider, error) {
		return provider(openai.New(openai.Config{APIKey: cfg.OpenAI.APIKey, BaseURL: cfg.OpenAI.BaseURL}, client))
	}}
	s.entries[gemini.ProviderName] = &entry{build: func(ctx context.Context) (llm.Provider, error) {
		return provider(gemini.New(ctx, gemini.Config{APIKey: cfg.Gemini.APIKey}))
	}}
	s.entries[claude.ProviderName] = &entry{build: func(context.Context) (llm.Provider, error) {
		return provider(claude.New(claude.Config{APIKey: cfg.Anthropic.APIKey}))
	}}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// provider keeps a failed constructor from yielding a non-nil interface that
// wraps a nil pointer.
func provider[P llm.Provider](p P, err error) (llm.Provider, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Get returns the named provider, constructing it on first use. A
// construction error is cached and returned on every later call.
func (s *Set) Get(ctx context.Context, name string) (llm.Provider, error) {
	e, ok := s.entries[name]
	if !ok {
		return nil, fmt.Errorf("unknown llm provider %q", name)
	}
	e.once.Do(func() {
		// The handle outlives the request that happened to build it.
		e.provider, e.err = e.build(context.WithoutCancel(ctx))
	})
	return e.provider, e.err
}

// Names lists every registered provider.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	return names
}

// Has reports whether name is registered.
func (s *Set) Has(name string) bool {
	_, ok := s.entries[name]
	return ok
}
