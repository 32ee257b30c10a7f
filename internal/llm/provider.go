// Package llm defines the chat-completion capability shared by every
// provider adapter.
package llm

import (
	"context"
	"errors"
	"strings"
)

// ErrProviderNotConfigured is returned when a provider is used without its
// credentials.
var ErrProviderNotConfigured = errors.New("PROVIDER_NOT_CONFIGURED")

// Message is one conversation entry sent to a provider. Role is "user" or
// "assistant"; the system prompt travels separately in Request.System.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Params are the sampling options recognized by every provider. Zero values
// mean "provider default", except Temperature which is always sent.
type Params struct {
	Model            string  `json:"model"`
	Temperature      float64 `json:"temperature"`
	MaxTokens        int     `json:"maxTokens,omitempty"`
	TopP             float64 `json:"topP,omitempty"`
	TopK             int     `json:"topK,omitempty"`
	FrequencyPenalty float64 `json:"frequencyPenalty,omitempty"`
}

type Request struct {
	System   string
	Messages []Message
	Params   Params
}

// Delta is one unit of a streamed completion. A Delta with Err set is
// terminal: the channel is closed right after it.
type Delta struct {
	Text string
	Err  error
}

// Provider is a chat-completion capability.
//
// Stream returns deltas in generation order. The channel is closed when the
// model finishes, after a terminal error, or when ctx is cancelled; in the
// last case the underlying connection is released and no further sends are
// attempted.
type Provider interface {
	Name() string
	Stream(ctx context.Context, req Request) (<-chan Delta, error)
	Complete(ctx context.Context, req Request) (string, error)
}

// Send delivers d unless ctx is done. It reports whether the send happened.
func Send(ctx context.Context, ch chan<- Delta, d Delta) bool {
	select {
	case ch <- d:
		return true
	case <-ctx.Done():
		return false
	}
}

// Collect drains a delta channel into one string.
func Collect(ctx context.Context, deltas <-chan Delta) (string, error) {
	var sb strings.Builder
	for {
		select {
		case d, ok := <-deltas:
			if !ok {
				return sb.String(), nil
			}
			if d.Err != nil {
				return sb.String(), d.Err
			}
			sb.WriteString(d.Text)
		case <-ctx.Done():
			return sb.String(), ctx.Err()
		}
	}
}
