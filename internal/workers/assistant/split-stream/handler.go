// internal/workers/assistant/split-stream/handler.go
package splitstream

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"shopping-assistant/internal/llm"
)

const (
	TaskType = "split-stream"
)

var (
	ErrStreamFailed = errors.New("STREAM_FAILED")
	ErrEmitFailed   = errors.New("EMIT_FAILED")
)

// EmitFunc forwards one visible text fragment to the client.
type EmitFunc func(text string) error

// Transformer forwards model output in real time until the sentinel shows
// up, keeps the full text, and separates the hidden query after the stream
// ends. A Transformer holds no per-turn state and is safe to share.
//
// Any sentinel in ordinary prose also stops forwarding; the rest of the
// reply is still kept in FullText and FinalMessage.
type Transformer struct {
	config *Config
}

func NewTransformer(config *Config) *Transformer {
	if config == nil {
		config = LoadConfig()
	}
	return &Transformer{config: config}
}

// Run consumes deltas until the channel closes, a terminal delta error
// arrives, emit fails, or ctx is done. The partial Result is returned in
// every case.
func (t *Transformer) Run(ctx context.Context, deltas <-chan llm.Delta, emit EmitFunc) (*Result, error) {
	var (
		acc        strings.Builder
		visible    strings.Builder
		markerSeen bool
		count      int
	)

	finish := func() *Result {
		return t.split(acc.String(), visible.String(), count)
	}

	for {
		select {
		case <-ctx.Done():
			return finish(), ctx.Err()

		case d, ok := <-deltas:
			if !ok {
				return finish(), nil
			}
			if d.Err != nil {
				return finish(), fmt.Errorf("%w: %w", ErrStreamFailed, d.Err)
			}

			count++
			acc.WriteString(d.Text)
			if markerSeen || d.Text == "" {
				continue
			}

			out := d.Text
			if i := strings.Index(d.Text, t.config.Sentinel); i >= 0 {
				markerSeen = true
				out = d.Text[:i]
			}
			if out == "" {
				continue
			}

			if err := emit(out); err != nil {
				return finish(), fmt.Errorf("%w: %w", ErrEmitFailed, err)
			}
			visible.WriteString(out)
		}
	}
}

func (t *Transformer) split(full, visible string, deltas int) *Result {
	result := &Result{
		FullText:     full,
		Visible:      visible,
		FinalMessage: full,
		Deltas:       deltas,
	}

	before, after, found := strings.Cut(full, t.config.Marker)
	if !found {
		return result
	}

	result.FinalMessage = before
	result.Query = strings.TrimSpace(after)
	result.HasQuery = result.Query != ""
	return result
}
