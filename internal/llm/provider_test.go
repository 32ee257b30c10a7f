package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollect(t *testing.T) {
	ch := make(chan Delta, 3)
	ch <- Delta{Text: "Hello"}
	ch <- Delta{Text: ", world"}
	close(ch)

	text, err := Collect(context.Background(), ch)
	assert.NoError(t, err)
	assert.Equal(t, "Hello, world", text)
}

func TestCollect_TerminalError(t *testing.T) {
	ch := make(chan Delta, 2)
	ch <- Delta{Text: "partial"}
	ch <- Delta{Err: errors.New("connection reset")}
	close(ch)

	text, err := Collect(context.Background(), ch)
	assert.EqualError(t, err, "connection reset")
	assert.Equal(t, "partial", text)
}

func TestSend_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ch := make(chan Delta)
	assert.False(t, Send(ctx, ch, Delta{Text: "x"}))
}
