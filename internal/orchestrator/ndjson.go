// internal/orchestrator/ndjson.go
package orchestrator

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"shopping-assistant/internal/common/metrics"
	"shopping-assistant/internal/models"
)

const ContentTypeNDJSON = "application/x-ndjson"

var (
	ErrStreamClosed = errors.New("STREAM_CLOSED")
	ErrStreamBroken = errors.New("STREAM_BROKEN")
)

// StreamWriter writes one JSON event per line and flushes after each. It is
// safe for concurrent use. The first failed write breaks the writer; every
// later write fails fast with the same error.
type StreamWriter struct {
	mu      sync.Mutex
	enc     *json.Encoder
	flusher http.Flusher
	closed  bool
	err     error
	events  int

	closeOnce sync.Once
}

func NewStreamWriter(w io.Writer) *StreamWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	sw := &StreamWriter{enc: enc}
	if f, ok := w.(http.Flusher); ok {
		sw.flusher = f
	}
	return sw
}

func (s *StreamWriter) WriteEvent(ev models.StreamEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStreamClosed
	}
	if s.err != nil {
		return s.err
	}

	if err := s.enc.Encode(ev); err != nil {
		s.err = fmt.Errorf("%w: %w", ErrStreamBroken, err)
		return s.err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}

	s.events++
	metrics.StreamEventsTotal.WithLabelValues(string(ev.Type)).Inc()
	return nil
}

func (s *StreamWriter) WriteDelta(text string) error {
	return s.WriteEvent(models.AssistantDelta(text))
}

func (s *StreamWriter) WriteResult(r models.ShoppingResult) error {
	return s.WriteEvent(models.ShoppingResultEvent(r))
}

func (s *StreamWriter) WriteError(message string) error {
	return s.WriteEvent(models.ErrorEvent(message))
}

// Close marks the stream finished. It is idempotent.
func (s *StreamWriter) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
	})
	return nil
}

// Events returns how many events were written.
func (s *StreamWriter) Events() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events
}

// Broken reports whether a write has failed.
func (s *StreamWriter) Broken() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err != nil
}
