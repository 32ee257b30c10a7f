// internal/models/event.go
package models

import (
	"encoding/json"
	"fmt"
)

type EventType string

const (
	EventAssistantResponse EventType = "assistant_response"
	EventShoppingResult    EventType = "shopping_result"
	EventError             EventType = "error"
)

// StreamEvent is one NDJSON line. Content is a string for assistant_response
// and error, and a ShoppingResult for shopping_result.
type StreamEvent struct {
	Type    EventType   `json:"type"`
	Content interface{} `json:"content"`
}

func AssistantDelta(text string) StreamEvent {
	return StreamEvent{Type: EventAssistantResponse, Content: text}
}

func ShoppingResultEvent(r ShoppingResult) StreamEvent {
	return StreamEvent{Type: EventShoppingResult, Content: r}
}

func ErrorEvent(message string) StreamEvent {
	return StreamEvent{Type: EventError, Content: message}
}

// UnmarshalJSON decodes Content into its concrete type based on Type.
func (e *StreamEvent) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type    EventType       `json:"type"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	e.Type = raw.Type
	switch raw.Type {
	case EventShoppingResult:
		var r ShoppingResult
		if err := json.Unmarshal(raw.Content, &r); err != nil {
			return fmt.Errorf("decode shopping_result: %w", err)
		}
		e.Content = r
	case EventAssistantResponse, EventError:
		var s string
		if err := json.Unmarshal(raw.Content, &s); err != nil {
			return fmt.Errorf("decode %s: %w", raw.Type, err)
		}
		e.Content = s
	default:
		return fmt.Errorf("unknown event type %q", raw.Type)
	}
	return nil
}

// Text returns the string content of assistant_response and error events.
func (e StreamEvent) Text() string {
	s, _ := e.Content.(string)
	return s
}

// Result returns the content of a shopping_result event.
func (e StreamEvent) Result() (ShoppingResult, bool) {
	r, ok := e.Content.(ShoppingResult)
	return r, ok
}
