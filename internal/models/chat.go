// internal/models/chat.go
package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageID accepts either a JSON string or number; chat clients commonly use
// a millisecond timestamp.
type MessageID string

func (id *MessageID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = MessageID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = MessageID(n.String())
	return nil
}

// Message is one entry of a conversation, owned by the client and replayed
// on every request.
type Message struct {
	ID      MessageID `json:"id,omitempty"`
	Role    Role      `json:"role"`
	Content string    `json:"content"`
}

// ChatRequest is the body of a chat call.
type ChatRequest struct {
	Messages []Message `json:"messages"`
}

// LastUserMessage returns the trimmed content of the final message when it
// belongs to the user.
func (r *ChatRequest) LastUserMessage() (string, bool) {
	if len(r.Messages) == 0 {
		return "", false
	}
	last := r.Messages[len(r.Messages)-1]
	content := strings.TrimSpace(last.Content)
	if last.Role != RoleUser || content == "" {
		return "", false
	}
	return content, true
}

// History returns every message before the last one.
func (r *ChatRequest) History() []Message {
	if len(r.Messages) <= 1 {
		return nil
	}
	return r.Messages[:len(r.Messages)-1]
}
