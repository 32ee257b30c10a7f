// internal/workers/audit/record-turn/models.go
package recordturn

import "shopping-assistant/internal/models"

type Input struct {
	TurnID       string              `json:"turnId,omitempty"`
	Mode         models.ResponseMode `json:"mode"`
	Fallback     bool                `json:"fallback"`
	UserMessage  string              `json:"userMessage"`
	FinalMessage string              `json:"finalMessage"`
	Query        string              `json:"query,omitempty"`
}

type Output struct {
	TurnID    string `json:"turnId"`
	CreatedAt string `json:"createdAt"`
}
