// pkg/registry/schema.go
package registry

import (
	"shopping-assistant/internal/llm"
	"shopping-assistant/internal/models"
)

// ModeRegistry is the data table mapping each response mode to its prompt,
// sampling parameters and provider.
type ModeRegistry struct {
	Version     string      `json:"version"`
	LastUpdated string      `json:"lastUpdated"`
	Modes       []ModeEntry `json:"modes"`

	index map[models.ResponseMode]ModeEntry
}

type ModeEntry struct {
	Mode         models.ResponseMode `json:"mode"`
	DisplayName  string              `json:"displayName,omitempty"`
	Provider     string              `json:"provider"`
	SystemPrompt string              `json:"systemPrompt"`
	Params       llm.Params          `json:"params"`
}
