// internal/workers/assistant/classify-intent/models.go
package classifyintent

import (
	"shopping-assistant/internal/llm"
	"shopping-assistant/internal/models"
)

type Input struct {
	Message string        `json:"message"`
	History []llm.Message `json:"history,omitempty"`
}

type Output struct {
	Mode     models.ResponseMode `json:"mode"`
	Fallback bool                `json:"fallback"`
	Flags    Flags               `json:"flags"`
}

// Flags is the JSON object the classifier model is asked to produce.
type Flags struct {
	Greeting            bool `json:"greeting"`
	AboutAssistant      bool `json:"aboutAssistant"`
	SearchForProduct    bool `json:"searchForProduct"`
	RefineProductSearch bool `json:"refineProductSearch"`
	LearnMore           bool `json:"learnMore"`
	UnrelatedRequest    bool `json:"unrelatedRequest"`
}

// Mode resolves the flags to a single mode by priority. ok is false when no
// flag is set.
func (f Flags) Mode() (mode models.ResponseMode, ok bool) {
	switch {
	case f.Greeting:
		return models.ModeGreeting, true
	case f.AboutAssistant:
		return models.ModeAboutSystem, true
	case f.SearchForProduct:
		return models.ModeProductSearch, true
	case f.RefineProductSearch:
		return models.ModeRefineSearch, true
	case f.LearnMore:
		return models.ModeEducational, true
	case f.UnrelatedRequest:
		return models.ModeOffTopic, true
	}
	return models.ModeOffTopic, false
}
