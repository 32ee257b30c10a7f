// internal/workers/communication/submit-feedback/models.go
package submitfeedback

import (
	"time"

	"shopping-assistant/internal/common/logger"
)

type Input struct {
	Message string `json:"message"`
	TurnID  string `json:"turnId,omitempty"`
}

type Output struct {
	Success     bool      `json:"success"`
	Sink        string    `json:"sink"`
	MessageID   string    `json:"messageId,omitempty"`
	Truncated   bool      `json:"truncated,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`
}

type ServiceDependencies struct {
	Sink   Sink
	Logger logger.Logger
}
