// internal/workers/assistant/classify-intent/config.go
package classifyintent

import "time"

type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	MaxRetries  int
	// HistoryWindow caps how many earlier turns are sent along with the
	// message being classified.
	HistoryWindow int
}

func LoadConfig() *Config {
	return &Config{
		Model:         "gpt-4o-mini",
		Temperature:   0.1,
		MaxTokens:     150,
		Timeout:       10 * time.Second,
		MaxRetries:    1,
		HistoryWindow: 6,
	}
}
