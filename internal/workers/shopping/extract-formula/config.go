// internal/workers/shopping/extract-formula/config.go
package extractformula

import "time"

type Config struct {
	Model       string
	Temperature float64
	TopK        int
	TopP        float64
	MaxTokens   int
	Timeout     time.Duration
	// MaxInputChars bounds the page text sent to the model.
	MaxInputChars int
}

func LoadConfig() *Config {
	return &Config{
		Model:         "gpt-4o-mini",
		Temperature:   0.1,
		TopK:          10,
		TopP:          0.7,
		MaxTokens:     1024,
		Timeout:       30 * time.Second,
		MaxInputChars: 48000,
	}
}
