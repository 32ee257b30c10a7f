// internal/workers/audit/record-turn/config.go
package recordturn

import "time"

type Config struct {
	Timeout time.Duration
	// MaxMessageChars bounds each stored text column.
	MaxMessageChars int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:         3 * time.Second,
		MaxMessageChars: 16000,
	}
}
