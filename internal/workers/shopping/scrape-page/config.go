// internal/workers/shopping/scrape-page/config.go
package scrapepage

import "time"

type Config struct {
	BaseURL  string
	APIKey   string
	MaxBytes int64
	Timeout  time.Duration
	CacheTTL time.Duration
}

func LoadConfig() *Config {
	return &Config{
		BaseURL:  "https://r.jina.ai/",
		MaxBytes: 64 * 1024,
		Timeout:  15 * time.Second,
		CacheTTL: time.Hour,
	}
}
