// internal/workers/assistant/split-stream/config.go
package splitstream

type Config struct {
	// Sentinel stops real-time forwarding the first time it appears.
	Sentinel string
	// Marker separates the visible reply from the hidden search query.
	Marker string
}

func LoadConfig() *Config {
	return &Config{
		Sentinel: "<",
		Marker:   "<<QUERY>>",
	}
}
