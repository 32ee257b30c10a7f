// internal/workers/shopping/enrich-results/config.go
package enrichresults

type Config struct {
	Concurrency        int
	PlaceholderFormula string
	DropFailedHits     bool
}

func LoadConfig() *Config {
	return &Config{
		Concurrency:        4,
		PlaceholderFormula: "Formula unavailable",
	}
}
