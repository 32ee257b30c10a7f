// internal/workers/shopping/search-products/config.go
package searchproducts

import "time"

const (
	BackendSearchAPI     = "searchapi"
	BackendElasticsearch = "elasticsearch"
)

type Config struct {
	Backend  string
	BaseURL  string
	APIKey   string
	Engine   string
	Location string
	Index    string
	Timeout  time.Duration
	// MaxResults caps the hits returned; it is configuration, never request input.
	MaxResults int
}

func LoadConfig() *Config {
	return &Config{
		Backend:    BackendSearchAPI,
		BaseURL:    "https://www.searchapi.io/api/v1/search",
		Engine:     "google_shopping",
		Location:   "California,United States",
		Index:      "products",
		Timeout:    10 * time.Second,
		MaxResults: 4,
	}
}
