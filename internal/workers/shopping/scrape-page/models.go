// internal/workers/shopping/scrape-page/models.go
package scrapepage

type Input struct {
	URL string `json:"url"`
}

type Output struct {
	URL       string `json:"url"`
	Text      string `json:"text"`
	Cached    bool   `json:"cached"`
	Truncated bool   `json:"truncated"`
}
