// internal/workers/shopping/enrich-results/models.go
package enrichresults

import "shopping-assistant/internal/models"

type Output struct {
	Query    string                  `json:"query"`
	Searched bool                    `json:"searched"`
	Hits     int                     `json:"hits"`
	Results  []models.ShoppingResult `json:"results"`
	Failed   int                     `json:"failed"`
	Dropped  int                     `json:"dropped"`
}

// EmitFunc delivers one finished result to the client.
type EmitFunc func(result models.ShoppingResult) error

type slot struct {
	result models.ShoppingResult
	ok     bool
	failed bool
	done   chan struct{}
}
