// internal/workers/assistant/split-stream/models.go
package splitstream

// Result describes one finished (or interrupted) model reply.
type Result struct {
	// FullText is every delta received, unmodified.
	FullText string `json:"fullText"`
	// Visible is what was forwarded to the client.
	Visible string `json:"visible"`
	// FinalMessage is FullText up to the first marker.
	FinalMessage string `json:"finalMessage"`
	// Query is the trimmed text after the first marker.
	Query    string `json:"query,omitempty"`
	HasQuery bool   `json:"hasQuery"`
	Deltas   int    `json:"deltas"`
}
