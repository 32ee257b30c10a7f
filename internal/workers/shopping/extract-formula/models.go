// internal/workers/shopping/extract-formula/models.go
package extractformula

type Input struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	PageText string `json:"pageText"`
}

type Output struct {
	Formula     string `json:"formula"`
	Ingredients int    `json:"ingredients"`
}
