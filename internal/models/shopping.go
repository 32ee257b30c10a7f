// internal/models/shopping.go
package models

// SearchHit is one candidate returned by a product search backend.
type SearchHit struct {
	Title     string `json:"title"`
	Price     string `json:"price"`
	Link      string `json:"link"`
	Thumbnail string `json:"thumbnail"`
}

// ShoppingResult is an enriched search hit. Immutable once emitted.
type ShoppingResult struct {
	Title     string `json:"title"`
	Price     string `json:"price"`
	Link      string `json:"link"`
	Thumbnail string `json:"thumbnail"`
	Formula   string `json:"formula"`
}

func NewShoppingResult(hit SearchHit, formula string) ShoppingResult {
	return ShoppingResult{
		Title:     hit.Title,
		Price:     hit.Price,
		Link:      hit.Link,
		Thumbnail: hit.Thumbnail,
		Formula:   formula,
	}
}
