// internal/workers/shopping/search-products/models.go
package searchproducts

import (
	"encoding/json"
	"strconv"

	"shopping-assistant/internal/models"
)

type Input struct {
	Query string `json:"query"`
}

type Output struct {
	Hits    []models.SearchHit `json:"hits"`
	Backend string             `json:"backend"`
}

// flexString accepts a JSON string or number. Prices come back as "$39.99"
// from shopping APIs and as 39.99 from catalog documents.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}

	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString("$" + strconv.FormatFloat(n, 'f', 2, 64))
	return nil
}

// product is the subset of a search document or shopping result we read.
type product struct {
	Title       string     `json:"title"`
	Price       flexString `json:"price"`
	Link        string     `json:"link"`
	ProductLink string     `json:"product_link"`
	Thumbnail   string     `json:"thumbnail"`
}

func (p product) toHit() models.SearchHit {
	link := p.Link
	if link == "" {
		link = p.ProductLink
	}
	return models.SearchHit{
		Title:     p.Title,
		Price:     string(p.Price),
		Link:      link,
		Thumbnail: p.Thumbnail,
	}
}
