// internal/workers/shopping/search-products/elasticsearch.go
package searchproducts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"shopping-assistant/internal/common/database"
	"shopping-assistant/internal/models"
)

// ElasticsearchBackend searches a local product catalog index.
type ElasticsearchBackend struct {
	client *database.ElasticsearchClient
	index  string
}

func NewElasticsearchBackend(config *Config, client *database.ElasticsearchClient) *ElasticsearchBackend {
	index := config.Index
	if index == "" && client != nil {
		index = client.Index
	}
	return &ElasticsearchBackend{client: client, index: index}
}

func (b *ElasticsearchBackend) Name() string { return BackendElasticsearch }

func (b *ElasticsearchBackend) Search(ctx context.Context, query string, limit int) ([]models.SearchHit, error) {
	if b.client == nil {
		return nil, fmt.Errorf("%w: elasticsearch client not configured", ErrSearchNotConfigured)
	}

	body, err := json.Marshal(buildCatalogQuery(query))
	if err != nil {
		return nil, err
	}

	size := limit
	req := esapi.SearchRequest{
		Index: []string{b.index},
		Body:  bytes.NewReader(body),
		Size:  &size,
	}

	res, err := req.Do(ctx, b.client.Client)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch search error: %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source product `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	hits := make([]models.SearchHit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hits = append(hits, h.Source.toHit())
	}
	return hits, nil
}

func buildCatalogQuery(query string) map[string]interface{} {
	return map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"title^3", "description^2", "ingredients", "category"},
				"type":   "best_fields",
			},
		},
	}
}
