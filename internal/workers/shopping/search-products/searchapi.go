// internal/workers/shopping/search-products/searchapi.go
package searchproducts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	httpclient "shopping-assistant/internal/common/http"
	"shopping-assistant/internal/models"
)

// SearchAPIBackend queries searchapi.io's Google Shopping engine.
type SearchAPIBackend struct {
	config *Config
	client *httpclient.Client
}

func NewSearchAPIBackend(config *Config, client *httpclient.Client) *SearchAPIBackend {
	if client == nil {
		client = httpclient.NewClient(config.Timeout)
	}
	return &SearchAPIBackend{config: config, client: client}
}

func (b *SearchAPIBackend) Name() string { return BackendSearchAPI }

func (b *SearchAPIBackend) Search(ctx context.Context, query string, limit int) ([]models.SearchHit, error) {
	if b.config.APIKey == "" {
		return nil, fmt.Errorf("%w: SEARCHAPI_API_KEY is not set", ErrSearchNotConfigured)
	}

	searchURL, err := b.buildSearchURL(query)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &httpclient.StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var apiResponse struct {
		ShoppingResults []product `json:"shopping_results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	hits := make([]models.SearchHit, 0, len(apiResponse.ShoppingResults))
	for _, p := range apiResponse.ShoppingResults {
		hits = append(hits, p.toHit())
	}
	return hits, nil
}

func (b *SearchAPIBackend) buildSearchURL(query string) (string, error) {
	baseURL, err := url.Parse(b.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse search base url: %w", err)
	}
	params := url.Values{}
	params.Add("engine", b.config.Engine)
	params.Add("q", query)
	params.Add("location", b.config.Location)
	params.Add("api_key", b.config.APIKey)
	baseURL.RawQuery = params.Encode()
	return baseURL.String(), nil
}
