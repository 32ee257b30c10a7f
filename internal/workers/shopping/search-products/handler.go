// internal/workers/shopping/search-products/handler.go
package searchproducts

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"shopping-assistant/internal/common/config"
	"shopping-assistant/internal/common/database"
	httpclient "shopping-assistant/internal/common/http"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/common/metrics"
	"shopping-assistant/internal/models"
)

const (
	TaskType = config.StageSearchProducts
)

var (
	ErrSearchFailed        = errors.New("SEARCH_FAILED")
	ErrSearchTimeout       = errors.New("SEARCH_TIMEOUT")
	ErrSearchNotConfigured = errors.New("SEARCH_NOT_CONFIGURED")
	ErrEmptyQuery          = errors.New("EMPTY_QUERY")
)

// Backend is a product search capability.
type Backend interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]models.SearchHit, error)
}

// NewBackend picks the backend named in config. es may be nil unless the
// elasticsearch backend is selected.
func NewBackend(cfg *Config, client *httpclient.Client, es *database.ElasticsearchClient) (Backend, error) {
	switch cfg.Backend {
	case BackendSearchAPI, "":
		return NewSearchAPIBackend(cfg, client), nil
	case BackendElasticsearch:
		return NewElasticsearchBackend(cfg, es), nil
	}
	return nil, fmt.Errorf("unknown search backend %q", cfg.Backend)
}

type Handler struct {
	config  *Config
	backend Backend
	logger  logger.Logger
}

func NewHandler(config *Config, backend Backend, log logger.Logger) *Handler {
	return &Handler{
		config:  config,
		backend: backend,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
			"backend":  backend.Name(),
		}),
	}
}

// Execute runs one search and returns the first MaxResults hits in backend
// order.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	start := time.Now()
	hits, err := h.backend.Search(ctx, query, h.config.MaxResults)
	metrics.StageDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	if err != nil {
		var netErr net.Error
		if ctx.Err() == context.DeadlineExceeded ||
			errors.Is(err, context.DeadlineExceeded) ||
			(errors.As(err, &netErr) && netErr.Timeout()) {
			return nil, ErrSearchTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}

	hits = h.processResults(hits)

	h.logger.Info("product search completed", map[string]interface{}{
		"query":       query,
		"resultCount": len(hits),
	})

	return &Output{Hits: hits, Backend: h.backend.Name()}, nil
}

func (h *Handler) processResults(hits []models.SearchHit) []models.SearchHit {
	if h.config.MaxResults > 0 && len(hits) > h.config.MaxResults {
		hits = hits[:h.config.MaxResults]
	}
	return hits
}
