// internal/workers/shopping/enrich-results/handler.go
package enrichresults

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"shopping-assistant/internal/common/config"
	apperrors "shopping-assistant/internal/common/errors"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/common/metrics"
	"shopping-assistant/internal/models"
	extractformula "shopping-assistant/internal/workers/shopping/extract-formula"
	scrapepage "shopping-assistant/internal/workers/shopping/scrape-page"
	searchproducts "shopping-assistant/internal/workers/shopping/search-products"
)

const (
	TaskType = "enrich-results"
)

var (
	ErrEmitFailed = errors.New("EMIT_FAILED")
)

type Searcher interface {
	Execute(ctx context.Context, input *searchproducts.Input) (*searchproducts.Output, error)
}

type Scraper interface {
	Execute(ctx context.Context, input *scrapepage.Input) (*scrapepage.Output, error)
}

type Extractor interface {
	Execute(ctx context.Context, input *extractformula.Input) (*extractformula.Output, error)
}

// Handler runs search, then scrape and extraction per hit concurrently, and
// emits results in search order as soon as each one and all before it are
// finished. Only an emit failure or cancellation is returned as an error;
// search and per-hit failures degrade the output instead.
type Handler struct {
	config    *Config
	searcher  Searcher
	scraper   Scraper
	extractor Extractor
	logger    logger.Logger
}

func NewHandler(config *Config, searcher Searcher, scraper Scraper, extractor Extractor, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		searcher:  searcher,
		scraper:   scraper,
		extractor: extractor,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

func (h *Handler) Execute(ctx context.Context, query string, emit EmitFunc) (*Output, error) {
	query = strings.TrimSpace(query)
	output := &Output{Query: query, Results: []models.ShoppingResult{}}
	if query == "" {
		return output, nil
	}
	if err := ctx.Err(); err != nil {
		return output, err
	}

	search, err := h.searcher.Execute(ctx, &searchproducts.Input{Query: query})
	output.Searched = true
	if err != nil {
		if ctx.Err() != nil {
			return output, ctx.Err()
		}
		code := apperrors.ErrCodeSearchFailed
		if errors.Is(err, searchproducts.ErrSearchTimeout) {
			code = apperrors.ErrCodeSearchTimeout
		}
		metrics.StageFailures.WithLabelValues(config.StageSearchProducts, string(code)).Inc()
		h.logger.Warn("product search failed, returning no results", map[string]interface{}{
			"query":     query,
			"error":     err.Error(),
			"errorCode": code,
		})
		return output, nil
	}

	output.Hits = len(search.Hits)
	if len(search.Hits) == 0 {
		return output, nil
	}

	err = h.enrich(ctx, search.Hits, emit, output)

	h.logger.Info("enrichment completed", map[string]interface{}{
		"query":   query,
		"hits":    output.Hits,
		"emitted": len(output.Results),
		"failed":  output.Failed,
		"dropped": output.Dropped,
	})
	return output, err
}

func (h *Handler) enrich(ctx context.Context, hits []models.SearchHit, emit EmitFunc, output *Output) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	slots := make([]*slot, len(hits))
	for i := range slots {
		slots[i] = &slot{done: make(chan struct{})}
	}

	limit := h.config.Concurrency
	if limit <= 0 {
		limit = len(hits)
	}

	var g errgroup.Group
	g.SetLimit(limit)

	scheduled := make(chan struct{})
	go func() {
		defer close(scheduled)
		for i, hit := range hits {
			i, hit := i, hit
			g.Go(func() error {
				defer close(slots[i].done)
				defer func() {
					if r := recover(); r != nil {
						slots[i].ok = false
						h.hitFailed(ctx, hit, TaskType, apperrors.ErrCodeInternal, fmt.Errorf("panic: %v", r), slots[i])
					}
				}()
				h.enrichHit(ctx, hit, slots[i])
				return nil
			})
		}
	}()

	var emitErr error
	for _, s := range slots {
		select {
		case <-s.done:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}

		if s.failed {
			output.Failed++
		}
		if !s.ok {
			output.Dropped++
			continue
		}
		if err := emit(s.result); err != nil {
			emitErr = fmt.Errorf("%w: %w", ErrEmitFailed, err)
			cancel()
			break
		}
		output.Results = append(output.Results, s.result)
	}

	<-scheduled
	_ = g.Wait()

	if emitErr != nil {
		return emitErr
	}
	return ctx.Err()
}

func (h *Handler) enrichHit(ctx context.Context, hit models.SearchHit, s *slot) {
	page, err := h.scraper.Execute(ctx, &scrapepage.Input{URL: hit.Link})
	if err != nil {
		h.hitFailed(ctx, hit, config.StageScrapePage, scrapeErrorCode(err), err, s)
		return
	}

	formula, err := h.extractor.Execute(ctx, &extractformula.Input{
		Title:    hit.Title,
		URL:      hit.Link,
		PageText: page.Text,
	})
	if err != nil {
		h.hitFailed(ctx, hit, config.StageExtractFormula, extractErrorCode(err), err, s)
		return
	}

	metrics.EnrichedResults.WithLabelValues("enriched").Inc()
	s.result = models.NewShoppingResult(hit, formula.Formula)
	s.ok = true
}

func (h *Handler) hitFailed(ctx context.Context, hit models.SearchHit, stage string, code apperrors.ErrorCode, err error, s *slot) {
	s.failed = true
	if ctx.Err() != nil {
		return
	}

	metrics.StageFailures.WithLabelValues(stage, string(code)).Inc()
	h.logger.Warn("hit enrichment failed", map[string]interface{}{
		"stage":     stage,
		"link":      hit.Link,
		"error":     err.Error(),
		"errorCode": code,
	})

	if h.config.DropFailedHits {
		metrics.EnrichedResults.WithLabelValues("dropped").Inc()
		return
	}

	metrics.EnrichedResults.WithLabelValues("placeholder").Inc()
	s.result = models.NewShoppingResult(hit, h.config.PlaceholderFormula)
	s.ok = true
}

func scrapeErrorCode(err error) apperrors.ErrorCode {
	if errors.Is(err, scrapepage.ErrScrapeTimeout) {
		return apperrors.ErrCodeScrapeTimeout
	}
	return apperrors.ErrCodeScrapeFailed
}

func extractErrorCode(err error) apperrors.ErrorCode {
	if errors.Is(err, extractformula.ErrExtractionTimeout) {
		return apperrors.ErrCodeExtractionTimeout
	}
	return apperrors.ErrCodeExtractionFailed
}
