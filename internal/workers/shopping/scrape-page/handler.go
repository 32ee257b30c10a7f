// internal/workers/shopping/scrape-page/handler.go
package scrapepage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"shopping-assistant/internal/common/config"
	httpclient "shopping-assistant/internal/common/http"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/common/metrics"
)

const (
	TaskType = config.StageScrapePage
)

var (
	ErrScrapeFailed  = errors.New("SCRAPE_FAILED")
	ErrScrapeTimeout = errors.New("SCRAPE_TIMEOUT")
	ErrInvalidURL    = errors.New("INVALID_URL")
	ErrEmptyPage     = errors.New("EMPTY_PAGE")
)

// Handler fetches a product page as plain text through a reader service
// that takes the target URL as its path.
type Handler struct {
	config *Config
	client *httpclient.Client
	cache  Cache
	logger logger.Logger
}

// NewHandler builds a scraper. cache may be nil.
func NewHandler(config *Config, client *httpclient.Client, cache Cache, log logger.Logger) *Handler {
	if client == nil {
		client = httpclient.NewClient(config.Timeout)
	}
	return &Handler{
		config: config,
		client: client,
		cache:  cache,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	target := strings.TrimSpace(input.URL)
	if err := validateURL(target); err != nil {
		return nil, err
	}

	if h.cache != nil {
		if text, ok := h.cache.Get(ctx, target); ok {
			h.logger.Debug("scrape cache hit", map[string]interface{}{"url": target})
			return &Output{URL: target, Text: text, Cached: true}, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	start := time.Now()
	text, truncated, err := h.fetch(ctx, target)
	metrics.StageDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	if err != nil {
		var netErr net.Error
		if ctx.Err() == context.DeadlineExceeded ||
			errors.Is(err, context.DeadlineExceeded) ||
			(errors.As(err, &netErr) && netErr.Timeout()) {
			return nil, ErrScrapeTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrScrapeFailed, err)
	}

	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: %w", ErrScrapeFailed, ErrEmptyPage)
	}

	if h.cache != nil {
		h.cache.Set(ctx, target, text)
	}

	h.logger.Debug("page scraped", map[string]interface{}{
		"url":       target,
		"bytes":     len(text),
		"truncated": truncated,
	})

	return &Output{URL: target, Text: text, Truncated: truncated}, nil
}

func (h *Handler) fetch(ctx context.Context, target string) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.config.BaseURL+target, nil)
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Accept", "text/plain")
	if h.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.config.APIKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return "", false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", false, &httpclient.StatusError{StatusCode: resp.StatusCode}
	}

	limit := h.config.MaxBytes
	if limit <= 0 {
		limit = 64 * 1024
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return "", false, err
	}

	truncated := int64(len(body)) > limit
	if truncated {
		n := int(limit)
		for n > 0 && !utf8.RuneStart(body[n]) {
			n--
		}
		body = body[:n]
	}
	return string(body), truncated, nil
}

func validateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %s", ErrInvalidURL, raw)
	}
	return nil
}
