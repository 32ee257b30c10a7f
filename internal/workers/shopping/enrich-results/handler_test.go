// internal/workers/shopping/enrich-results/handler_test.go
package enrichresults

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/llm"
	"shopping-assistant/internal/llm/mock"
	"shopping-assistant/internal/models"
	extractformula "shopping-assistant/internal/workers/shopping/extract-formula"
	scrapepage "shopping-assistant/internal/workers/shopping/scrape-page"
	searchproducts "shopping-assistant/internal/workers/shopping/search-products"
)

// ==========================
// Test doubles
// ==========================

type fakeSearcher struct {
	hits  []models.SearchHit
	err   error
	calls int32
}

func (f *fakeSearcher) Execute(ctx context.Context, input *searchproducts.Input) (*searchproducts.Output, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return &searchproducts.Output{Hits: f.hits}, nil
}

type fakeScraper struct {
	delay    map[string]time.Duration
	fail     map[string]error
	inFlight int32
	maxSeen  int32
}

func (f *fakeScraper) Execute(ctx context.Context, input *scrapepage.Input) (*scrapepage.Output, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		seen := atomic.LoadInt32(&f.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(&f.maxSeen, seen, n) {
			break
		}
	}

	if d := f.delay[input.URL]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, scrapepage.ErrScrapeTimeout
		}
	}
	if err := f.fail[input.URL]; err != nil {
		return nil, err
	}
	return &scrapepage.Output{URL: input.URL, Text: "facts for " + input.URL}, nil
}

type fakeExtractor struct {
	fail    map[string]error
	panicOn map[string]bool
}

func (f *fakeExtractor) Execute(ctx context.Context, input *extractformula.Input) (*extractformula.Output, error) {
	if f.panicOn[input.Title] {
		var labels map[string]string
		labels[input.Title] = "boom"
	}
	if err := f.fail[input.URL]; err != nil {
		return nil, err
	}
	return &extractformula.Output{Formula: "1. Formula of " + input.Title}, nil
}

func createHits(n int) []models.SearchHit {
	hits := make([]models.SearchHit, n)
	for i := range hits {
		hits[i] = models.SearchHit{
			Title: fmt.Sprintf("Product %d", i),
			Price: fmt.Sprintf("$%d.00", 10+i),
			Link:  fmt.Sprintf("https://shop.example.com/p/%d", i),
		}
	}
	return hits
}

type collector struct {
	mu      sync.Mutex
	results []models.ShoppingResult
}

func (c *collector) emit(r models.ShoppingResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, r)
	return nil
}

func (c *collector) titles() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.results))
	for i, r := range c.results {
		out[i] = r.Title
	}
	return out
}

// ==========================
// Tests
// ==========================

func TestHandler_Execute_AllSucceed(t *testing.T) {
	hits := createHits(4)
	handler := NewHandler(LoadConfig(), &fakeSearcher{hits: hits}, &fakeScraper{}, &fakeExtractor{}, logger.NewTestLogger(t))

	var c collector
	output, err := handler.Execute(context.Background(), "vegan protein", c.emit)
	require.NoError(t, err)

	assert.True(t, output.Searched)
	assert.Equal(t, 4, output.Hits)
	assert.Equal(t, []string{"Product 0", "Product 1", "Product 2", "Product 3"}, c.titles())
	assert.Equal(t, c.results, output.Results)
	for i, r := range output.Results {
		assert.Equal(t, hits[i].Price, r.Price)
		assert.Equal(t, "1. Formula of "+hits[i].Title, r.Formula)
	}
}

func TestHandler_Execute_EmptyQuery(t *testing.T) {
	searcher := &fakeSearcher{hits: createHits(2)}
	handler := NewHandler(LoadConfig(), searcher, &fakeScraper{}, &fakeExtractor{}, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), "   ", func(models.ShoppingResult) error {
		t.Error("nothing should be emitted")
		return nil
	})
	require.NoError(t, err)
	assert.False(t, output.Searched)
	assert.Equal(t, int32(0), atomic.LoadInt32(&searcher.calls))
}

func TestHandler_Execute_SearchFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "failed", err: fmt.Errorf("%w: status 500", searchproducts.ErrSearchFailed)},
		{name: "timeout", err: searchproducts.ErrSearchTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHandler(LoadConfig(), &fakeSearcher{err: tt.err}, &fakeScraper{}, &fakeExtractor{}, logger.NewTestLogger(t))

			var c collector
			output, err := handler.Execute(context.Background(), "whey", c.emit)
			require.NoError(t, err)
			assert.True(t, output.Searched)
			assert.Empty(t, output.Results)
			assert.Empty(t, c.results)
		})
	}
}

func TestHandler_Execute_HitFailures(t *testing.T) {
	hits := createHits(4)

	tests := []struct {
		name      string
		drop      bool
		scraper   *fakeScraper
		extractor *fakeExtractor
		expected  []string
		formulas  map[string]string
	}{
		{
			name:      "scrape failure gets placeholder",
			scraper:   &fakeScraper{fail: map[string]error{hits[1].Link: scrapepage.ErrScrapeFailed}},
			extractor: &fakeExtractor{},
			expected:  []string{"Product 0", "Product 1", "Product 2", "Product 3"},
			formulas:  map[string]string{"Product 1": "Formula unavailable"},
		},
		{
			name:      "extraction failure gets placeholder",
			scraper:   &fakeScraper{},
			extractor: &fakeExtractor{fail: map[string]error{hits[3].Link: extractformula.ErrExtractionTimeout}},
			expected:  []string{"Product 0", "Product 1", "Product 2", "Product 3"},
			formulas:  map[string]string{"Product 3": "Formula unavailable"},
		},
		{
			name:      "failed hit dropped",
			drop:      true,
			scraper:   &fakeScraper{fail: map[string]error{hits[0].Link: scrapepage.ErrScrapeTimeout}},
			extractor: &fakeExtractor{},
			expected:  []string{"Product 1", "Product 2", "Product 3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LoadConfig()
			cfg.DropFailedHits = tt.drop
			handler := NewHandler(cfg, &fakeSearcher{hits: hits}, tt.scraper, tt.extractor, logger.NewTestLogger(t))

			var c collector
			output, err := handler.Execute(context.Background(), "preworkout", c.emit)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.expected, c.titles())
			assert.Equal(t, 1, output.Failed)
			for _, r := range output.Results {
				if want, ok := tt.formulas[r.Title]; ok {
					assert.Equal(t, want, r.Formula)
				} else {
					assert.Equal(t, "1. Formula of "+r.Title, r.Formula)
				}
			}
		})
	}
}

func TestHandler_Execute_PanickingHitIsIsolated(t *testing.T) {
	tests := []struct {
		name       string
		drop       bool
		wantTitles []string
	}{
		{name: "placeholder", wantTitles: []string{"Product 0", "Product 1", "Product 2"}},
		{name: "drop", drop: true, wantTitles: []string{"Product 0", "Product 2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LoadConfig()
			cfg.DropFailedHits = tt.drop
			extractor := &fakeExtractor{panicOn: map[string]bool{"Product 1": true}}
			handler := NewHandler(cfg, &fakeSearcher{hits: createHits(3)}, &fakeScraper{}, extractor, logger.NewTestLogger(t))

			var c collector
			output, err := handler.Execute(context.Background(), "creatine", c.emit)
			require.NoError(t, err)

			assert.Equal(t, tt.wantTitles, c.titles())
			assert.Equal(t, 1, output.Failed)
			if !tt.drop {
				assert.Equal(t, cfg.PlaceholderFormula, c.results[1].Formula)
				assert.Equal(t, "1. Formula of Product 2", c.results[2].Formula)
			}
		})
	}
}

func TestHandler_Execute_SearchOrderPreserved(t *testing.T) {
	hits := createHits(4)
	scraper := &fakeScraper{delay: map[string]time.Duration{
		hits[0].Link: 150 * time.Millisecond,
		hits[2].Link: 50 * time.Millisecond,
	}}
	handler := NewHandler(LoadConfig(), &fakeSearcher{hits: hits}, scraper, &fakeExtractor{}, logger.NewTestLogger(t))

	var c collector
	_, err := handler.Execute(context.Background(), "creatine", c.emit)
	require.NoError(t, err)
	assert.Equal(t, []string{"Product 0", "Product 1", "Product 2", "Product 3"}, c.titles())
}

func TestHandler_Execute_ConcurrencyLimit(t *testing.T) {
	hits := createHits(6)
	delay := make(map[string]time.Duration)
	for _, h := range hits {
		delay[h.Link] = 20 * time.Millisecond
	}
	scraper := &fakeScraper{delay: delay}

	cfg := LoadConfig()
	cfg.Concurrency = 2
	handler := NewHandler(cfg, &fakeSearcher{hits: hits}, scraper, &fakeExtractor{}, logger.NewTestLogger(t))

	var c collector
	_, err := handler.Execute(context.Background(), "bcaa", c.emit)
	require.NoError(t, err)
	assert.Len(t, c.results, 6)
	assert.LessOrEqual(t, atomic.LoadInt32(&scraper.maxSeen), int32(2))
}

func TestHandler_Execute_EmitFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	handler := NewHandler(LoadConfig(), &fakeSearcher{hits: createHits(4)}, &fakeScraper{}, &fakeExtractor{}, logger.NewTestLogger(t))

	calls := 0
	gone := errors.New("broken pipe")
	output, err := handler.Execute(context.Background(), "whey", func(models.ShoppingResult) error {
		calls++
		if calls == 2 {
			return gone
		}
		return nil
	})
	assert.ErrorIs(t, err, ErrEmitFailed)
	assert.ErrorIs(t, err, gone)
	assert.Equal(t, 2, calls)
	assert.Len(t, output.Results, 1)
}

func TestHandler_Execute_Cancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	hits := createHits(4)
	delay := make(map[string]time.Duration)
	for _, h := range hits {
		delay[h.Link] = 5 * time.Second
	}
	handler := NewHandler(LoadConfig(), &fakeSearcher{hits: hits}, &fakeScraper{delay: delay}, &fakeExtractor{}, logger.NewTestLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var c collector
	start := time.Now()
	_, err := handler.Execute(ctx, "whey", c.emit)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, c.results)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestHandler_Execute_AlreadyCancelled(t *testing.T) {
	searcher := &fakeSearcher{hits: createHits(1)}
	handler := NewHandler(LoadConfig(), searcher, &fakeScraper{}, &fakeExtractor{}, logger.NewTestLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := handler.Execute(ctx, "whey", func(models.ShoppingResult) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), atomic.LoadInt32(&searcher.calls))
}

// TestHandler_Execute_Pipeline wires the real search, scrape and extract
// handlers against httptest servers and a scripted model.
func TestHandler_Execute_Pipeline(t *testing.T) {
	var scrapeCalls int32
	var scrapeURL string

	search := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		items := make([]map[string]string, 10)
		for i := range items {
			items[i] = map[string]string{
				"title": fmt.Sprintf("Item %d", i),
				"price": "$19.99",
				"link":  fmt.Sprintf("%s/product/%d", scrapeURL, i),
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"shopping_results": items})
	}))
	defer search.Close()

	scraper := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&scrapeCalls, 1)
		if strings.HasSuffix(r.URL.Path, "/product/2") {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, "Supplement Facts: Creatine 5g")
	}))
	defer scraper.Close()
	scrapeURL = "https://merchant.example.com"

	log := logger.NewTestLogger(t)

	searchCfg := searchproducts.LoadConfig()
	searchCfg.BaseURL = search.URL
	searchCfg.APIKey = "key"
	searchHandler := searchproducts.NewHandler(searchCfg, searchproducts.NewSearchAPIBackend(searchCfg, nil), log)

	scrapeCfg := scrapepage.LoadConfig()
	scrapeCfg.BaseURL = scraper.URL + "/"
	scrapeHandler := scrapepage.NewHandler(scrapeCfg, nil, scrapepage.NewLocalCache(time.Minute), log)

	provider := &mock.Provider{FailAfter: -1, CompleteFunc: func(req llm.Request) (string, error) {
		return "1. Creatine Monohydrate (5g)", nil
	}}
	extractHandler := extractformula.NewHandler(extractformula.LoadConfig(), provider, log)

	handler := NewHandler(LoadConfig(), searchHandler, scrapeHandler, extractHandler, log)

	var c collector
	output, err := handler.Execute(context.Background(), "creatine", c.emit)
	require.NoError(t, err)

	require.Len(t, c.results, 4)
	assert.Equal(t, int32(4), atomic.LoadInt32(&scrapeCalls))
	assert.Equal(t, 1, output.Failed)
	assert.ElementsMatch(t, []string{"Item 0", "Item 1", "Item 2", "Item 3"}, c.titles())
	for _, r := range c.results {
		if r.Title == "Item 2" {
			assert.Equal(t, "Formula unavailable", r.Formula)
		} else {
			assert.Equal(t, "1. Creatine Monohydrate (5g)", r.Formula)
		}
	}
	assert.Len(t, provider.Requests(), 3)
}
