// internal/workers/shopping/scrape-page/handler_test.go
package scrapepage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopping-assistant/internal/common/database"
	"shopping-assistant/internal/common/logger"
)

const productURL = "https://shop.example.com/p/1"

func createTestConfig(baseURL string) *Config {
	cfg := LoadConfig()
	cfg.BaseURL = baseURL + "/"
	cfg.Timeout = 2 * time.Second
	return cfg
}

func TestHandler_Execute_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/"+productURL, r.URL.Path)
		assert.Equal(t, "Bearer jina-key", r.Header.Get("Authorization"))
		io.WriteString(w, "Supplement Facts\nCitrulline Malate 6g\nBeta-Alanine 3.2g")
	}))
	defer server.Close()

	cfg := createTestConfig(server.URL)
	cfg.APIKey = "jina-key"
	handler := NewHandler(cfg, nil, nil, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{URL: productURL})
	require.NoError(t, err)
	assert.Contains(t, output.Text, "Beta-Alanine")
	assert.False(t, output.Cached)
	assert.False(t, output.Truncated)
}

func TestHandler_Execute_NoAuthHeaderWithoutKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		io.WriteString(w, "page")
	}))
	defer server.Close()

	handler := NewHandler(createTestConfig(server.URL), nil, nil, logger.NewTestLogger(t))
	_, err := handler.Execute(context.Background(), &Input{URL: productURL})
	require.NoError(t, err)
}

func TestHandler_Execute_Truncates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, strings.Repeat("x", 100))
	}))
	defer server.Close()

	cfg := createTestConfig(server.URL)
	cfg.MaxBytes = 10
	handler := NewHandler(cfg, nil, nil, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{URL: productURL})
	require.NoError(t, err)
	assert.Len(t, output.Text, 10)
	assert.True(t, output.Truncated)
}

func TestHandler_Execute_TruncatesOnRuneBoundary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, strings.Repeat("€", 10))
	}))
	defer server.Close()

	cfg := createTestConfig(server.URL)
	cfg.MaxBytes = 10
	handler := NewHandler(cfg, nil, nil, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{URL: productURL})
	require.NoError(t, err)
	assert.Equal(t, "€€€", output.Text)
	assert.True(t, utf8.ValidString(output.Text))
	assert.True(t, output.Truncated)
}

func TestHandler_Execute_Failures(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		url         string
		timeout     time.Duration
		expectedErr error
	}{
		{
			name:        "upstream error status",
			handler:     func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) },
			url:         productURL,
			expectedErr: ErrScrapeFailed,
		},
		{
			name:        "empty page",
			handler:     func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, "  \n") },
			url:         productURL,
			expectedErr: ErrScrapeFailed,
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
			url:         productURL,
			timeout:     50 * time.Millisecond,
			expectedErr: ErrScrapeTimeout,
		},
		{
			name:        "empty url",
			url:         "",
			expectedErr: ErrInvalidURL,
		},
		{
			name:        "not http",
			url:         "ftp://files.example.com/x",
			expectedErr: ErrInvalidURL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := tt.handler
			if h == nil {
				h = func(w http.ResponseWriter, r *http.Request) { t.Error("unexpected request") }
			}
			server := httptest.NewServer(h)
			defer server.Close()

			cfg := createTestConfig(server.URL)
			if tt.timeout > 0 {
				cfg.Timeout = tt.timeout
			}
			handler := NewHandler(cfg, nil, NewLocalCache(time.Minute), logger.NewTestLogger(t))

			_, err := handler.Execute(context.Background(), &Input{URL: tt.url})
			assert.ErrorIs(t, err, tt.expectedErr)
		})
	}
}

func TestHandler_Execute_LocalCacheHit(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		io.WriteString(w, "Creatine Monohydrate 5g")
	}))
	defer server.Close()

	handler := NewHandler(createTestConfig(server.URL), nil, NewLocalCache(time.Minute), logger.NewTestLogger(t))

	first, err := handler.Execute(context.Background(), &Input{URL: productURL})
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := handler.Execute(context.Background(), &Input{URL: productURL})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Text, second.Text)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestHandler_Execute_RedisCacheHit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := database.NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	require.NoError(t, mr.Set("scrape:"+productURL, "cached formula text"))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("cache hit must skip the HTTP scrape")
	}))
	defer server.Close()

	handler := NewHandler(createTestConfig(server.URL), nil, NewCache(client, time.Hour), logger.NewTestLogger(t))
	output, err := handler.Execute(context.Background(), &Input{URL: productURL})
	require.NoError(t, err)
	assert.True(t, output.Cached)
	assert.Equal(t, "cached formula text", output.Text)
}

func TestRedisCache_StoresWithTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := database.NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "Whey Protein Isolate")
	}))
	defer server.Close()

	handler := NewHandler(createTestConfig(server.URL), nil, NewRedisCache(client, time.Hour), logger.NewTestLogger(t))
	_, err := handler.Execute(context.Background(), &Input{URL: productURL})
	require.NoError(t, err)

	stored, err := mr.Get("scrape:" + productURL)
	require.NoError(t, err)
	assert.Equal(t, "Whey Protein Isolate", stored)
	assert.Equal(t, time.Hour, mr.TTL("scrape:"+productURL))
}

func TestRedisCache_ErrorsAreMisses(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := database.NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1}))
	cache := NewRedisCache(client, time.Minute)
	mr.Close()

	_, ok := cache.Get(context.Background(), productURL)
	assert.False(t, ok)
	cache.Set(context.Background(), productURL, "ignored")
}

func TestNewCache(t *testing.T) {
	assert.Nil(t, NewCache(nil, 0))
	assert.IsType(t, &LocalCache{}, NewCache(nil, time.Minute))
}
