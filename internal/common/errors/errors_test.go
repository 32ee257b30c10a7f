package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureLogger struct {
	calls []map[string]interface{}
}

func (c *captureLogger) Error(msg string, fields map[string]interface{}) {
	c.calls = append(c.calls, fields)
}

func TestGetErrorCategory(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want string
	}{
		{ErrCodeClassificationFailed, "AI"},
		{ErrCodeCompletionTimeout, "AI"},
		{ErrCodeProviderNotConfigured, "AI"},
		{ErrCodeSearchFailed, "ENRICHMENT"},
		{ErrCodeScrapeTimeout, "ENRICHMENT"},
		{ErrCodeDatabaseInsertFailed, "DATABASE"},
		{ErrCodeFeedbackFailed, "NOTIFICATION"},
		{ErrCodeInvalidRequest, "VALIDATION"},
		{ErrCodeStreamWriteFailed, "TRANSPORT"},
		{ErrCodeInternal, "OTHER"},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, GetErrorCategory(tt.code))
		})
	}
}

func TestRetryability(t *testing.T) {
	assert.True(t, IsRetryableErrorCode(ErrCodeSearchFailed))
	assert.True(t, IsRetryableErrorCode(ErrCodeScrapeFailed))
	assert.False(t, IsRetryableErrorCode(ErrCodeCompletionFailed))
	assert.False(t, IsRetryableErrorCode(ErrCodeInvalidRequest))

	assert.True(t, NewSearchFailedError(fmt.Errorf("503")).Retryable)
	assert.False(t, NewCompletionFailedError(fmt.Errorf("reset")).Retryable)
}

func TestAsStandardError(t *testing.T) {
	assert.Nil(t, AsStandardError(nil))

	wrapped := fmt.Errorf("stage: %w", NewScrapeTimeoutError("https://example.com"))
	stdErr := AsStandardError(wrapped)
	assert.Equal(t, ErrCodeScrapeTimeout, stdErr.Code)
	assert.Equal(t, "https://example.com", stdErr.Metadata["url"])

	plain := AsStandardError(fmt.Errorf("boom"))
	assert.Equal(t, ErrCodeInternal, plain.Code)
	assert.Equal(t, "boom", plain.Details)
}

func TestErrorHandler_WriteHTTP(t *testing.T) {
	log := &captureLogger{}
	h := NewErrorHandler(log)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	h.WriteHTTP(rec, req, NewInvalidRequestError("messages must not be empty"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Success bool          `json:"success"`
		Error   StandardError `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, ErrCodeInvalidRequest, body.Error.Code)
	assert.Equal(t, "messages must not be empty", body.Error.Details)

	require.Len(t, log.calls, 1)
	assert.Equal(t, "/api/chat", log.calls[0]["path"])
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(ErrCodeProviderNotConfigured))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(ErrCodeFeedbackFailed))
	assert.Equal(t, http.StatusGatewayTimeout, HTTPStatus(ErrCodeSearchTimeout))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(ErrCodeInternal))
}
