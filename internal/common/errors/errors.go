// Package errors provides standardized error handling for the assistant
// pipeline stages and HTTP surface.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeClassificationFailed  ErrorCode = "CLASSIFICATION_FAILED"
	ErrCodeClassificationTimeout ErrorCode = "CLASSIFICATION_TIMEOUT"

	ErrCodeCompletionFailed  ErrorCode = "COMPLETION_FAILED"
	ErrCodeCompletionTimeout ErrorCode = "COMPLETION_TIMEOUT"

	ErrCodeSearchFailed  ErrorCode = "SEARCH_FAILED"
	ErrCodeSearchTimeout ErrorCode = "SEARCH_TIMEOUT"

	ErrCodeScrapeFailed  ErrorCode = "SCRAPE_FAILED"
	ErrCodeScrapeTimeout ErrorCode = "SCRAPE_TIMEOUT"

	ErrCodeExtractionFailed  ErrorCode = "EXTRACTION_FAILED"
	ErrCodeExtractionTimeout ErrorCode = "EXTRACTION_TIMEOUT"

	ErrCodeProviderNotConfigured ErrorCode = "PROVIDER_NOT_CONFIGURED"
	ErrCodeInvalidRequest        ErrorCode = "INVALID_REQUEST"
	ErrCodeStreamWriteFailed     ErrorCode = "STREAM_WRITE_FAILED"
	ErrCodeFeedbackFailed        ErrorCode = "FEEDBACK_FAILED"
	ErrCodeDatabaseInsertFailed  ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeInternal              ErrorCode = "INTERNAL_ERROR"
)

// GenericStreamMessage is the only error text a client ever sees on the stream.
const GenericStreamMessage = "An error occurred while processing your request."

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata returns the error with key set in its metadata.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. Error Constructors
// ==========================

func newError(code ErrorCode, message string, err error) *StandardError {
	stdErr := &StandardError{
		Code:      code,
		Message:   message,
		Retryable: IsRetryableErrorCode(code),
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		stdErr.Details = err.Error()
	}
	return stdErr
}

// NewClassificationFailedError is logged when the router falls back.
func NewClassificationFailedError(err error) *StandardError {
	return newError(ErrCodeClassificationFailed, "Intent classification failed", err)
}

func NewClassificationTimeoutError() *StandardError {
	return newError(ErrCodeClassificationTimeout, "Intent classification timed out", nil)
}

func NewCompletionFailedError(err error) *StandardError {
	return newError(ErrCodeCompletionFailed, "Completion stream failed", err)
}

func NewCompletionTimeoutError() *StandardError {
	return newError(ErrCodeCompletionTimeout, "Completion stream timed out", nil)
}

func NewSearchFailedError(err error) *StandardError {
	return newError(ErrCodeSearchFailed, "Product search failed", err)
}

func NewSearchTimeoutError() *StandardError {
	return newError(ErrCodeSearchTimeout, "Product search timed out", nil)
}

func NewScrapeFailedError(url string, err error) *StandardError {
	return newError(ErrCodeScrapeFailed, "Page scrape failed", err).WithMetadata("url", url)
}

func NewScrapeTimeoutError(url string) *StandardError {
	return newError(ErrCodeScrapeTimeout, "Page scrape timed out", nil).WithMetadata("url", url)
}

func NewExtractionFailedError(err error) *StandardError {
	return newError(ErrCodeExtractionFailed, "Formula extraction failed", err)
}

func NewExtractionTimeoutError() *StandardError {
	return newError(ErrCodeExtractionTimeout, "Formula extraction timed out", nil)
}

// NewProviderNotConfiguredError names the missing setting so the operator can fix it.
func NewProviderNotConfiguredError(provider, envVar string) *StandardError {
	return &StandardError{
		Code:      ErrCodeProviderNotConfigured,
		Message:   fmt.Sprintf("%s is not configured", provider),
		Details:   fmt.Sprintf("set %s", envVar),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidRequestError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRequest,
		Message:   "Invalid request",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewStreamWriteFailedError(err error) *StandardError {
	return newError(ErrCodeStreamWriteFailed, "Writing to the response stream failed", err)
}

func NewFeedbackFailedError(sink string, err error) *StandardError {
	return newError(ErrCodeFeedbackFailed, "Feedback submission failed", err).WithMetadata("sink", sink)
}

func NewDatabaseInsertFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseInsertFailed, "Database insert failed", err)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err)
}

// ==========================
// 3. Utility Functions
// ==========================

// GetRetryCount returns the recommended retry count for an error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeClassificationFailed,
		ErrCodeSearchFailed,
		ErrCodeFeedbackFailed,
		ErrCodeDatabaseInsertFailed:
		return 2

	case ErrCodeScrapeFailed,
		ErrCodeExtractionFailed,
		ErrCodeClassificationTimeout:
		return 1

	default:
		// Streams cannot be replayed once bytes reached the client.
		return 0
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "CLASSIFICATION"),
		strings.HasPrefix(codeStr, "COMPLETION"),
		strings.HasPrefix(codeStr, "EXTRACTION"),
		strings.HasPrefix(codeStr, "PROVIDER"):
		return "AI"
	case strings.HasPrefix(codeStr, "SEARCH"), strings.HasPrefix(codeStr, "SCRAPE"):
		return "ENRICHMENT"
	case strings.Contains(codeStr, "DATABASE"):
		return "DATABASE"
	case strings.Contains(codeStr, "FEEDBACK"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	case strings.Contains(codeStr, "STREAM"):
		return "TRANSPORT"
	default:
		return "OTHER"
	}
}

// AsStandardError unwraps err into a StandardError, wrapping unknown errors
// as INTERNAL_ERROR.
func AsStandardError(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}
