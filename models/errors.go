package models

import (
	"errors"
	"fmt"
)

// Error codes used in API responses and internal error handling.
const (
	ErrCodeBrowserLaunch   = "BROWSER_LAUNCH_FAILED"
	ErrCodeScrapeTimeout   = "SCRAPE_TIMEOUT"
	ErrCodeNavigation      = "NAVIGATION_FAILED"
	ErrCodeInvalidReading  = "INVALID_READING"
	ErrCodeUpstreamTimeout = "UPSTREAM_TIMEOUT"
	ErrCodeUpstreamNonOK   = "UPSTREAM_NON_OK"
	ErrCodeFetch           = "FETCH_FAILED"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// ProxyError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ProxyError struct {
	Code    string
	Message string
	Err     error // wrapped original error

	// UpstreamStatus and UpstreamBody are set for ErrCodeUpstreamNonOK.
	UpstreamStatus int
	UpstreamBody   []byte
}

func (e *ProxyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProxyError) Unwrap() error {
	return e.Err
}

// NewProxyError creates a new ProxyError.
func NewProxyError(code, message string, err error) *ProxyError {
	return &ProxyError{Code: code, Message: message, Err: err}
}

// NewUpstreamError records a completed upstream call that returned a
// non-success status.
func NewUpstreamError(status int, body []byte) *ProxyError {
	return &ProxyError{
		Code:           ErrCodeUpstreamNonOK,
		Message:        fmt.Sprintf("upstream returned HTTP %d", status),
		UpstreamStatus: status,
		UpstreamBody:   body,
	}
}

// CodeOf returns the code of the first ProxyError in err's chain, or
// ErrCodeInternal.
func CodeOf(err error) string {
	var pe *ProxyError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ErrCodeInternal
}
