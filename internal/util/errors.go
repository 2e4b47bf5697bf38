package util

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes
var (
	// ErrSessionExpired indicates the source catalog browse cursor is no
	// longer valid and the whole scan must be restarted
	ErrSessionExpired = errors.New("browse session expired")

	// ErrMalformedResponse indicates a lookup response that could not be
	// decoded and is assumed permanently broken for this input
	ErrMalformedResponse = errors.New("malformed response")

	// ErrNotFound indicates a required resource was not found
	ErrNotFound = errors.New("not found")

	// ErrUnavailable indicates a collaborator could not be reached
	ErrUnavailable = errors.New("service unavailable")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")
)

// HTTPError represents a non-2xx response from a collaborator
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status code %d from %s", e.StatusCode, e.URL)
}

// Retryable reports whether the status class is worth retrying.
// Server errors and rate limiting are transient; other 4xx are not.
func (e *HTTPError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}
