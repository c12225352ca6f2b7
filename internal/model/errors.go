package model

import (
	"fmt"
	"time"
)

// HTTPError wraps an HTTP status code so callers can inspect it.
type HTTPError struct {
	StatusCode int
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// FetchError is returned by the job query client for any failed fetch:
// transport errors, non-2xx responses, and GraphQL errors embedded in a 200.
// Message is what users get to see; Err carries detail for the logs.
type FetchError struct {
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return "fetch jobs: " + e.Message + ": " + e.Err.Error()
	}
	return "fetch jobs: " + e.Message
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
