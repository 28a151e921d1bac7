package provider

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors returned by adapters.
var (
	// ErrNotFound is returned when the provider has no record of the artist.
	ErrNotFound = errors.New("artist not found")

	// ErrRateLimited is returned when the provider keeps rejecting requests after retries.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrSelectorNotFound is returned by scrapers when an expected page element is missing.
	ErrSelectorNotFound = errors.New("selector not found")

	// ErrNotConfigured is returned by adapters whose credentials are missing.
	ErrNotConfigured = errors.New("provider not configured")
)

// Error is the single failure type crossing the adapter boundary.
type Error struct {
	Provider Name   `json:"provider"`
	Message  string `json:"message"`
	Err      error  `json:"-"`
}

// NewError collapses err into an *Error for provider name.
func NewError(name Name, err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	return &Error{Provider: name, Message: humanize(err), Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func humanize(err error) string {
	switch {
	case err == nil:
		return "unknown failure"
	case errors.Is(err, context.DeadlineExceeded):
		return "request timed out"
	case errors.Is(err, context.Canceled):
		return "request canceled"
	default:
		return err.Error()
	}
}

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// Retryable reports whether the status is worth retrying.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
