package models

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

// ErrorKind classifies a fetch failure. Classification happens once, at the
// adapter boundary, and drives both orchestrator fallback behavior and the
// message shown to the caller.
type ErrorKind string

const (
	ErrorKindInvalidRequest ErrorKind = "invalid_request"
	ErrorKindNoData         ErrorKind = "no_data"
	ErrorKindRateLimited    ErrorKind = "rate_limited"
	ErrorKindAuthInvalid    ErrorKind = "auth_invalid"
	ErrorKindNetwork        ErrorKind = "network"
	ErrorKindTimeout        ErrorKind = "timeout"
	ErrorKindUnknown        ErrorKind = "unknown"
)

// FetchError is a classified provider failure.
type FetchError struct {
	Kind       ErrorKind     `json:"kind"`
	Provider   string        `json:"provider,omitempty"`
	Message    string        `json:"message"`
	RetryAfter time.Duration `json:"-"` // hint from the provider, zero when absent
	Cause      error         `json:"-"`
}

func (e *FetchError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// NewFetchError creates a classified failure.
func NewFetchError(kind ErrorKind, provider, message string) *FetchError {
	return &FetchError{Kind: kind, Provider: provider, Message: message}
}

// InvalidRequestError creates a pre-provider validation failure.
func InvalidRequestError(message string) *FetchError {
	return &FetchError{Kind: ErrorKindInvalidRequest, Message: message}
}

// AsFetchError returns err as a *FetchError, wrapping unclassified errors
// as ErrorKindUnknown so the orchestrator always sees a kind.
func AsFetchError(provider string, err error) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	return &FetchError{Kind: ErrorKindUnknown, Provider: provider, Message: err.Error(), Cause: err}
}

// ClassifyHTTPResponse converts a non-OK HTTP response into a FetchError.
// 429 carries the Retry-After hint when the provider sends one; 401/403 mean
// the configured key is unusable; 404 means the provider answered but has
// nothing for this symbol.
func ClassifyHTTPResponse(provider string, resp *http.Response, body []byte) *FetchError {
	msg := fmt.Sprintf("status %d", resp.StatusCode)
	if len(body) > 0 {
		msg = fmt.Sprintf("status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		fe := NewFetchError(ErrorKindRateLimited, provider, msg)
		fe.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		return fe
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return NewFetchError(ErrorKindAuthInvalid, provider, msg)
	case resp.StatusCode == http.StatusNotFound:
		return NewFetchError(ErrorKindNoData, provider, msg)
	default:
		return NewFetchError(ErrorKindUnknown, provider, msg)
	}
}

// ClassifyTransportError converts a connection-level error into a FetchError.
// Deadline and timeout conditions become ErrorKindTimeout; everything else is
// ErrorKindNetwork.
func ClassifyTransportError(provider string, err error) *FetchError {
	kind := ErrorKindNetwork
	if errors.Is(err, context.DeadlineExceeded) {
		kind = ErrorKindTimeout
	} else {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			kind = ErrorKindTimeout
		}
	}
	return &FetchError{Kind: kind, Provider: provider, Message: err.Error(), Cause: err}
}

// parseRetryAfter handles the delay-seconds form of the Retry-After header.
// The HTTP-date form is ignored; none of the supported providers send it.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
