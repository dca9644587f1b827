package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds. Every upstream failure returned by the client matches
// exactly one of these through errors.Is.
var (
	// ErrValidation is returned when the upstream rejects the query (400).
	ErrValidation = errors.New("invalid query")

	// ErrNotFound is returned when the requested resource does not exist (404).
	ErrNotFound = errors.New("resource not found")

	// ErrForbidden is returned when access is denied (403).
	ErrForbidden = errors.New("access denied")

	// ErrRateLimited is returned when the retry budget ran out on 429 responses.
	ErrRateLimited = errors.New("rate limited")

	// ErrTransport is returned for network failures, timeouts, undecodable
	// bodies and other error statuses once the retry budget is spent.
	ErrTransport = errors.New("transport failure")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassValidation represents 400 responses.
	ErrorClassValidation ErrorClass = "validation"

	// ErrorClassNotFound represents 404 responses.
	ErrorClassNotFound ErrorClass = "not_found"

	// ErrorClassForbidden represents 403 responses.
	ErrorClassForbidden ErrorClass = "forbidden"

	// ErrorClassRateLimit represents 429 responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassServer represents any other 4xx or 5xx response.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents a success status with an undecodable body.
	ErrorClassDecode ErrorClass = "decode"
)

// Retryable reports whether failures of this class are retried.
func (c ErrorClass) Retryable() bool {
	switch c {
	case ErrorClassRateLimit, ErrorClassServer, ErrorClassNetwork, ErrorClassDecode:
		return true
	default:
		// 400/403/404 are terminal
		return false
	}
}

// Kind returns the sentinel error the class maps to.
func (c ErrorClass) Kind() error {
	switch c {
	case ErrorClassValidation:
		return ErrValidation
	case ErrorClassNotFound:
		return ErrNotFound
	case ErrorClassForbidden:
		return ErrForbidden
	case ErrorClassRateLimit:
		return ErrRateLimited
	default:
		return ErrTransport
	}
}

// classifyStatus maps an HTTP error status to its class.
func classifyStatus(status int) ErrorClass {
	switch status {
	case http.StatusBadRequest:
		return ErrorClassValidation
	case http.StatusForbidden:
		return ErrorClassForbidden
	case http.StatusNotFound:
		return ErrorClassNotFound
	case http.StatusTooManyRequests:
		return ErrorClassRateLimit
	default:
		return ErrorClassServer
	}
}

// APIError represents a failed upstream call with additional context.
type APIError struct {
	ErrorClass ErrorClass
	StatusCode int // 0 for network failures
	Endpoint   string
	Message    string
	Attempts   int
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := fmt.Sprintf("ctgov %s error", e.ErrorClass)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	msg += fmt.Sprintf(" on %s: %s", e.Endpoint, e.Message)
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's class.
func (e *APIError) Is(target error) bool {
	return target == e.ErrorClass.Kind()
}
