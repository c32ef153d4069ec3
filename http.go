package resilience

import (
	"errors"
	"net/http"
)

// HTTPError represents an error with an associated HTTP status code. Many
// HTTP client libraries provide errors that implement this interface.
type HTTPError interface {
	error
	StatusCode() int
}

// HTTPStatusClassifier classifies errors carrying HTTP status codes onto the
// engine's taxonomy. Errors without a status code fall back to the
// package-level Classify.
type HTTPStatusClassifier struct {
	// RetryableStatuses lists status codes classified as transient.
	// Defaults to 408, 429, 500, 502, 503, 504 if nil.
	RetryableStatuses []int
}

// NewHTTPStatusClassifier creates an HTTPStatusClassifier with the default
// status code mapping.
func NewHTTPStatusClassifier() *HTTPStatusClassifier {
	return &HTTPStatusClassifier{
		RetryableStatuses: []int{408, 429, 500, 502, 503, 504},
	}
}

// Classify implements ErrorClassifier.
func (c *HTTPStatusClassifier) Classify(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	code := extractStatusCode(err)
	if code == 0 {
		return Classify(err)
	}
	return c.kindForStatus(code)
}

// IsRetryable reports whether err classifies as transient under this
// classifier. Usable directly as a RetryPolicy predicate.
func (c *HTTPStatusClassifier) IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return c.Classify(err).Retryable()
}

func (c *HTTPStatusClassifier) kindForStatus(code int) ErrorKind {
	switch code {
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return KindTimeout
	}
	if containsStatus(c.getRetryableStatuses(), code) {
		return KindNetwork
	}
	switch code {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindFormat
	}
	if code >= 500 {
		return KindNetwork
	}
	// Auth failures, conflicts and the rest of the 4xx range reflect caller
	// state; re-sending the same request will not help.
	return KindState
}

// getRetryableStatuses returns the configured retryable statuses or defaults.
func (c *HTTPStatusClassifier) getRetryableStatuses() []int {
	if c.RetryableStatuses != nil {
		return c.RetryableStatuses
	}
	return []int{408, 429, 500, 502, 503, 504}
}

// extractStatusCode attempts to extract an HTTP status code from the error
// chain. Returns 0 when none is present.
func extractStatusCode(err error) int {
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode()
	}

	type httpStatusProvider interface {
		StatusCode() int
	}
	var statusProvider httpStatusProvider
	if errors.As(err, &statusProvider) {
		return statusProvider.StatusCode()
	}

	return 0
}

// containsStatus checks if a status code is in the list.
func containsStatus(statuses []int, status int) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

// StatusCodeError wraps an error with an HTTP status code. Use this when
// wrapping errors from systems that don't provide status codes.
type StatusCodeError struct {
	Err  error
	Code int
}

// Error implements the error interface.
func (e *StatusCodeError) Error() string {
	return e.Err.Error()
}

// Unwrap implements error unwrapping for errors.Is and errors.As.
func (e *StatusCodeError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status code. This implements the HTTPError
// interface.
func (e *StatusCodeError) StatusCode() int {
	return e.Code
}

// NewStatusCodeError creates a new StatusCodeError.
//
// Example:
//
//	resp, err := doRequest()
//	if err == nil && resp.StatusCode >= 400 {
//	    return resilience.NewStatusCodeError(resp.StatusCode, errors.New(resp.Status))
//	}
func NewStatusCodeError(statusCode int, err error) error {
	return &StatusCodeError{
		Code: statusCode,
		Err:  err,
	}
}
