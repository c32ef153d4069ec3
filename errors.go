package resilience

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	jperrors "github.com/JohnPlummer/jp-go-errors"
)

// ErrorKind is the closed classification of failures flowing through the
// engine. Raw errors are mapped to a kind once, at the boundary where they
// enter the engine, rather than re-inspected inside the retry loop.
type ErrorKind int

const (
	// KindUnknown is the conservative default for unclassifiable errors.
	// Treated as retryable to avoid masking transient issues.
	KindUnknown ErrorKind = iota

	// KindTimeout is a timed-out operation. Retryable.
	KindTimeout

	// KindNetwork is a connectivity or transport failure. Retryable.
	KindNetwork

	// KindFormat is malformed or unparseable data. Not retryable.
	KindFormat

	// KindState is an invalid internal or caller state, including a
	// canceled caller context. Not retryable.
	KindState

	// KindCircuitOpen means the circuit breaker rejected the call. Terminal
	// for the current call.
	KindCircuitOpen
)

// String returns the string representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindNetwork:
		return "network"
	case KindFormat:
		return "format"
	case KindState:
		return "state"
	case KindCircuitOpen:
		return "circuit-open"
	default:
		return "unknown"
	}
}

// Retryable reports whether failures of this kind are worth reattempting.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindTimeout, KindNetwork, KindUnknown:
		return true
	default:
		return false
	}
}

// ErrCircuitOpen is the sentinel matched by errors.Is for circuit-open
// rejections. The concrete error returned by Execute is
// *CircuitBreakerOpenError, which carries the operation name.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerOpenError is returned by Execute when the breaker for an
// operation is open and no usable fallback was supplied.
type CircuitBreakerOpenError struct {
	// Operation is the name of the operation whose breaker rejected the call.
	Operation string

	// Cause is the operation error that tripped the breaker during this
	// call, or nil when the breaker was already open.
	Cause error
}

// Error implements the error interface.
func (e *CircuitBreakerOpenError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("circuit breaker open for operation %q: %v", e.Operation, e.Cause)
	}
	return fmt.Sprintf("circuit breaker open for operation %q", e.Operation)
}

// Unwrap exposes both the ErrCircuitOpen sentinel and the cause, so
// errors.Is(err, ErrCircuitOpen) and inspection of the original failure both
// work.
func (e *CircuitBreakerOpenError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrCircuitOpen, e.Cause}
	}
	return []error{ErrCircuitOpen}
}

// KindError attaches an explicit ErrorKind to an error. Classify honors the
// attached kind before any other rule, so operations can override the
// heuristics for errors they understand better than the engine does.
type KindError struct {
	Kind ErrorKind
	Err  error
}

// Error implements the error interface.
func (e *KindError) Error() string {
	return e.Err.Error()
}

// Unwrap implements error unwrapping for errors.Is and errors.As.
func (e *KindError) Unwrap() error {
	return e.Err
}

// MarkKind wraps err with an explicit classification. Returns nil for a nil
// err.
//
// Example:
//
//	if resp.StatusCode == http.StatusBadRequest {
//	    return resilience.MarkKind(resilience.KindFormat, err)
//	}
func MarkKind(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &KindError{Kind: kind, Err: err}
}

// MarkRetryable marks err as a transient failure regardless of what the
// heuristics would decide. Equivalent to MarkKind(KindUnknown, err).
func MarkRetryable(err error) error {
	return MarkKind(KindUnknown, err)
}

// MarkNonRetryable marks err as a terminal failure regardless of what the
// heuristics would decide. Equivalent to MarkKind(KindState, err).
func MarkNonRetryable(err error) error {
	return MarkKind(KindState, err)
}

// ErrorClassifier maps raw errors onto the engine's error taxonomy.
// Implement this interface to classify errors from a specific transport; see
// HTTPStatusClassifier and GRPCCodeClassifier.
type ErrorClassifier interface {
	// Classify returns the ErrorKind for err. Implementations should fall
	// back to the package-level Classify for errors they do not recognize.
	Classify(err error) ErrorKind
}

// Classify maps an error onto the closed ErrorKind taxonomy. Explicit marks
// win, then sentinel and typed checks, then a deliberately permissive
// substring heuristic for opaque error sources.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, ErrCircuitOpen) {
		return KindCircuitOpen
	}
	var kindErr *KindError
	if errors.As(err, &kindErr) {
		return kindErr.Kind
	}

	// A canceled caller context makes any further attempt pointless, so it
	// is not a timeout. A deadline is.
	if errors.Is(err, context.Canceled) {
		return KindState
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	// Platform error sentinels.
	if jperrors.IsTimeout(err) {
		return KindTimeout
	}
	if errors.Is(err, jperrors.ErrRateLimited) {
		return KindNetwork
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return KindFormat
	}

	return classifyMessage(err.Error())
}

// classifyMessage applies substring heuristics to an opaque error message.
func classifyMessage(msg string) ErrorKind {
	msg = strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out"):
		return KindTimeout
	case strings.Contains(msg, "network"),
		strings.Contains(msg, "connection"),
		strings.Contains(msg, "temporary"):
		return KindNetwork
	case strings.Contains(msg, "malformed") || strings.Contains(msg, "invalid format"):
		return KindFormat
	default:
		return KindUnknown
	}
}

// IsRetryable reports whether err classifies as a transient failure. This is
// the default retry predicate.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return Classify(err).Retryable()
}

// KindClassifier adapts the package-level Classify function to the
// ErrorClassifier interface.
type KindClassifier struct{}

// Classify implements ErrorClassifier.
func (KindClassifier) Classify(err error) ErrorKind {
	return Classify(err)
}

// DefaultErrorClassifier returns the classifier used when no
// transport-specific one is configured.
func DefaultErrorClassifier() ErrorClassifier {
	return KindClassifier{}
}
