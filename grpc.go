package resilience

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GRPCCodeClassifier classifies gRPC status errors onto the engine's
// taxonomy. Errors that are not gRPC statuses fall back to the package-level
// Classify.
type GRPCCodeClassifier struct{}

// Classify implements ErrorClassifier.
func (GRPCCodeClassifier) Classify(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	st, ok := status.FromError(err)
	if !ok {
		return Classify(err)
	}

	switch st.Code() {
	case codes.DeadlineExceeded:
		return KindTimeout
	case codes.Unavailable, codes.ResourceExhausted, codes.Aborted:
		return KindNetwork
	case codes.InvalidArgument, codes.OutOfRange, codes.DataLoss:
		return KindFormat
	case codes.Canceled,
		codes.FailedPrecondition,
		codes.PermissionDenied,
		codes.Unauthenticated,
		codes.NotFound,
		codes.AlreadyExists,
		codes.Unimplemented:
		return KindState
	default:
		return KindUnknown
	}
}

// IsRetryable reports whether err classifies as transient under this
// classifier. Usable directly as a RetryPolicy predicate.
func (c GRPCCodeClassifier) IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return c.Classify(err).Retryable()
}
