package resilience_test

import (
	"context"
	"encoding/json"
	"errors"
	"net"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	resilience "github.com/plateful/go-resilience"
)

var _ = Describe("Classify", func() {
	It("honors explicit kind marks before any heuristic", func() {
		err := resilience.MarkKind(resilience.KindFormat, errors.New("connection reset"))

		// The message alone would classify as network
		Expect(resilience.Classify(err)).To(Equal(resilience.KindFormat))
	})

	It("treats marked-retryable errors as retryable", func() {
		err := resilience.MarkRetryable(errors.New("opaque upstream failure"))
		Expect(resilience.IsRetryable(err)).To(BeTrue())
	})

	It("treats marked-non-retryable errors as terminal", func() {
		err := resilience.MarkNonRetryable(errors.New("broken pipe"))
		Expect(resilience.IsRetryable(err)).To(BeFalse())
	})

	It("classifies a canceled context as a state error", func() {
		Expect(resilience.Classify(context.Canceled)).To(Equal(resilience.KindState))
		Expect(resilience.IsRetryable(context.Canceled)).To(BeFalse())
	})

	It("classifies an exceeded deadline as a timeout", func() {
		Expect(resilience.Classify(context.DeadlineExceeded)).To(Equal(resilience.KindTimeout))
		Expect(resilience.IsRetryable(context.DeadlineExceeded)).To(BeTrue())
	})

	It("classifies net timeouts and transport failures", func() {
		timeout := &net.DNSError{Err: "lookup timed out", IsTimeout: true}
		Expect(resilience.Classify(timeout)).To(Equal(resilience.KindTimeout))

		transport := &net.DNSError{Err: "no such host"}
		Expect(resilience.Classify(transport)).To(Equal(resilience.KindNetwork))
	})

	It("classifies malformed JSON as a format error", func() {
		var v map[string]any
		err := json.Unmarshal([]byte("{not json"), &v)
		Expect(err).To(HaveOccurred())

		Expect(resilience.Classify(err)).To(Equal(resilience.KindFormat))
		Expect(resilience.IsRetryable(err)).To(BeFalse())
	})

	It("applies substring heuristics to opaque errors", func() {
		Expect(resilience.Classify(errors.New("request timed out"))).
			To(Equal(resilience.KindTimeout))
		Expect(resilience.Classify(errors.New("connection refused"))).
			To(Equal(resilience.KindNetwork))
		Expect(resilience.Classify(errors.New("temporary failure in name resolution"))).
			To(Equal(resilience.KindNetwork))
		Expect(resilience.Classify(errors.New("network unreachable"))).
			To(Equal(resilience.KindNetwork))
	})

	It("defaults unclassifiable errors to retryable unknown", func() {
		err := errors.New("something odd happened")

		Expect(resilience.Classify(err)).To(Equal(resilience.KindUnknown))
		Expect(resilience.IsRetryable(err)).To(BeTrue())
	})
})

var _ = Describe("CircuitBreakerOpenError", func() {
	It("matches the ErrCircuitOpen sentinel", func() {
		var err error = &resilience.CircuitBreakerOpenError{Operation: "wallet.fetch"}

		Expect(errors.Is(err, resilience.ErrCircuitOpen)).To(BeTrue())
		Expect(resilience.Classify(err)).To(Equal(resilience.KindCircuitOpen))
		Expect(resilience.IsRetryable(err)).To(BeFalse())
	})

	It("names the operation and preserves the cause", func() {
		cause := errors.New("upstream exploded")
		err := &resilience.CircuitBreakerOpenError{Operation: "wallet.fetch", Cause: cause}

		Expect(err.Error()).To(ContainSubstring(`"wallet.fetch"`))
		Expect(errors.Is(err, cause)).To(BeTrue())
	})
})

var _ = Describe("HTTPStatusClassifier", func() {
	var classifier *resilience.HTTPStatusClassifier

	BeforeEach(func() {
		classifier = resilience.NewHTTPStatusClassifier()
	})

	It("classifies server errors and rate limits as transient", func() {
		for _, code := range []int{429, 500, 502, 503} {
			err := resilience.NewStatusCodeError(code, errors.New("upstream error"))
			Expect(classifier.Classify(err)).To(Equal(resilience.KindNetwork), "status %d", code)
			Expect(classifier.IsRetryable(err)).To(BeTrue(), "status %d", code)
		}
	})

	It("classifies timeout statuses as timeouts", func() {
		for _, code := range []int{408, 504} {
			err := resilience.NewStatusCodeError(code, errors.New("slow upstream"))
			Expect(classifier.Classify(err)).To(Equal(resilience.KindTimeout), "status %d", code)
		}
	})

	It("classifies malformed-request statuses as format errors", func() {
		for _, code := range []int{400, 422} {
			err := resilience.NewStatusCodeError(code, errors.New("bad payload"))
			Expect(classifier.Classify(err)).To(Equal(resilience.KindFormat), "status %d", code)
			Expect(classifier.IsRetryable(err)).To(BeFalse(), "status %d", code)
		}
	})

	It("classifies auth and conflict statuses as state errors", func() {
		for _, code := range []int{401, 403, 404, 409} {
			err := resilience.NewStatusCodeError(code, errors.New("rejected"))
			Expect(classifier.Classify(err)).To(Equal(resilience.KindState), "status %d", code)
		}
	})

	It("falls back to the kind classifier without a status code", func() {
		Expect(classifier.Classify(errors.New("connection reset by peer"))).
			To(Equal(resilience.KindNetwork))
	})
})

var _ = Describe("GRPCCodeClassifier", func() {
	var classifier resilience.GRPCCodeClassifier

	It("classifies unavailable and exhausted codes as transient", func() {
		for _, code := range []codes.Code{codes.Unavailable, codes.ResourceExhausted, codes.Aborted} {
			err := status.Error(code, "upstream down")
			Expect(classifier.Classify(err)).To(Equal(resilience.KindNetwork), "code %s", code)
			Expect(classifier.IsRetryable(err)).To(BeTrue(), "code %s", code)
		}
	})

	It("classifies deadline exceeded as a timeout", func() {
		err := status.Error(codes.DeadlineExceeded, "deadline exceeded")
		Expect(classifier.Classify(err)).To(Equal(resilience.KindTimeout))
	})

	It("classifies invalid arguments as format errors", func() {
		for _, code := range []codes.Code{codes.InvalidArgument, codes.OutOfRange, codes.DataLoss} {
			err := status.Error(code, "bad request")
			Expect(classifier.Classify(err)).To(Equal(resilience.KindFormat), "code %s", code)
		}
	})

	It("classifies precondition and auth codes as state errors", func() {
		for _, code := range []codes.Code{codes.FailedPrecondition, codes.PermissionDenied, codes.Unauthenticated, codes.NotFound} {
			err := status.Error(code, "rejected")
			Expect(classifier.Classify(err)).To(Equal(resilience.KindState), "code %s", code)
			Expect(classifier.IsRetryable(err)).To(BeFalse(), "code %s", code)
		}
	})
})
