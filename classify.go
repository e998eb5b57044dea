package breaker

import (
	"context"
	"errors"
	"net"
	"os"
)

// httpStatusError is satisfied by domain errors that carry an HTTP
// status code, letting HTTPClassifier tell a client-caused 4xx apart
// from a provider-caused 5xx without coupling this package to any
// specific HTTP client.
type httpStatusError interface {
	HTTPStatus() int
}

// HTTPClassifier is a Classifier suited to wrapping HTTP-shaped
// calls: client errors (4xx, except 429) do not count against the
// breaker, since they indicate a bad request rather than an unhealthy
// dependency; everything else -- timeouts, network errors, 429, 5xx --
// does.
func HTTPClassifier(err error) Outcome {
	if err == nil {
		return Success
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return Failure
	}

	var he httpStatusError
	if errors.As(err, &he) {
		return classifyStatus(he.HTTPStatus())
	}

	var netErr *net.OpError
	if errors.As(err, &netErr) {
		return Failure
	}

	// Generic errors (e.g. connection refused wrapped by a client lib)
	// are treated as the dependency's fault.
	return Failure
}

func classifyStatus(code int) Outcome {
	switch {
	case code == 429:
		return Failure
	case code >= 500 && code <= 599:
		return Failure
	case code >= 400 && code < 500:
		return Success
	default:
		return Success
	}
}
