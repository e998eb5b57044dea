package breaker

import (
	"context"
	"errors"
	"net"
	"testing"
)

type fakeHTTPError struct{ status int }

func (e fakeHTTPError) Error() string  { return "http error" }
func (e fakeHTTPError) HTTPStatus() int { return e.status }

func TestHTTPClassifier_NilIsSuccess(t *testing.T) {
	t.Parallel()
	if got := HTTPClassifier(nil); got != Success {
		t.Fatalf("HTTPClassifier(nil) = %v, want Success", got)
	}
}

func TestHTTPClassifier_ClientErrorsAreSuccess(t *testing.T) {
	t.Parallel()
	for _, code := range []int{400, 404, 422} {
		if got := HTTPClassifier(fakeHTTPError{code}); got != Success {
			t.Fatalf("HTTPClassifier(%d) = %v, want Success", code, got)
		}
	}
}

func TestHTTPClassifier_TooManyRequestsIsFailure(t *testing.T) {
	t.Parallel()
	if got := HTTPClassifier(fakeHTTPError{429}); got != Failure {
		t.Fatalf("HTTPClassifier(429) = %v, want Failure", got)
	}
}

func TestHTTPClassifier_ServerErrorsAreFailure(t *testing.T) {
	t.Parallel()
	for _, code := range []int{500, 502, 503} {
		if got := HTTPClassifier(fakeHTTPError{code}); got != Failure {
			t.Fatalf("HTTPClassifier(%d) = %v, want Failure", code, got)
		}
	}
}

func TestHTTPClassifier_TimeoutIsFailure(t *testing.T) {
	t.Parallel()
	if got := HTTPClassifier(context.DeadlineExceeded); got != Failure {
		t.Fatalf("HTTPClassifier(DeadlineExceeded) = %v, want Failure", got)
	}
}

func TestHTTPClassifier_NetworkErrorIsFailure(t *testing.T) {
	t.Parallel()
	err := &net.OpError{Op: "dial", Err: errors.New("connection refused")}
	if got := HTTPClassifier(err); got != Failure {
		t.Fatalf("HTTPClassifier(net.OpError) = %v, want Failure", got)
	}
}

func TestHTTPClassifier_GenericErrorIsFailure(t *testing.T) {
	t.Parallel()
	if got := HTTPClassifier(errors.New("boom")); got != Failure {
		t.Fatalf("HTTPClassifier(generic) = %v, want Failure", got)
	}
}
